package session

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/maruel/xbase/internal/apiclient"
	"github.com/maruel/xbase/internal/locator"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/table"
)

const peopleURL = "https://x.supabase.co/storage/v1/object/public/XBase_bucket1/root-1/people.csv"

type update struct {
	owner, name, content string
}

type fakeStore struct {
	mu        sync.Mutex
	files     map[string]string
	reads     int
	updates   []update
	updateErr error
	// gate, when set for a locator, blocks Read until closed.
	gate map[string]chan struct{}
}

func newFakeStore(files map[string]string) *fakeStore {
	return &fakeStore{files: files, gate: map[string]chan struct{}{}}
}

func (f *fakeStore) Read(ctx context.Context, loc string) (string, error) {
	f.mu.Lock()
	f.reads++
	g := f.gate[loc]
	f.mu.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.files[loc]
	if !ok {
		return "", &apiclient.UpstreamError{StatusCode: 500, Message: "Object not found"}
	}
	return text, nil
}

func (f *fakeStore) Update(ctx context.Context, owner, name string, content []byte) (*models.UpdateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, update{owner, name, string(content)})
	return &models.UpdateResponse{Message: "CSV file updated successfully", Path: owner + "/" + name}, nil
}

func people() models.FileRef {
	return models.FileRef{Name: "people.csv", BucketURL: peopleURL, ParentID: "root-1"}
}

func openPeople(t *testing.T, store Store) *Session {
	t.Helper()
	s := New(store, Options{Bucket: "XBase_bucket1"})
	if _, err := s.Open(t.Context(), people()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

var originalRows = []table.Row{{"name": "Alice", "age": "30"}, {"name": "Bob", "age": ""}}

func TestOpen(t *testing.T) {
	store := newFakeStore(map[string]string{peopleURL: "name,age\nAlice,30\nBob,\n"})
	var published [][]string
	s := New(store, Options{OnColumns: func(f models.FileRef, cols []string) { published = append(published, cols) }})
	st, err := s.Open(t.Context(), people())
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != StatusReady || st.Editing || st.Active != nil {
		t.Errorf("unexpected state %+v", st)
	}
	want := &table.Table{Headers: []string{"name", "age"}, Rows: originalRows}
	if diff := cmp.Diff(want, st.Committed); diff != "" {
		t.Errorf("Committed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(originalRows, st.Buffer); diff != "" {
		t.Errorf("Buffer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"name", "age"}}, published); diff != "" {
		t.Errorf("published columns mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenPlainTextDoesNotPublish(t *testing.T) {
	loc := "root-1/notes.txt"
	store := newFakeStore(map[string]string{loc: "hello"})
	called := false
	s := New(store, Options{OnColumns: func(models.FileRef, []string) { called = true }})
	st, err := s.Open(t.Context(), models.FileRef{BucketURL: loc})
	if err != nil {
		t.Fatal(err)
	}
	want := &table.Table{Headers: []string{"Content"}, Rows: []table.Row{{"Content": "hello"}}}
	if diff := cmp.Diff(want, st.Committed); diff != "" {
		t.Errorf("Committed mismatch (-want +got):\n%s", diff)
	}
	if called {
		t.Error("columns published for a non-CSV file")
	}
}

func TestOpenFailures(t *testing.T) {
	t.Run("upstream", func(t *testing.T) {
		s := New(newFakeStore(nil), Options{})
		st, err := s.Open(t.Context(), people())
		var ue *apiclient.UpstreamError
		if !errors.As(err, &ue) || ue.StatusCode != 500 {
			t.Fatalf("Open error = %v", err)
		}
		if st.Status != StatusFailed || st.LoadErr == nil || st.Committed != nil {
			t.Errorf("unexpected state %+v", st)
		}
	})
	t.Run("bucket mismatch", func(t *testing.T) {
		store := newFakeStore(map[string]string{peopleURL: "a\n1"})
		s := New(store, Options{Bucket: "other"})
		if _, err := s.Open(t.Context(), people()); !errors.Is(err, locator.ErrBucketMismatch) {
			t.Fatalf("Open error = %v, want ErrBucketMismatch", err)
		}
		if store.reads != 0 {
			t.Errorf("read issued despite bucket mismatch")
		}
	})
}

func TestCancelRestoresCommitted(t *testing.T) {
	s := openPeople(t, newFakeStore(map[string]string{peopleURL: "name,age\nAlice,30\nBob,\n"}))
	if _, err := s.Activate(Cell{Row: 1, Column: "age"}); err != nil {
		t.Fatal(err)
	}
	st, err := s.Set("25")
	if err != nil {
		t.Fatal(err)
	}
	if st.Buffer[1]["age"] != "25" || st.Committed.Rows[1]["age"] != "" {
		t.Fatalf("edit leaked into committed rows: %+v", st)
	}
	st = s.Cancel()
	if diff := cmp.Diff(originalRows, st.Buffer); diff != "" {
		t.Errorf("Buffer after cancel mismatch (-want +got):\n%s", diff)
	}
	if st.Active != nil || st.Editing {
		t.Errorf("cancel left edit state: active=%v editing=%v", st.Active, st.Editing)
	}
}

func TestCancelProperty(t *testing.T) {
	committed := &table.Table{Headers: []string{"a", "b", "c"}}
	for i := range 5 {
		committed.Rows = append(committed.Rows, table.Row{"a": strconv.Itoa(i), "b": "", "c": "x"})
	}
	base := Loaded(State{Status: StatusLoading}, committed)
	r := rand.New(rand.NewPCG(3, 4))
	for iter := range 100 {
		st := base
		for range r.IntN(20) {
			c := Cell{Row: r.IntN(len(committed.Rows)), Column: committed.Headers[r.IntN(3)]}
			var err error
			if st, err = Activate(st, c); err != nil {
				t.Fatal(err)
			}
			if st, err = SetCell(st, strconv.Itoa(r.IntN(1000))); err != nil {
				t.Fatal(err)
			}
			if r.IntN(3) == 0 {
				st = Deactivate(st)
			}
		}
		st = Cancel(st)
		if diff := cmp.Diff(committed.Rows, st.Buffer); diff != "" {
			t.Fatalf("iteration %d: buffer after cancel (-want +got):\n%s", iter, diff)
		}
		if st.Active != nil {
			t.Fatalf("iteration %d: active cell after cancel", iter)
		}
	}
	if diff := cmp.Diff(committed.Rows, base.Buffer); diff != "" {
		t.Errorf("updates mutated the original state (-want +got):\n%s", diff)
	}
}

func TestSingleActiveCell(t *testing.T) {
	s := openPeople(t, newFakeStore(map[string]string{peopleURL: "name,age\nAlice,30\nBob,\n"}))
	if _, err := s.Set("x"); !errors.Is(err, ErrNoActiveCell) {
		t.Fatalf("Set without active cell = %v", err)
	}
	if _, err := s.Activate(Cell{Row: 0, Column: "name"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set("Alicia"); err != nil {
		t.Fatal(err)
	}
	st, err := s.Activate(Cell{Row: 1, Column: "age"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&Cell{Row: 1, Column: "age"}, st.Active); diff != "" {
		t.Errorf("Active mismatch (-want +got):\n%s", diff)
	}
	if st.Buffer[0]["name"] != "Alicia" {
		t.Errorf("switching cells lost the previous value: %+v", st.Buffer)
	}
	if v, ok := Value(st); !ok || v != "" {
		t.Errorf("Value() = %q, %v", v, ok)
	}
	st = s.Deactivate()
	if st.Active != nil || st.Buffer[0]["name"] != "Alicia" || !st.Editing {
		t.Errorf("Deactivate state %+v", st)
	}

	for _, c := range []Cell{{Row: 2, Column: "name"}, {Row: -1, Column: "name"}, {Row: 0, Column: "nope"}} {
		if _, err := s.Activate(c); err == nil {
			t.Errorf("Activate(%v) succeeded", c)
		}
	}
}

func TestEditBeforeLoad(t *testing.T) {
	s := New(newFakeStore(nil), Options{})
	if _, err := s.Activate(Cell{}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Activate = %v", err)
	}
	if _, err := s.Save(t.Context()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Save = %v", err)
	}
	if _, err := BeginEdit(s.State()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("BeginEdit = %v", err)
	}
}

func TestSave(t *testing.T) {
	store := newFakeStore(map[string]string{peopleURL: "name,age\nAlice,30\nBob,\n"})
	s := openPeople(t, store)
	if _, err := s.Activate(Cell{Row: 1, Column: "age"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set("25"); err != nil {
		t.Fatal(err)
	}
	if !Dirty(s.State()) {
		t.Error("expected dirty state")
	}
	st, err := s.Save(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	want := []update{{"root-1", "people.csv", "name,age\nAlice,30\nBob,25"}}
	if diff := cmp.Diff(want, store.updates, cmp.AllowUnexported(update{})); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if st.Committed.Rows[1]["age"] != "25" || st.Active != nil || st.Editing || st.SaveErr != nil {
		t.Errorf("unexpected state after save: %+v", st)
	}
	if Dirty(st) {
		t.Error("dirty after save")
	}
	// Later edits do not leak into the committed content.
	if _, err := s.Activate(Cell{Row: 0, Column: "age"}); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Set("31")
	if st.Committed.Rows[0]["age"] != "30" {
		t.Errorf("committed shares rows with buffer")
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/files":
			_, _ = io.WriteString(w, "name,age\nAlice,30\nBob,\n")
		case "/api/files/update":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"disk full"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := openPeople(t, apiclient.New(srv.URL, srv.Client()))
	if _, err := s.Activate(Cell{Row: 1, Column: "age"}); err != nil {
		t.Fatal(err)
	}
	before, err := s.Set("25")
	if err != nil {
		t.Fatal(err)
	}
	committedBefore := before.Committed.String()

	st, err := s.Save(t.Context())
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("Save error = %v, want disk full", err)
	}
	if got := st.Committed.String(); got != committedBefore {
		t.Errorf("committed content changed: %q -> %q", committedBefore, got)
	}
	if !st.Editing || st.Active == nil || st.Buffer[1]["age"] != "25" {
		t.Errorf("edit state not preserved: %+v", st)
	}
	if st.SaveErr == nil || st.SaveErr.Error() != "disk full" {
		t.Errorf("SaveErr = %v", st.SaveErr)
	}
	opts := cmpopts.IgnoreFields(State{}, "SaveErr")
	if diff := cmp.Diff(before, st, opts, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

func TestSaveRejectsLocally(t *testing.T) {
	store := newFakeStore(map[string]string{"people.csv": "a\n1"})
	s := New(store, Options{})
	if _, err := s.Open(t.Context(), models.FileRef{Name: "people.csv", BucketURL: "people.csv"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Save(t.Context())
	if !errors.Is(err, locator.ErrInvalid) {
		t.Fatalf("Save error = %v, want ErrInvalid", err)
	}
	if len(store.updates) != 0 {
		t.Errorf("network call made: %+v", store.updates)
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	other := "https://x.supabase.co/storage/v1/object/public/XBase_bucket1/root-1/other.csv"
	store := newFakeStore(map[string]string{peopleURL: "name\nslow", other: "name\nfast"})
	gate := make(chan struct{})
	store.gate[peopleURL] = gate
	var mu sync.Mutex
	var published []string
	s := New(store, Options{OnColumns: func(f models.FileRef, _ []string) {
		mu.Lock()
		published = append(published, f.Name)
		mu.Unlock()
	}})

	done := make(chan error)
	go func() {
		_, err := s.Open(t.Context(), people())
		done <- err
	}()
	// Wait for the slow load to be in flight.
	for {
		store.mu.Lock()
		n := store.reads
		store.mu.Unlock()
		if n == 1 {
			break
		}
	}
	st, err := s.Open(t.Context(), models.FileRef{Name: "other.csv", BucketURL: other})
	if err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("slow load error = %v, want ErrStale", err)
	}
	final := s.State()
	if final.Gen != st.Gen || final.File.Name != "other.csv" || final.Committed.Rows[0]["name"] != "fast" {
		t.Errorf("stale load overwrote state: %+v", final)
	}
	if diff := cmp.Diff([]string{"other.csv"}, published); diff != "" {
		t.Errorf("published mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseWaitsForColumnPublish(t *testing.T) {
	store := newFakeStore(map[string]string{peopleURL: "name,age\nAlice,30"})
	entered := make(chan struct{})
	release := make(chan struct{})
	s := New(store, Options{OnColumns: func(models.FileRef, []string) {
		close(entered)
		<-release
	}})
	done := make(chan error)
	go func() {
		_, err := s.Open(t.Context(), people())
		done <- err
	}()
	<-entered
	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close completed while columns of the open file were being published")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Open: %v", err)
	}
	<-closed
	if st := s.State(); st.Status != StatusIdle {
		t.Errorf("state after close = %+v", st)
	}
}

func TestCloseDiscardsInFlight(t *testing.T) {
	store := newFakeStore(map[string]string{peopleURL: "a\n1"})
	gate := make(chan struct{})
	store.gate[peopleURL] = gate
	s := New(store, Options{})
	done := make(chan error)
	go func() {
		_, err := s.Open(t.Context(), people())
		done <- err
	}()
	for {
		store.mu.Lock()
		n := store.reads
		store.mu.Unlock()
		if n == 1 {
			break
		}
	}
	s.Close()
	close(gate)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("Open after Close = %v, want ErrStale", err)
	}
	if st := s.State(); st.Status != StatusIdle || st.Committed != nil {
		t.Errorf("state after close = %+v", st)
	}
}

func TestDiff(t *testing.T) {
	s := openPeople(t, newFakeStore(map[string]string{peopleURL: "name,age\nAlice,30\nBob,\n"}))
	if got := Changed(Diff(s.State())); len(got) != 0 {
		t.Errorf("unexpected diff on clean state: %+v", got)
	}
	if _, err := s.Activate(Cell{Row: 1, Column: "age"}); err != nil {
		t.Fatal(err)
	}
	st, _ := s.Set("25")
	want := []Line{
		{Type: LineRemoved, Text: "Bob,", OldLine: 3},
		{Type: LineAdded, Text: "Bob,25", NewLine: 3},
	}
	if diff := cmp.Diff(want, Changed(Diff(st))); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
}
