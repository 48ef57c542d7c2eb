package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maruel/xbase/internal/locator"
	"github.com/maruel/xbase/internal/models"
	"github.com/maruel/xbase/internal/table"
)

// Store reads and writes stored objects. *apiclient.Client implements it.
type Store interface {
	Read(ctx context.Context, loc string) (string, error)
	Update(ctx context.Context, owner, fileName string, content []byte) (*models.UpdateResponse, error)
}

// Options configures a Session.
type Options struct {
	// Bucket is the expected storage bucket. Locators naming another bucket
	// are rejected. Empty accepts any bucket.
	Bucket string
	// OnColumns is called once per successful CSV load with the non-empty
	// column names, before any other Open or Close can take effect. It must
	// not call back into the Session.
	OnColumns func(f models.FileRef, columns []string)
}

// Session is the controller of one file view. It is safe for concurrent use;
// results of loads and saves issued for a file that is no longer open are
// discarded.
type Session struct {
	store Store
	opts  Options

	mu sync.Mutex
	st State
}

// New returns an idle session.
func New(store Store, opts Options) *Session {
	return &Session{store: store, opts: opts}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Open selects f and loads its content. Selecting a file discards any
// in-flight result for the previous one.
//
// The returned error is the load error, also recorded in State().LoadErr, or
// ErrStale when another file was selected before the load completed.
func (s *Session) Open(ctx context.Context, f models.FileRef) (State, error) {
	s.mu.Lock()
	gen := s.st.Gen + 1
	s.st = State{File: f, Gen: gen, Status: StatusLoading}
	s.mu.Unlock()

	tbl, err := s.load(ctx, f)

	s.mu.Lock()
	if s.st.Gen != gen {
		s.mu.Unlock()
		slog.DebugContext(ctx, "session", "msg", "dropping stale load", "file", f.Name)
		return State{}, ErrStale
	}
	if err != nil {
		s.st = Failed(s.st, err)
	} else {
		s.st = Loaded(s.st, tbl)
		// Published under the lock so a concurrent Open or Close cannot
		// retire f in between.
		if table.IsCSV(fileName(f)) && s.opts.OnColumns != nil {
			s.opts.OnColumns(f, s.st.Committed.Columns())
		}
	}
	st := s.st
	s.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "session", "msg", "load failed", "file", f.Name, "err", err)
		return st, err
	}
	return st, nil
}

func (s *Session) load(ctx context.Context, f models.FileRef) (*table.Table, error) {
	if err := s.checkBucket(f); err != nil {
		return nil, err
	}
	text, err := s.store.Read(ctx, f.BucketURL)
	if err != nil {
		return nil, err
	}
	tbl, err := table.Load(fileName(f), text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName(f), err)
	}
	return tbl, nil
}

func (s *Session) checkBucket(f models.FileRef) error {
	if s.opts.Bucket == "" || f.BucketURL == "" {
		return nil
	}
	l, err := locator.Parse(f.BucketURL)
	if err != nil {
		return err
	}
	return l.CheckBucket(s.opts.Bucket)
}

// Close leaves the current file. In-flight loads and saves are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = State{Gen: s.st.Gen + 1}
}

// Update applies fn to the current state. The state is unchanged when fn
// returns an error.
func (s *Session) Update(fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.st)
	if err != nil {
		return s.st, err
	}
	s.st = next
	return next, nil
}

// Activate makes c the active cell.
func (s *Session) Activate(c Cell) (State, error) {
	return s.Update(func(st State) (State, error) { return Activate(st, c) })
}

// Set writes v into the active cell.
func (s *Session) Set(v string) (State, error) {
	return s.Update(func(st State) (State, error) { return SetCell(st, v) })
}

// Deactivate clears the active cell.
func (s *Session) Deactivate() State {
	st, _ := s.Update(func(st State) (State, error) { return Deactivate(st), nil })
	return st
}

// Cancel discards pending edits.
func (s *Session) Cancel() State {
	st, _ := s.Update(func(st State) (State, error) { return Cancel(st), nil })
	return st
}

// Save writes the buffer to storage. On success the rows that were sent
// become the committed content and edit mode is left. On failure the state is
// unchanged apart from SaveErr.
//
// A locator that does not decompose into an owner and a file name fails
// without any network call.
func (s *Session) Save(ctx context.Context) (State, error) {
	s.mu.Lock()
	st := s.st
	s.mu.Unlock()
	if st.Status != StatusReady {
		return st, ErrNotLoaded
	}
	fail := func(err error) (State, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.st.Gen != st.Gen {
			return State{}, ErrStale
		}
		s.st = SaveFailed(s.st, err)
		return s.st, err
	}
	if err := s.checkBucket(st.File); err != nil {
		return fail(err)
	}
	owner, name, err := locator.Decompose(st.File.BucketURL)
	if err != nil {
		return fail(err)
	}
	sent := table.CloneRows(st.Buffer)
	content := table.Serialize(st.Committed.Headers, sent)
	resp, err := s.store.Update(ctx, owner, name, []byte(content))
	if err != nil {
		slog.WarnContext(ctx, "session", "msg", "save failed", "file", st.File.Name, "err", err)
		return fail(err)
	}
	slog.InfoContext(ctx, "session", "msg", "saved", "path", resp.Path, "rows", len(sent))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Gen != st.Gen {
		return State{}, ErrStale
	}
	s.st = Saved(s.st, sent)
	return s.st, nil
}

// fileName returns the name used for CSV detection: the display name, or the
// last locator segment when there is none.
func fileName(f models.FileRef) string {
	if f.Name != "" {
		return f.Name
	}
	if l, err := locator.Parse(f.BucketURL); err == nil {
		return l.Name()
	}
	return ""
}
