package directory

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maruel/xbase/internal/apiclient"
	"github.com/maruel/xbase/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"no route"}`)
			return
		}
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return New(apiclient.New(srv.URL, srv.Client()))
}

func TestRoot(t *testing.T) {
	for _, body := range []string{
		`{"root_id":"r1"}`,
		`{"user_root_id":"r1","id":"other"}`,
		`{"id":"r1"}`,
		`{"root_id":"","id":"r1"}`,
	} {
		c := newTestClient(t, map[string]string{"/root": body})
		id, err := c.Root(t.Context(), "u1")
		require.NoError(t, err, body)
		require.Equal(t, "r1", id, body)
	}

	c := newTestClient(t, map[string]string{"/root": `{"root_id":42}`})
	id, err := c.Root(t.Context(), "u1")
	require.NoError(t, err)
	require.Equal(t, "42", id)

	c = newTestClient(t, map[string]string{"/root": `{}`})
	_, err = c.Root(t.Context(), "u1")
	require.Error(t, err)

	_, err = c.Root(t.Context(), "")
	var ie *apiclient.InputError
	require.ErrorAs(t, err, &ie)
}

func TestList(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/folders": `[{"id":"f1","name":"Reports","parent_id":"r1","created_at":"2026-01-02T03:04:05Z"}]`,
		"/files":   `{"files":[{"id":7,"name":"people.csv","bucket_url":"https://h/storage/v1/object/public/b/r1/people.csv","parent_id":"r1"},"junk"]}`,
	})
	l, err := c.List(t.Context(), "r1")
	require.NoError(t, err)
	require.Equal(t, []models.Folder{{
		ID: "f1", Name: "Reports", ParentID: "r1",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}, l.Folders)
	require.Equal(t, []models.FileRef{{
		ID: "7", Name: "people.csv", BucketURL: "https://h/storage/v1/object/public/b/r1/people.csv", ParentID: "r1",
	}}, l.Files)
}

func TestListWrappedFoldersEmptyFiles(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/folders": `{"folders":[{"id":"f1","name":"A"}]}`,
		"/files":   `{"message":"nothing here"}`,
	})
	l, err := c.List(t.Context(), "r1")
	require.NoError(t, err)
	require.Len(t, l.Folders, 1)
	require.Empty(t, l.Files)
}

func TestListFailure(t *testing.T) {
	c := newTestClient(t, map[string]string{"/folders": `[]`})
	_, err := c.List(t.Context(), "r1")
	var ue *apiclient.UpstreamError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusNotFound, ue.StatusCode)
	require.Equal(t, "no route", ue.Message)
}

func TestColumns(t *testing.T) {
	c := newTestClient(t, map[string]string{"/getColumns": `{"columns":["id","name",3]}`})
	cols, err := c.Columns(t.Context(), "r1", "users")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "3"}, cols)

	_, err = c.Columns(t.Context(), "r1", "")
	var ie *apiclient.InputError
	require.ErrorAs(t, err, &ie)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		f     models.FileRef
		kind  Kind
		table string
	}{
		{models.FileRef{Name: "People.CSV", BucketURL: "r/People.CSV"}, KindCSV, ""},
		{models.FileRef{Name: "db", BucketURL: "postgres://x/Schema|> users "}, KindSchema, "users"},
		{models.FileRef{Name: "db", BucketURL: "SCHEMA|>orders|>extra"}, KindSchema, "orders"},
		{models.FileRef{Name: "notes.txt", BucketURL: "r/notes.txt"}, KindOther, ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.kind, Classify(tc.f), tc.f.Name)
		require.Equal(t, tc.table, TableName(tc.f), tc.f.BucketURL)
	}
}

func TestNavigator(t *testing.T) {
	n := NewNavigator("r1")
	require.Equal(t, Crumb{ID: "r1", Name: "Home"}, n.Current())
	n.Enter(models.Folder{ID: "a", Name: "A"})
	n.Enter(models.Folder{ID: "b", Name: "B"})
	n.Enter(models.Folder{ID: "c", Name: "C"})
	require.Equal(t, "Home / A / B / C", n.String())

	require.NoError(t, n.Jump(1))
	require.Equal(t, []Crumb{{"r1", "Home"}, {"a", "A"}}, n.Crumbs())
	require.Error(t, n.Jump(5))

	n.Up()
	n.Up()
	require.Equal(t, "r1", n.Current().ID)
	require.Len(t, n.Crumbs(), 1)
}

func TestWalk(t *testing.T) {
	tree := map[string]string{
		"r1": `[{"id":"a","name":"Reports"},{"id":"x","name":"Other"}]`,
		"a":  `{"folders":[{"id":"b","name":"2026"}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		body, ok := tree[in["current_folder_id"]]
		if !ok {
			body = `[]`
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	c := New(apiclient.New(srv.URL, srv.Client()))

	n := NewNavigator("r1")
	require.NoError(t, c.Walk(t.Context(), n, "Reports/2026/"))
	require.Equal(t, "Home / Reports / 2026", n.String())
	require.NoError(t, c.Walk(t.Context(), n, "../../Other"))
	require.Equal(t, "Home / Other", n.String())
	require.ErrorContains(t, c.Walk(t.Context(), n, "Missing"), `no folder "Missing" in Home / Other`)
}
