package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/maruel/xbase/internal/table"
	"github.com/stretchr/testify/require"
)

const peopleCSV = "name,age\nAlice,30\nBob,25"

// fakeServer serves both the storage proxy and the backend routes.
type fakeServer struct {
	mu        sync.Mutex
	files     map[string]string
	saveErr   string
	updates   []string
	asks      []map[string]any
	histories int
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	f := &fakeServer{files: map[string]string{"root-1/people.csv": peopleCSV, "root-1/notes.txt": "hello"}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		text, ok := f.files[r.URL.Query().Get("url")]
		if !ok {
			http.Error(w, "Download failed", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, text)
	})
	mux.HandleFunc("POST /api/files/update", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.saveErr != "" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": f.saveErr})
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(file)
		path := r.FormValue("user_root_id") + "/" + r.FormValue("file_name")
		f.files[path] = string(b)
		f.updates = append(f.updates, string(b))
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "CSV file updated successfully", "path": path})
	})
	mux.HandleFunc("POST /api/chat-history", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.histories++
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("POST /root", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"root_id":"root-1"}`)
	})
	mux.HandleFunc("POST /folders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"f1","name":"Reports"}]`)
	})
	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"7","name":"people.csv","bucket_url":"root-1/people.csv"},{"id":"8","name":"notes.txt","bucket_url":"root-1/notes.txt"}]`)
	})
	mux.HandleFunc("POST /ask_ai", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.asks = append(f.asks, req)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"response":"2 people","image_box":[{"name":"Alice"}],"chat_history":["how many?","2 people"]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

type result struct {
	code   int
	out    string
	errOut string
}

func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) result {
	t.Helper()
	dir := t.TempDir()
	env := []string{"XDG_CONFIG_HOME=" + dir, "XDG_DATA_HOME=" + dir}
	all := append([]string{"-C", dir, "--proxy", srv.URL, "--backend", srv.URL, "--user", "u1"}, args...)
	var out, errOut bytes.Buffer
	code := Run(t.Context(), strings.NewReader(stdin), &out, &errOut, all, env)
	return result{code, out.String(), errOut.String()}
}

func TestShow(t *testing.T) {
	_, srv := newFakeServer(t)
	r := run(t, srv, "", "show", "root-1/people.csv")
	require.Equal(t, 0, r.code, r.errOut)
	require.Contains(t, r.out, "people.csv columns: name, age")
	require.Contains(t, r.out, "Alice")
	require.Contains(t, r.out, "25")

	r = run(t, srv, "", "show", "--raw", "root-1/notes.txt")
	require.Equal(t, 0, r.code, r.errOut)
	require.NotContains(t, r.out, "columns:")
	require.Contains(t, r.out, "hello")
}

func TestShowErrors(t *testing.T) {
	_, srv := newFakeServer(t)
	r := run(t, srv, "", "show", "root-1/missing.csv")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "HTTP 500: Download failed")

	r = run(t, srv, "", "show", "https://x.supabase.co/storage/v1/object/public/other/root-1/people.csv")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "bucket")

	r = run(t, srv, "", "show")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "exactly one locator")
}

func TestEdit(t *testing.T) {
	f, srv := newFakeServer(t)
	script := "cell 1 age\nset 26\ndiff\nsave\nquit\n"
	r := run(t, srv, script, "edit", "root-1/people.csv")
	require.Equal(t, 0, r.code, r.errOut)
	require.Contains(t, r.out, `1:age = "25"`)
	require.Contains(t, r.out, "Bob,26")
	require.Contains(t, r.out, "saved 2 rows")
	require.Equal(t, []string{"name,age\nAlice,30\nBob,26"}, f.updates)
}

func TestEditQuotedValue(t *testing.T) {
	f, srv := newFakeServer(t)
	script := "cell 0 name\nset \"Smith, \\\"J\\\"\"\nsave\n"
	r := run(t, srv, script, "edit", "root-1/people.csv")
	require.Equal(t, 0, r.code, r.errOut)
	require.Equal(t, []string{"name,age\n\"Smith, \"\"J\"\"\",30\nBob,25"}, f.updates)
}

func TestEditSaveFailure(t *testing.T) {
	f, srv := newFakeServer(t)
	f.saveErr = "disk full"
	script := "cell 1 age\nset 26\nsave\nshow\nquit\n"
	r := run(t, srv, script, "edit", "root-1/people.csv")
	require.Contains(t, r.out, "save failed: disk full")
	// The edit survives the failed save.
	require.Contains(t, r.out, "26")
	require.Contains(t, r.errOut, "unsaved changes to people.csv")
	require.Equal(t, 1, r.code)
	require.Empty(t, f.updates)
}

func TestEditCancel(t *testing.T) {
	f, srv := newFakeServer(t)
	script := "set 1\ncell 9 age\ncell 1 nope\ncell 1 age\nset 99\ncancel\ndiff\nsave\n"
	r := run(t, srv, script, "edit", "root-1/people.csv")
	require.Equal(t, 0, r.code, r.errOut)
	require.Contains(t, r.out, "no active cell")
	require.Contains(t, r.out, "out of range")
	require.Contains(t, r.out, `unknown column "nope"`)
	require.Contains(t, r.out, "changes discarded")
	require.Contains(t, r.out, "no changes")
	require.Equal(t, []string{peopleCSV}, f.updates)
}

func TestExport(t *testing.T) {
	_, srv := newFakeServer(t)
	dst := filepath.Join(t.TempDir(), "people.csv")
	r := run(t, srv, "", "export", "root-1/people.csv", "--csv", dst)
	require.Equal(t, 0, r.code, r.errOut)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, peopleCSV, string(b))

	dst = filepath.Join(t.TempDir(), "people.xlsx")
	r = run(t, srv, "", "export", "root-1/people.csv", "--xlsx", dst)
	require.Equal(t, 0, r.code, r.errOut)
	fh, err := os.Open(dst)
	require.NoError(t, err)
	defer fh.Close()
	tbl, err := table.ReadXLSX(fh)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "age"}, tbl.Headers)
	require.Equal(t, []table.Row{{"name": "Alice", "age": "30"}, {"name": "Bob", "age": "25"}}, tbl.Rows)

	r = run(t, srv, "", "export", "root-1/people.csv")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "exactly one of --xlsx and --csv")
}

func TestSheetName(t *testing.T) {
	require.Equal(t, "people", sheetName("people.csv"))
	require.Equal(t, "a_b", sheetName("a/b.csv"))
	require.Equal(t, table.DefaultSheet, sheetName(".csv"))
	require.Len(t, []rune(sheetName(strings.Repeat("é", 40))), 31)
}

func TestLs(t *testing.T) {
	_, srv := newFakeServer(t)
	r := run(t, srv, "", "ls")
	require.Equal(t, 0, r.code, r.errOut)
	for _, want := range []string{"Reports", "people.csv", "notes.txt", "root-1/people.csv"} {
		require.Contains(t, r.out, want)
	}

	r = run(t, srv, "", "ls", "--match", "*.csv")
	require.Equal(t, 0, r.code, r.errOut)
	require.Contains(t, r.out, "people.csv")
	require.NotContains(t, r.out, "notes.txt")
	require.NotContains(t, r.out, "Reports")

	r = run(t, srv, "", "ls", "--match", "[")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "invalid glob")
}

func TestLsNoBackend(t *testing.T) {
	var out, errOut bytes.Buffer
	dir := t.TempDir()
	code := Run(t.Context(), strings.NewReader(""), &out, &errOut, []string{"-C", dir, "ls"}, []string{"XDG_CONFIG_HOME=" + dir, "XDG_DATA_HOME=" + dir})
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "backend URL not configured")
}

func TestAsk(t *testing.T) {
	f, srv := newFakeServer(t)
	r := run(t, srv, "", "ask", "--context", "root-1/people.csv", "how", "many?")
	require.Equal(t, 0, r.code, r.errOut)
	require.Contains(t, r.out, "2 people")
	require.Contains(t, r.out, "Alice")
	require.Len(t, f.asks, 1)
	require.Equal(t, "how many?", f.asks[0]["query"])
	require.Equal(t, "people.csv columns: name, age", f.asks[0]["db_info"])
	require.Equal(t, "root-1", f.asks[0]["parent_id"])
	require.Equal(t, 1, f.histories)

	r = run(t, srv, "", "ask")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "expected a query")
}

func TestUsage(t *testing.T) {
	_, srv := newFakeServer(t)
	r := run(t, srv, "", "help")
	require.Equal(t, 0, r.code)
	require.Contains(t, r.out, "edit <locator>")

	r = run(t, srv, "", "edit", "--help")
	require.Equal(t, 0, r.code)
	require.Contains(t, r.out, "cell <row> <column>")

	r = run(t, srv, "", "frobnicate")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, "unknown command: frobnicate")
}

func TestLsPath(t *testing.T) {
	_, srv := newFakeServer(t)
	r := run(t, srv, "", "ls", "--path", "Reports")
	require.Equal(t, 0, r.code, r.errOut)
	require.Contains(t, r.out, "Home / Reports")

	r = run(t, srv, "", "ls", "--path", "Nope")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.errOut, `no folder "Nope"`)
}
