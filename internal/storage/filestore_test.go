package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreObjectOperations(t *testing.T) {
	ctx := t.Context()
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	if err != nil {
		t.Fatalf("failed to create FileStore: %v", err)
	}

	if _, err := fs.Get(ctx, "b", "root-1/people.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: got %v, want ErrNotFound", err)
	}
	if err := fs.Update(ctx, "b", "root-1/people.csv", []byte("x"), "text/csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing: got %v, want ErrNotFound", err)
	}
	if err := fs.Create(ctx, "b", "root-1/people.csv", []byte("name\nAlice"), "text/csv"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fs.Create(ctx, "b", "root-1/people.csv", []byte("again"), "text/csv"); !errors.Is(err, ErrExists) {
		t.Fatalf("Create existing: got %v, want ErrExists", err)
	}
	if err := fs.Update(ctx, "b", "root-1/people.csv", []byte("name\nBob"), "text/csv"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	data, err := fs.Get(ctx, "b", "root-1/people.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "name\nBob" {
		t.Errorf("Get = %q", data)
	}
	if _, err := os.Stat(filepath.Join(fs.RootDir(), "b", "root-1", "people.csv")); err != nil {
		t.Errorf("object not stored under bucket directory: %v", err)
	}
	if _, err := fs.History(ctx, "b", "root-1/people.csv", 10); !errors.Is(err, ErrNoHistory) {
		t.Errorf("History without git: got %v", err)
	}
}

func TestFileStoreUpsert(t *testing.T) {
	ctx := t.Context()
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, content := range []string{"v1", "v2"} {
		if err := Upsert(ctx, fs, "b", "o/f.csv", []byte(content), "text/csv"); err != nil {
			t.Fatalf("Upsert(%q): %v", content, err)
		}
		got, err := fs.Get(ctx, "b", "o/f.csv")
		if err != nil || string(got) != content {
			t.Fatalf("Get = %q, %v; want %q", got, err, content)
		}
	}
}

func TestFileStoreRejectsBadPaths(t *testing.T) {
	ctx := t.Context()
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct{ bucket, path string }{
		{"b", ""},
		{"b", "../escape"},
		{"b", "a/../../escape"},
		{"b", ".git/config"},
		{"", "a/b"},
		{"a/b", "c"},
		{"..", "c"},
	} {
		if err := fs.Create(ctx, tc.bucket, tc.path, []byte("x"), ""); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Create(%q, %q) = %v, want ErrInvalidPath", tc.bucket, tc.path, err)
		}
	}
}

func TestFileStoreHistory(t *testing.T) {
	ctx := t.Context()
	fs, err := NewFileStore(t.TempDir(), FileStoreOptions{History: true, Author: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Create(ctx, "b", "o/f.csv", []byte("v1"), ""); err != nil {
		t.Fatal(err)
	}
	if err := fs.Update(ctx, "b", "o/f.csv", []byte("v2"), ""); err != nil {
		t.Fatal(err)
	}
	// Unchanged content commits nothing.
	if err := fs.Update(ctx, "b", "o/f.csv", []byte("v2"), ""); err != nil {
		t.Fatal(err)
	}
	if err := fs.Create(ctx, "b", "o/other.csv", []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	revs, err := fs.History(ctx, "b", "o/f.csv", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 {
		t.Fatalf("got %d revisions, want 2: %+v", len(revs), revs)
	}
	if revs[0].Message != "update b/o/f.csv" || revs[1].Message != "create b/o/f.csv" {
		t.Errorf("messages = %q, %q", revs[0].Message, revs[1].Message)
	}
	if revs[0].Author != "tester" || len(revs[0].Hash) != 40 || revs[0].Date.IsZero() {
		t.Errorf("revision = %+v", revs[0])
	}
	revs, err = fs.History(ctx, "b", "o/f.csv", 1)
	if err != nil || len(revs) != 1 {
		t.Errorf("History(limit=1) = %d, %v", len(revs), err)
	}
}

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{"/a/b/": "a/b", "a": "a", "a/b c.csv": "a/b c.csv"} {
		got, err := CleanPath(in)
		if err != nil || got != want {
			t.Errorf("CleanPath(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "/", "a//b", "a/./b", "..", "a/.hidden"} {
		if _, err := CleanPath(in); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("CleanPath(%q) = %v, want ErrInvalidPath", in, err)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("a/B.CSV"); got != "text/csv; charset=utf-8" {
		t.Errorf("ContentType(csv) = %q", got)
	}
	if got := ContentType("a/notes.txt"); got != "text/plain; charset=utf-8" {
		t.Errorf("ContentType(txt) = %q", got)
	}
}
