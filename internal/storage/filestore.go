package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/maruel/xbase/internal/models"
	"github.com/natefinch/atomic"
)

// FileStore keeps objects on the local filesystem under
// <root>/<bucket>/<path>. When history is enabled every write is committed
// to a git repository rooted at root.
type FileStore struct {
	rootDir string
	mu      sync.Mutex
	git     *gitHistory
}

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	// History commits every write to git.
	History bool
	// Author is the commit author name; defaults to "xbase".
	Author string
}

// NewFileStore initializes a FileStore with the given root directory.
func NewFileStore(rootDir string, opts FileStoreOptions) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	fs := &FileStore{rootDir: rootDir}
	if opts.History {
		name := opts.Author
		if name == "" {
			name = "xbase"
		}
		g, err := openGit(rootDir, name, name+"@localhost")
		if err != nil {
			return nil, err
		}
		fs.git = g
	}
	return fs, nil
}

// RootDir returns the root directory path.
func (fs *FileStore) RootDir() string {
	return fs.rootDir
}

// objectPath returns the relative slash path and the absolute file path of
// an object.
func (fs *FileStore) objectPath(bucket, p string) (string, string, error) {
	b, err := CleanPath(bucket)
	if err != nil || path.Dir(b) != "." {
		return "", "", fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	c, err := CleanPath(p)
	if err != nil {
		return "", "", err
	}
	rel := b + "/" + c
	return rel, filepath.Join(fs.rootDir, filepath.FromSlash(rel)), nil
}

// Get implements BlobStore.
func (fs *FileStore) Get(ctx context.Context, bucket, p string) ([]byte, error) {
	_, abs, err := fs.objectPath(bucket, p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{StatusCode: 404, Message: "Object not found", Err: ErrNotFound}
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Update implements BlobStore.
func (fs *FileStore) Update(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	return fs.write(ctx, bucket, p, data, false)
}

// Create implements BlobStore.
func (fs *FileStore) Create(ctx context.Context, bucket, p string, data []byte, contentType string) error {
	return fs.write(ctx, bucket, p, data, true)
}

func (fs *FileStore) write(ctx context.Context, bucket, p string, data []byte, create bool) error {
	rel, abs, err := fs.objectPath(bucket, p)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, err = os.Stat(abs)
	exists := err == nil
	switch {
	case create && exists:
		return &Error{StatusCode: 409, Message: "The resource already exists", Err: ErrExists}
	case !create && !exists:
		return &Error{StatusCode: 404, Message: "Object not found", Err: ErrNotFound}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := atomic.WriteFile(abs, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if fs.git != nil {
		verb := "update"
		if create {
			verb = "create"
		}
		if err := fs.git.commit(rel, verb+" "+rel); err != nil {
			// The object is written; a missing revision is not fatal.
			slog.WarnContext(ctx, "storage", "msg", "failed to commit", "path", rel, "err", err)
		}
	}
	return nil
}

// History implements BlobStore.
func (fs *FileStore) History(ctx context.Context, bucket, p string, limit int) ([]models.Revision, error) {
	if fs.git == nil {
		return nil, ErrNoHistory
	}
	rel, _, err := fs.objectPath(bucket, p)
	if err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.git.log(rel, limit)
}
