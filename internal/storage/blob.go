// Package storage stores the objects served by the storage proxy.
//
// Objects are addressed by bucket and a slash separated path whose first
// segment is the owner identifier.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/maruel/xbase/internal/models"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Create when the object already exists.
	ErrExists = errors.New("object already exists")
	// ErrNoHistory is returned by History when the store keeps no revisions.
	ErrNoHistory = errors.New("revision history not available")
	// ErrInvalidPath is returned for an empty or escaping object path.
	ErrInvalidPath = errors.New("invalid object path")
)

// BlobStore reads and writes objects.
type BlobStore interface {
	// Get returns the content of an object.
	Get(ctx context.Context, bucket, path string) ([]byte, error)
	// Update replaces an existing object. It returns ErrNotFound when the
	// object does not exist.
	Update(ctx context.Context, bucket, path string, data []byte, contentType string) error
	// Create stores a new object. It returns ErrExists when the object
	// already exists.
	Create(ctx context.Context, bucket, path string, data []byte, contentType string) error
	// History lists the revisions of an object, newest first.
	History(ctx context.Context, bucket, path string, limit int) ([]models.Revision, error)
}

// Upsert updates the object in place, creating it when it does not exist.
func Upsert(ctx context.Context, s BlobStore, bucket, p string, data []byte, contentType string) error {
	err := s.Update(ctx, bucket, p, data, contentType)
	if errors.Is(err, ErrNotFound) {
		err = s.Create(ctx, bucket, p, data, contentType)
	}
	return err
}

// Error is a storage failure. Message is what the backend reported and is
// meant to be shown to users verbatim.
type Error struct {
	StatusCode int
	Message    string
	// Err is ErrNotFound or ErrExists when the failure is one of those.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("storage error %d", e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CleanPath validates an object path and returns it in canonical form.
func CleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", ErrInvalidPath
	}
	c := path.Clean(p)
	if c != p || c == "." || strings.HasPrefix(c, "../") || c == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for seg := range strings.SplitSeq(c, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return c, nil
}

// ContentType returns the content type served for an object path.
func ContentType(p string) string {
	if strings.HasSuffix(strings.ToLower(p), ".csv") {
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
