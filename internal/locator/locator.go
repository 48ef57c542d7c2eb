// Package locator decomposes storage locators.
//
// A locator is either a public object URL of the form
//
//	https://<host>/storage/v1/object/public/<bucket>/<owner>/<file name>
//
// or a bucket-relative object path "<owner>/<file name>".
package locator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid is returned for a locator that cannot be decomposed.
var ErrInvalid = errors.New("invalid locator")

// ErrBucketMismatch is returned when a locator names an unexpected bucket.
var ErrBucketMismatch = errors.New("bucket mismatch")

// Locator is a decomposed storage locator.
type Locator struct {
	// Bucket is empty for bucket-relative paths.
	Bucket string
	// Path is the object path relative to the bucket.
	Path string
}

// Parse decomposes a public URL or a bucket-relative path.
func Parse(loc string) (Locator, error) {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return Locator{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	if !strings.Contains(loc, "://") {
		p := strings.Trim(loc, "/")
		if p == "" {
			return Locator{}, fmt.Errorf("%w: empty path", ErrInvalid)
		}
		return Locator{Path: p}, nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	parts := strings.Split(u.Path, "/")
	idx := -1
	for i, p := range parts {
		if p == "public" {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(parts) || parts[idx+1] == "" {
		return Locator{}, fmt.Errorf("%w: no bucket after public segment in %q", ErrInvalid, u.Path)
	}
	rel := strings.Trim(strings.Join(parts[idx+2:], "/"), "/")
	if rel == "" {
		return Locator{}, fmt.Errorf("%w: no object path in %q", ErrInvalid, u.Path)
	}
	return Locator{Bucket: parts[idx+1], Path: rel}, nil
}

// CheckBucket returns ErrBucketMismatch when l names a bucket other than
// expected. Bucket-relative locators and an empty expected bucket always pass.
func (l Locator) CheckBucket(expected string) error {
	if l.Bucket == "" || expected == "" || l.Bucket == expected {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrBucketMismatch, expected, l.Bucket)
}

// Split returns the owner identifier (first path segment) and the file name
// (the remainder).
func (l Locator) Split() (owner, fileName string, err error) {
	owner, fileName, ok := strings.Cut(l.Path, "/")
	if !ok || owner == "" || fileName == "" {
		return "", "", fmt.Errorf("%w: %q has no owner/file name", ErrInvalid, l.Path)
	}
	return owner, fileName, nil
}

// Name returns the last path segment.
func (l Locator) Name() string {
	if i := strings.LastIndexByte(l.Path, '/'); i >= 0 {
		return l.Path[i+1:]
	}
	return l.Path
}

// Decompose returns the owner identifier and file name designated by loc.
func Decompose(loc string) (owner, fileName string, err error) {
	l, err := Parse(loc)
	if err != nil {
		return "", "", err
	}
	return l.Split()
}

// PublicURL returns the public URL of path in bucket under the storage host
// base, e.g. "https://x.supabase.co".
func PublicURL(base, bucket, path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}
