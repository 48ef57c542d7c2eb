package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates cached objects of the FileStore rooted at root when
// their files change on disk, e.g. when edited outside the server. It returns
// once the watcher is set up and stops when ctx is canceled.
func Watch(ctx context.Context, root string, cache *Cache) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	add := func(dir string) error {
		return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return w.Add(p)
		})
	}
	if err := add(root); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				rel, err := filepath.Rel(root, event.Name)
				if err != nil {
					continue
				}
				rel = filepath.ToSlash(rel)
				if strings.HasPrefix(rel, ".") {
					continue
				}
				if event.Has(fsnotify.Create) {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						if err := add(event.Name); err != nil {
							slog.WarnContext(ctx, "storage", "msg", "failed to watch directory", "dir", event.Name, "err", err)
						}
						continue
					}
				}
				bucket, p, ok := strings.Cut(rel, "/")
				if !ok {
					continue
				}
				slog.DebugContext(ctx, "storage", "msg", "invalidate", "bucket", bucket, "path", p, "op", event.Op.String())
				cache.Invalidate(bucket, p)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "storage", "msg", "watch error", "err", err)
			}
		}
	}()
	return nil
}
