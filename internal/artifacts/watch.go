package artifacts

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForChange blocks until the named artifact in the task namespace is
// written, created, or replaced, or until the context is cancelled. The
// watch is directory-scoped so editors that replace the file atomically
// are still observed.
func (s *Store) WaitForChange(ctx context.Context, slug, name string) error {
	if err := s.EnsureTaskDir(slug); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.TaskDir(slug)); err != nil {
		return fmt.Errorf("watch task directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}
