package profile

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"mcpinspect/pkg/logging"
)

// Watch reloads the store when auth.json changes on disk, so edits made by
// another process (or by hand) become visible without a restart. It blocks
// until the context is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	path, err := s.storage.Path(authFileName)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic writes replace the file via
	// rename, which would drop a file-level watch.
	dir, err := s.storage.Dir()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	logging.Debug("ProfileStore", "Watching %s for changes", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logging.Info("ProfileStore", "Detected external change to %s, reloading", authFileName)
			s.load()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("ProfileStore", "Watcher error: %v", err)
		}
	}
}
