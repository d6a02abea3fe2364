package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchProgress streams the task's progress record: the current content is
// emitted immediately, then every rewrite until ctx is done. The returned
// channel is closed when watching stops.
func (s *Store) WatchProgress(ctx context.Context, taskID string) (<-chan []byte, error) {
	path, err := s.ProgressPath(taskID)
	if err != nil {
		return nil, err
	}
	return s.watchFile(ctx, path, func(p string) ([]byte, bool) {
		data, err := os.ReadFile(p)
		return data, err == nil
	})
}

// WatchLog streams the task's log: the full current content first, then
// only the appended suffix after each write.
func (s *Store) WatchLog(ctx context.Context, taskID string) (<-chan []byte, error) {
	path, err := s.LogPath(taskID)
	if err != nil {
		return nil, err
	}
	var offset int64
	return s.watchFile(ctx, path, func(p string) ([]byte, bool) {
		f, err := os.Open(p)
		if err != nil {
			return nil, false
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			return nil, false
		}
		if fi.Size() < offset {
			// Truncated or replaced; start over.
			offset = 0
		}
		if fi.Size() == offset {
			return nil, false
		}
		buf := make([]byte, fi.Size()-offset)
		if _, err := f.ReadAt(buf, offset); err != nil {
			return nil, false
		}
		offset = fi.Size()
		return buf, true
	})
}

// watchFile watches path's directory and pushes read()'s result on every
// create or write event touching path. The directory is watched instead of
// the file so events survive the file not existing yet.
func (s *Store) watchFile(ctx context.Context, path string, read func(string) ([]byte, bool)) (<-chan []byte, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		defer watcher.Close()

		if data, ok := read(path); ok {
			select {
			case out <- data:
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if data, ok := read(path); ok {
					select {
					case out <- data:
					case <-ctx.Done():
						return
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}
