package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moyoez/snapshare/tool"
)

// DefaultDebounce groups bursts of filesystem events into one change.
const DefaultDebounce = 300 * time.Millisecond

// Watch calls onChange after files appear, change or vanish in the shared
// directory, at most once per debounce window. It blocks until ctx is done.
// Changes made through Save and Delete are reported too.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	tool.DefaultLogger.Debugf("[Store] Watching %s", s.dir)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == tempDir || ev.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			tool.DefaultLogger.Warnf("[Store] Watcher error: %v", err)
		case <-timer.C:
			onChange()
		}
	}
}
