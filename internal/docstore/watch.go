// Schedules index rebuilds when partition files change on disk.

package docstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Rebuilder is the per-collection surface the watcher needs.
type Rebuilder interface {
	Name() string
	RebuildIndex() (*Index, error)
}

// WatchCollections rebuilds a collection's index when its partition files
// are modified by another program (editors, sync tools). Events are
// debounced so a burst of writes triggers a single rebuild per collection.
// The watcher cannot tell the store's own writes from external ones;
// rebuilds are idempotent, so the extra ones only cost I/O.
//
// The watcher stops when ctx is cancelled.
func WatchCollections(ctx context.Context, baseDir string, stores []Rebuilder, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	byDir := make(map[string]Rebuilder, len(stores))
	for _, st := range stores {
		dir := CollectionDir(baseDir, st.Name())
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			_ = w.Close()
			return err
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return err
		}
		byDir[dir] = st
	}

	go func() {
		defer func() { _ = w.Close() }()
		dirty := make(map[string]struct{})
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				dirty[filepath.Dir(event.Name)] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(debounce)
					fire = timer.C
				} else {
					timer.Reset(debounce)
				}
			case <-fire:
				timer = nil
				fire = nil
				for dir := range dirty {
					delete(dirty, dir)
					st, ok := byDir[dir]
					if !ok {
						continue
					}
					if _, err := st.RebuildIndex(); err != nil {
						slog.WarnContext(ctx, "Failed to rebuild index after partition change", "collection", st.Name(), "err", err)
					} else {
						slog.DebugContext(ctx, "Rebuilt index after partition change", "collection", st.Name())
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Partition watcher error", "err", err)
			}
		}
	}()
	return nil
}
