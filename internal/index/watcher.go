package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jotter/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, file string)

// Watch starts an fsnotify watcher on the notebook directory and re-indexes
// partition files changed on disk until ctx is cancelled. It calls cb (if
// non-nil) after each index mutation. Writes that leave a partition's
// checksum unchanged, such as the notebook's own saves already synced, are
// ignored.
//
// Rename events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db NoteIndex, store storage.Provider, layout Layout, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	notify := func(kind, file string) {
		if cb != nil {
			cb(kind, file)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			changed, err := Sync(db, store, layout, logger)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			for _, f := range changed {
				notify("updated", f)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			file := filepath.Base(ev.Name)
			if !layout.Match(file) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed, err := reindex(db, store, layout, file, logger)
				if err != nil {
					logger.Warn("watcher: index failed", slog.String("file", file), slog.String("error", err.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("file", file), slog.String("op", kind))
				notify(kind, file)

			case ev.Op&fsnotify.Remove != 0:
				if err := db.DeletePartition(file); err != nil {
					logger.Warn("watcher: delete failed", slog.String("file", file), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("file", file))
				notify("deleted", file)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old name only; the new name shows
				// up as a Create if it stays in the directory.
				if err := db.DeletePartition(file); err != nil {
					logger.Warn("watcher: rename delete failed", slog.String("file", file), slog.String("error", err.Error()))
				} else {
					notify("deleted", file)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex replaces file's rows if its checksum differs from the indexed one.
func reindex(db NoteIndex, store storage.Provider, layout Layout, file string, logger *slog.Logger) (bool, error) {
	data, err := store.Read(file)
	if err != nil {
		return false, err
	}
	old, err := db.GetChecksum(file)
	if err != nil {
		return false, err
	}
	if old == storage.Checksum(data) {
		return false, nil
	}
	return true, indexFile(db, layout, file, data, time.Now(), logger)
}
