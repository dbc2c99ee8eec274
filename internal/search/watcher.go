package search

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/scanner"
	"github.com/starford/othala/internal/storage"
)

// EventCallback is called after a watcher-driven cache change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the library root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after each
// successful cache mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename and new-directory events trigger a debounced reconciliation
// pass that brings the cache back in line with the library.
func Watch(ctx context.Context, db *DB, store storage.Provider, libRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, libRoot); err != nil {
		return err
	}

	sc := scanner.New(libRoot, logger)

	logger.Info("watcher: started", slog.String("root", libRoot))

	// reconcileTimer debounces reconciliation after renames and dir moves.
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

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := syncLibrary(db, store, sc, logger, cb); err != nil {
				logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories: add to the watch list, then reconcile to
			// pick up any files that arrived with them.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					scheduleReconcile()
					continue
				}
			}

			// Only markdown and hook scripts matter from here on.
			if !strings.HasSuffix(absPath, ".md") && !strings.HasSuffix(absPath, ".py") {
				continue
			}

			rel, relErr := filepath.Rel(libRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				target, ok := eventTarget(store, rel)
				if !ok {
					continue
				}
				data, readErr := store.Read(target)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", target), slog.String("error", readErr.Error()))
					continue
				}
				rec, recErr := sc.RecordFor(target)
				if recErr != nil {
					logger.Warn("watcher: record failed", slog.String("path", target), slog.String("error", recErr.Error()))
					continue
				}
				if idxErr := indexComponent(db, rec, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", target), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 && target == rel {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", target), slog.String("op", kind))
				if cb != nil {
					cb(kind, target)
				}

			case ev.Op&fsnotify.Remove != 0:
				if _, ok := scanner.Match(rel); !ok {
					continue
				}
				if delErr := db.DeleteComponent(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). Delete the old entry
				// immediately and schedule a reconciliation pass to
				// catch any stragglers.
				if _, ok := scanner.Match(rel); !ok {
					continue
				}
				if delErr := db.DeleteComponent(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", rel))
					if cb != nil {
						cb("deleted", rel)
					}
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

// eventTarget maps an event path to the component it affects. Markdown under
// hooks/ documents its same-stem script, so editing the doc re-indexes the
// script itself.
func eventTarget(store storage.Provider, rel string) (string, bool) {
	if _, ok := scanner.Match(rel); ok {
		return rel, true
	}
	if strings.HasPrefix(rel, models.TypeHook.Dir()+"/") && strings.HasSuffix(rel, ".md") {
		twin := strings.TrimSuffix(rel, ".md") + ".py"
		if _, ok := scanner.Match(twin); ok {
			if exists, _ := store.Exists(twin); exists {
				return twin, true
			}
		}
	}
	return "", false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
