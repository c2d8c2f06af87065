package monitor

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/orgsync/internal/coverage"
)

// Run watches the covered paths and feeds change events into Notify until ctx
// is cancelled, then stops the loop. Directory entries are watched
// recursively and file entries through their parent directory. Directories
// created at runtime are added to the watch list and their files notified.
// Once the watches are in place the covered paths are scanned again.
func (l *Loop) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	defer l.Stop()

	l.configureWatches(w)
	l.logger.Info("watcher: started", slog.Int("dirs", len(w.WatchList())))

	// Saves that landed between the initial scan and the watches going live
	// produced no event; a catch-up scan picks them up.
	go func() {
		if err := l.Scan(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("watcher: catch-up scan failed", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("watcher: stopped")
			return nil

		case <-l.reconfigure:
			l.configureWatches(w)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			l.handleEvent(w, ev)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (l *Loop) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			if !l.wantsDir(path) {
				return
			}
			if addErr := addDirsRecursive(w, path); addErr != nil {
				l.logger.Warn("watcher: add new dir failed",
					slog.String("path", path),
					slog.String("error", addErr.Error()))
			} else {
				l.logger.Debug("watcher: watching new dir", slog.String("path", path))
			}
			l.notifyTree(path)
			return
		}
	}

	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if coverage.IsRelevantFile(path) {
		l.Notify(path)
		return
	}

	// A removed or renamed directory takes its documents with it; the
	// watcher reports only the directory itself.
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		prefix := path + string(filepath.Separator)
		for _, doc := range l.repo.List() {
			if strings.HasPrefix(doc.Path, prefix) {
				l.Notify(doc.Path)
			}
		}
	}
}

// notifyTree notifies every relevant file already present under dir.
func (l *Loop) notifyTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		l.Notify(p)
		return nil
	})
}

// wantsDir reports whether dir lies beneath a covered directory entry.
func (l *Loop) wantsDir(dir string) bool {
	for _, p := range l.Coverage().Enabled() {
		if p.Type == coverage.TypeDirectory &&
			(dir == p.Path || strings.HasPrefix(dir, p.Path+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// configureWatches brings the watch list in line with the current coverage.
func (l *Loop) configureWatches(w *fsnotify.Watcher) {
	want := make(map[string]struct{})
	for _, p := range l.Coverage().Enabled() {
		switch p.Type {
		case coverage.TypeFile:
			want[filepath.Dir(p.Path)] = struct{}{}
		case coverage.TypeDirectory:
			_ = filepath.WalkDir(p.Path, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if path == p.Path {
						l.logger.Warn("watcher: root unavailable", slog.String("path", path), slog.String("error", err.Error()))
					}
					return nil
				}
				if !d.IsDir() {
					return nil
				}
				if path != p.Path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				want[path] = struct{}{}
				return nil
			})
		}
	}

	for _, dir := range w.WatchList() {
		if _, ok := want[dir]; !ok {
			_ = w.Remove(dir)
		}
	}
	watched := make(map[string]struct{})
	for _, dir := range w.WatchList() {
		watched[dir] = struct{}{}
	}
	for dir := range want {
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := w.Add(dir); err != nil {
			l.logger.Warn("watcher: add failed", slog.String("path", dir), slog.String("error", err.Error()))
		}
	}
}

// addDirsRecursive adds root and all its visible subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
