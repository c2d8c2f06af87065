package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/diff"
	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/metrics"
)

// SetCoverage replaces the monitored paths. Documents that fall out of
// coverage are removed at once and their pending reparses cancelled; paths
// that become covered are scanned before SetCoverage returns. An invalid
// set leaves the previous coverage in place.
func (l *Loop) SetCoverage(ctx context.Context, paths []coverage.MonitoredPath) error {
	set, err := coverage.NewSet(paths)
	if err != nil {
		l.logger.Warn("monitor: coverage rejected", slog.String("error", err.Error()))
		return err
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	old := l.coverage
	l.coverage = set

	for path, ps := range l.paths {
		if set.CoversRelevant(path) {
			continue
		}
		if ps.timer != nil {
			ps.timer.Stop()
			ps.timer = nil
		}
		ps.gen++
		ps.queued = false
		// A path still being reparsed keeps its entry until run finishes;
		// its result is discarded there.
		if ps.state == PendingReparse {
			delete(l.paths, path)
		}
	}

	pruned := l.repo.PruneUncovered(set.CoversRelevant)
	for _, doc := range pruned {
		l.registry.UnregisterDocument(doc.ID)
		l.feed.Append(diff.Removal(doc, l.now()))
		if l.mirror != nil {
			if err := l.mirror.DeleteDocument(doc.ID); err != nil {
				l.logger.Warn("monitor: mirror delete failed", slog.String("path", doc.Path), slog.String("error", err.Error()))
			}
		}
	}
	for _, pf := range l.feed.Failures() {
		if !set.CoversRelevant(pf.Path) && !isRootFailure(pf, set) {
			l.feed.ClearFailure(pf.Path)
		}
	}
	if len(pruned) > 0 {
		metrics.RecordPruned(len(pruned))
		metrics.SetDocuments(l.repo.Len())
	}
	l.mu.Unlock()

	l.logger.Info("monitor: coverage updated",
		slog.Int("paths", len(set.Paths())),
		slog.Int("pruned", len(pruned)))

	select {
	case l.reconfigure <- struct{}{}:
	default:
	}

	var added []coverage.MonitoredPath
	for _, p := range set.Enabled() {
		if !enabledIn(old, p) {
			added = append(added, p)
		}
	}
	return l.scanRoots(ctx, added)
}

func enabledIn(s *coverage.Set, p coverage.MonitoredPath) bool {
	for _, q := range s.Enabled() {
		if q.Path == p.Path && q.Type == p.Type {
			return true
		}
	}
	return false
}

// isRootFailure reports whether pf belongs to a monitored root that could not
// be listed. Those failures are owned by Scan.
func isRootFailure(pf feed.PathFailure, set *coverage.Set) bool {
	for _, p := range set.Enabled() {
		if p.Path == pf.Path {
			return true
		}
	}
	return false
}

// Scan reparses every relevant file beneath the parse-enabled paths and
// schedules a removal check for loaded documents whose file is gone.
func (l *Loop) Scan(ctx context.Context) error {
	return l.scanRoots(ctx, l.Coverage().Enabled())
}

func (l *Loop) scanRoots(ctx context.Context, roots []coverage.MonitoredPath) error {
	if len(roots) == 0 {
		return nil
	}

	onDisk := make(map[string]struct{})
	var files []string
	for _, root := range roots {
		metas, err := l.store.List(root.Path)
		if err != nil {
			l.reportRootFailure(root.Path, err)
			continue
		}
		l.feed.ClearFailure(root.Path)
		for _, m := range metas {
			if _, seen := onDisk[m.Path]; seen {
				continue
			}
			onDisk[m.Path] = struct{}{}
			files = append(files, m.Path)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		if !l.Coverage().CoversRelevant(path) || !l.begin(path) {
			continue
		}
		g.Go(func() error {
			l.run(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Documents under a scanned root whose file vanished while nobody was
	// watching go through the normal removal path.
	for _, doc := range l.repo.List() {
		if _, ok := onDisk[doc.Path]; ok || !underAny(doc.Path, roots) {
			continue
		}
		l.Notify(doc.Path)
	}

	l.logger.Info("monitor: scan complete", slog.Int("roots", len(roots)), slog.Int("files", len(files)))
	return ctx.Err()
}

func underAny(path string, roots []coverage.MonitoredPath) bool {
	for _, r := range roots {
		if path == r.Path || strings.HasPrefix(path, r.Path+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (l *Loop) reportRootFailure(root string, err error) {
	kind := apperr.KindOf(err)
	l.feed.ReportFailure(feed.PathFailure{
		Path:    root,
		Kind:    kind,
		Message: err.Error(),
		At:      l.now(),
	})
	metrics.RecordFailure(string(kind))
	l.logger.Warn("monitor: list failed", slog.String("root", root), slog.String("error", err.Error()))
}
