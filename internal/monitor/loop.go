// Package monitor keeps the repository in step with the file system: change
// notifications are debounced per path, reparsed off the caller's goroutine
// and applied to the repository, the metadata registry and the change feed.
package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/diff"
	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/metadata"
	"github.com/starford/orgsync/internal/metrics"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/repository"
	"github.com/starford/orgsync/internal/storage"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 300 * time.Millisecond

// State is the lifecycle of one path.
type State int

const (
	Idle State = iota
	PendingReparse
	Reparsing
)

func (s State) String() string {
	switch s {
	case PendingReparse:
		return "pending_reparse"
	case Reparsing:
		return "reparsing"
	default:
		return "idle"
	}
}

// DocumentLoader turns file content into a fingerprinted document.
type DocumentLoader interface {
	Load(path string, data []byte, at time.Time) (*models.Document, error)
}

// Mirror receives every applied change, e.g. a search index.
type Mirror interface {
	ReplaceDocument(doc *models.Document) error
	DeleteDocument(id string) error
}

// Options configures a Loop. Loader, Store, Repo, Registry and Feed are required.
type Options struct {
	Loader   DocumentLoader
	Store    storage.Provider
	Repo     *repository.Repository
	Registry *metadata.Registry
	Feed     *feed.Feed
	Mirror   Mirror
	Logger   *slog.Logger
	Debounce time.Duration
	// Workers bounds concurrent reparses across paths.
	Workers int
	Clock   func() time.Time
}

type pathState struct {
	state  State
	timer  *time.Timer
	gen    uint64
	queued bool
}

// Loop is the file synchronization loop.
type Loop struct {
	loader   DocumentLoader
	store    storage.Provider
	repo     *repository.Repository
	registry *metadata.Registry
	feed     *feed.Feed
	mirror   Mirror
	logger   *slog.Logger
	debounce time.Duration
	workers  int
	now      func() time.Time

	sem         chan struct{}
	reconfigure chan struct{}

	// mu guards the fields below and serialises applying results, so the
	// repository, registry and feed always change together.
	mu       sync.Mutex
	paths    map[string]*pathState
	coverage *coverage.Set
	stopped  bool
	inflight sync.WaitGroup
}

// New returns a loop with an empty coverage set.
func New(opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Loop{
		loader:      opts.Loader,
		store:       opts.Store,
		repo:        opts.Repo,
		registry:    opts.Registry,
		feed:        opts.Feed,
		mirror:      opts.Mirror,
		logger:      opts.Logger,
		debounce:    opts.Debounce,
		workers:     opts.Workers,
		now:         opts.Clock,
		sem:         make(chan struct{}, opts.Workers),
		reconfigure: make(chan struct{}, 1),
		paths:       make(map[string]*pathState),
		coverage:    coverage.Empty(),
	}
}

// Coverage returns the active coverage set.
func (l *Loop) Coverage() *coverage.Set {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coverage
}

// State returns the lifecycle state of path.
func (l *Loop) State(path string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ps, ok := l.paths[filepath.Clean(path)]; ok {
		return ps.state
	}
	return Idle
}

// Idle reports whether no path is pending or being reparsed.
func (l *Loop) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths) == 0
}

// Notify reports a change to path. Paths outside coverage are ignored; the
// return value says whether the notification was accepted. A notification
// for a pending path restarts its debounce timer; one for a path being
// reparsed queues a follow-up reparse.
func (l *Loop) Notify(path string) bool {
	path = filepath.Clean(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || !l.coverage.CoversRelevant(path) {
		return false
	}
	metrics.RecordNotification()

	ps, ok := l.paths[path]
	if !ok {
		ps = &pathState{}
		l.paths[path] = ps
	}
	switch ps.state {
	case Idle, PendingReparse:
		l.armLocked(path, ps)
	case Reparsing:
		ps.queued = true
	}
	return true
}

// armLocked (re)starts the debounce timer. Timers that already fired but lost
// the race for mu see a stale generation and do nothing.
func (l *Loop) armLocked(path string, ps *pathState) {
	if ps.timer != nil {
		ps.timer.Stop()
	}
	ps.gen++
	gen := ps.gen
	ps.state = PendingReparse
	ps.timer = time.AfterFunc(l.debounce, func() { l.fire(path, gen) })
}

func (l *Loop) fire(path string, gen uint64) {
	l.mu.Lock()
	ps, ok := l.paths[path]
	if !ok || ps.gen != gen || ps.state != PendingReparse || l.stopped {
		l.mu.Unlock()
		return
	}
	ps.state = Reparsing
	ps.timer = nil
	l.inflight.Add(1)
	l.mu.Unlock()

	l.run(path)
}

// begin moves an idle path straight to Reparsing, for scans. It reports false
// when the path is already pending or reparsing; the existing cycle will pick
// up the current content.
func (l *Loop) begin(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	if ps, ok := l.paths[path]; ok {
		if ps.state == Reparsing {
			ps.queued = true
		}
		return false
	}
	l.paths[path] = &pathState{state: Reparsing}
	l.inflight.Add(1)
	return true
}

// run reparses path and then either returns it to Idle or, when a
// notification arrived meanwhile, re-arms the debounce timer.
func (l *Loop) run(path string) {
	defer l.inflight.Done()

	l.sem <- struct{}{}
	l.reparse(path)
	<-l.sem

	l.mu.Lock()
	defer l.mu.Unlock()
	ps, ok := l.paths[path]
	if !ok {
		return
	}
	if ps.queued && !l.stopped && l.coverage.CoversRelevant(path) {
		ps.queued = false
		l.armLocked(path, ps)
		return
	}
	delete(l.paths, path)
}

func (l *Loop) reparse(path string) {
	start := time.Now()
	data, err := l.store.Read(path)
	if err != nil {
		if storage.IsNotExist(err) {
			l.applyRemoval(path, start)
			return
		}
		l.fail(path, err, start)
		return
	}
	doc, err := l.loader.Load(path, data, l.now())
	if err != nil {
		l.fail(path, err, start)
		return
	}
	l.apply(doc, start)
}

// discardLocked reports whether a finished reparse must not be applied.
func (l *Loop) discardLocked(path string) bool {
	return l.stopped || !l.coverage.CoversRelevant(path)
}

func (l *Loop) apply(doc *models.Document, start time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.discardLocked(doc.Path) {
		l.logger.Debug("monitor: result discarded", slog.String("path", doc.Path))
		metrics.RecordReparse("discarded", time.Since(start).Seconds())
		return
	}

	prev, _ := l.repo.GetByPath(doc.Path)
	if prev != nil && prev.ETag == doc.ETag {
		l.feed.ClearFailure(doc.Path)
		metrics.RecordReparse("unchanged", time.Since(start).Seconds())
		return
	}

	info := diff.Diff(prev, doc, doc.ParsedAt)
	l.repo.Upsert(doc)
	l.registry.UnregisterDocument(doc.ID)
	l.registry.RegisterDocument(doc)
	seq := l.feed.Append(info)
	if l.mirror != nil {
		if err := l.mirror.ReplaceDocument(doc); err != nil {
			l.logger.Warn("monitor: mirror update failed", slog.String("path", doc.Path), slog.String("error", err.Error()))
		}
	}
	l.feed.ClearFailure(doc.Path)

	metrics.RecordReparse("applied", time.Since(start).Seconds())
	metrics.RecordChanges(len(info.New), len(info.Updated), len(info.Deleted))
	metrics.SetDocuments(l.repo.Len())
	l.logger.Debug("monitor: applied",
		slog.String("path", doc.Path),
		slog.Uint64("seq", seq),
		slog.Int("new", len(info.New)),
		slog.Int("updated", len(info.Updated)),
		slog.Int("deleted", len(info.Deleted)))
}

func (l *Loop) applyRemoval(path string, start time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.discardLocked(path) {
		metrics.RecordReparse("discarded", time.Since(start).Seconds())
		return
	}
	l.feed.ClearFailure(path)
	prev, ok := l.repo.GetByPath(path)
	if !ok {
		return
	}
	l.removeLocked(prev)
	metrics.RecordReparse("removed", time.Since(start).Seconds())
	l.logger.Debug("monitor: removed", slog.String("path", path))
}

// removeLocked drops doc from every store and announces the removal.
func (l *Loop) removeLocked(doc *models.Document) {
	l.repo.Remove(doc.ID)
	l.registry.UnregisterDocument(doc.ID)
	l.feed.Append(diff.Removal(doc, l.now()))
	if l.mirror != nil {
		if err := l.mirror.DeleteDocument(doc.ID); err != nil {
			l.logger.Warn("monitor: mirror delete failed", slog.String("path", doc.Path), slog.String("error", err.Error()))
		}
	}
	metrics.SetDocuments(l.repo.Len())
}

// fail keeps the previous revision of path and reports err on the side channel.
func (l *Loop) fail(path string, err error, start time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.discardLocked(path) {
		metrics.RecordReparse("discarded", time.Since(start).Seconds())
		return
	}
	kind := apperr.KindOf(err)
	l.feed.ReportFailure(feed.PathFailure{
		Path:       path,
		DocumentID: models.DocumentID(path),
		Kind:       kind,
		Message:    err.Error(),
		At:         l.now(),
	})
	metrics.RecordReparse("failed", time.Since(start).Seconds())
	metrics.RecordFailure(string(kind))

	level := slog.LevelWarn
	if kind == apperr.KindInvariant {
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, "monitor: reparse failed",
		slog.String("path", path),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()))
}

// Stop cancels pending reparses and waits for in-flight ones, whose results
// are discarded. Notifications after Stop are ignored.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	for path, ps := range l.paths {
		if ps.timer != nil {
			ps.timer.Stop()
		}
		ps.gen++
		if ps.state == PendingReparse {
			delete(l.paths, path)
		}
		ps.queued = false
	}
	l.mu.Unlock()

	l.inflight.Wait()
	l.logger.Info("monitor: stopped")
}
