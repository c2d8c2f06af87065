package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/index"
	"github.com/starford/orgsync/internal/loader"
	"github.com/starford/orgsync/internal/metadata"
	"github.com/starford/orgsync/internal/monitor"
	"github.com/starford/orgsync/internal/orgservice"
	"github.com/starford/orgsync/internal/parser"
	"github.com/starford/orgsync/internal/repository"
	"github.com/starford/orgsync/internal/storage"
	"github.com/starford/orgsync/internal/todo"
)

func (a *application) init(opts []Option) error {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	if a.logOutput == nil {
		a.logOutput = os.Stdout
	}
	if a.logger == nil {
		a.logger, a.closeLog = newLogger(a.config.App, a.logOutput)
	}
	return nil
}

func (a *application) close() {
	if a.closeLog != nil {
		_ = a.closeLog.Close()
	}
}

// newLogger builds the structured JSON logger, teeing into a rotating file
// when one is configured.
func newLogger(cfg ApplicationConfig, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer
	if cfg.LogFile.Path != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
		out = io.MultiWriter(out, lj)
		closer = lj
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})), closer
}

// stack is the synchronized document model and everything reading from it.
type stack struct {
	repo     *repository.Repository
	registry *metadata.Registry
	feed     *feed.Feed
	db       *index.DB
	loop     *monitor.Loop
	svc      *orgservice.Service
}

// openStack wires the loop over the configured paths and runs the initial
// scan. Index rows of documents that no longer exist are dropped afterwards.
func openStack(ctx context.Context, cfg *Config, logger *slog.Logger) (*stack, error) {
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	resolver := todo.NewResolver(cfg.Todo.Configuration())
	s := &stack{
		repo:     repository.New(),
		registry: metadata.NewRegistry(),
		feed:     feed.New(cfg.History.MaxEntries),
		db:       db,
	}
	s.loop = monitor.New(monitor.Options{
		Loader:   loader.New(parser.NewOrgParser(logger, resolver.Default.Keywords())),
		Store:    storage.NewFS(),
		Repo:     s.repo,
		Registry: s.registry,
		Feed:     s.feed,
		Mirror:   db,
		Logger:   logger,
		Debounce: cfg.Monitor.Debounce,
		Workers:  cfg.Monitor.Workers,
	})
	s.svc = orgservice.NewService(orgservice.Deps{
		Repo:     s.repo,
		Registry: s.registry,
		Feed:     s.feed,
		Resolver: resolver,
		Index:    db,
		Paths:    s.loop,
	})

	if err := s.loop.SetCoverage(ctx, cfg.Monitor.Paths); err != nil {
		s.close()
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		s.close()
		return nil, err
	}

	keep := make(map[string]struct{}, s.repo.Len())
	for _, doc := range s.repo.List() {
		keep[doc.ID] = struct{}{}
	}
	pruned, err := db.Prune(keep)
	if err != nil {
		logger.Warn("index: prune failed", slog.String("error", err.Error()))
	}

	st := s.svc.Stats(ctx)
	logger.Info("Initial scan complete",
		slog.Int("documents", st.Documents),
		slog.Int("headlines", st.Headlines),
		slog.Int("failures", st.Failures),
		slog.Int("index_pruned", pruned))
	for _, f := range s.feed.Failures() {
		logger.Warn("scan: path failed",
			slog.String("path", f.Path),
			slog.String("kind", string(f.Kind)),
			slog.String("error", f.Message))
	}
	return s, nil
}

func (s *stack) close() error {
	s.loop.Stop()
	return s.db.Close()
}
