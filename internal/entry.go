// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/orgsync/internal/api"
	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/mcpserver"
	"github.com/starford/orgsync/internal/metrics"
	"github.com/starford/orgsync/internal/orgservice"
	"github.com/starford/orgsync/internal/sse"
)

// Version is reported by the MCP server and the CLI.
var Version = "dev"

// Run starts the synchronization loop and the HTTP server with the given
// options. It returns after SIGINT, SIGTERM or ctx cancellation.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.init(opts); err != nil {
		return err
	}
	defer app.close()

	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("monitored_paths", len(cfg.Monitor.Paths)),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// SSE broker fed from the change feed.
	broker := sse.NewBroker(2 * time.Second).WithHistory(st.feed.Since)
	defer broker.Close()
	events, unsubscribe := st.feed.Subscribe(256)
	defer unsubscribe()

	apiRouter := api.NewRouter(st.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(st.svc))
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher feeding the loop.
	g.Go(func() error {
		return st.loop.Run(gCtx)
	})

	g.Go(func() error {
		broker.Forward(gCtx, events)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func readyHandler(svc *orgservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(struct {
			Status string           `json:"status"`
			Stats  orgservice.Stats `json:"stats"`
		}{"ok", svc.Stats(r.Context())})
	}
}

// ScanReport is the outcome of a one-shot scan.
type ScanReport struct {
	Stats     orgservice.Stats
	Documents []orgservice.DocumentListItem
	Failures  []feed.PathFailure
}

// Scan loads every monitored file once, refreshes the search index and
// returns what was found. Nothing is watched.
func Scan(ctx context.Context, opts ...Option) (*ScanReport, error) {
	app := &application{}
	if err := app.init(opts); err != nil {
		return nil, err
	}
	defer app.close()

	st, err := openStack(ctx, app.config, app.logger)
	if err != nil {
		return nil, err
	}
	defer st.close()

	docs, _, err := st.svc.ListDocuments(ctx, 0, 0, "")
	if err != nil {
		return nil, err
	}
	return &ScanReport{
		Stats:     st.svc.Stats(ctx),
		Documents: docs,
		Failures:  st.svc.Failures(ctx),
	}, nil
}

// ServeMCP runs the synchronization loop and serves MCP over stdin/stdout
// until stdin closes or ctx is cancelled.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	if err := app.init(opts); err != nil {
		return err
	}
	defer app.close()

	st, err := openStack(ctx, app.config, app.logger)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return st.loop.Run(gCtx)
	})
	g.Go(func() error {
		defer cancel()
		app.logger.Info("MCP server starting on stdio")
		return mcpserver.New(st.svc, Version).ServeStdio()
	})

	return g.Wait()
}
