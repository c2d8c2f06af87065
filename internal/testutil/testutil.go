// Package testutil provides shared test helpers for setting up note trees,
// databases and a fully wired synchronization stack.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/orgsync/internal/coverage"
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

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "orgsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary directory holding files, keyed by relative path.
func TestVault(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
	return dir
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Env is a wired stack over a temporary vault, already scanned once.
type Env struct {
	Dir      string
	Repo     *repository.Repository
	Registry *metadata.Registry
	Feed     *feed.Feed
	DB       *index.DB
	Loop     *monitor.Loop
	Service  *orgservice.Service
}

// DiscardLogger drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// NewEnv builds the stack over a vault containing files and runs the initial scan.
func NewEnv(t *testing.T, files map[string]string) *Env {
	t.Helper()
	e := &Env{
		Dir:      TestVault(t, files),
		Repo:     repository.New(),
		Registry: metadata.NewRegistry(),
		Feed:     feed.New(100),
		DB:       TestDB(t),
	}
	resolver := todo.NewResolver(nil)
	e.Loop = monitor.New(monitor.Options{
		Loader:   loader.New(parser.NewOrgParser(DiscardLogger(), resolver.Default.Keywords())),
		Store:    storage.NewFS(),
		Repo:     e.Repo,
		Registry: e.Registry,
		Feed:     e.Feed,
		Mirror:   e.DB,
		Logger:   DiscardLogger(),
	})
	t.Cleanup(e.Loop.Stop)

	err := e.Loop.SetCoverage(context.Background(), []coverage.MonitoredPath{
		{Path: e.Dir, Type: coverage.TypeDirectory, ParseEnabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	e.Service = orgservice.NewService(orgservice.Deps{
		Repo:     e.Repo,
		Registry: e.Registry,
		Feed:     e.Feed,
		Resolver: resolver,
		Index:    e.DB,
		Paths:    e.Loop,
	})
	return e
}

// Path returns the absolute path of rel inside the vault.
func (e *Env) Path(rel string) string {
	return filepath.Join(e.Dir, rel)
}
