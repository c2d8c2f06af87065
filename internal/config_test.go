package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/models"
	pkgconfig "github.com/starford/orgsync/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if _, ok := cfg.Todo.Configuration().FindStatus("DONE"); !ok {
		t.Error("empty todo section should fall back to TODO | DONE")
	}
}

func TestMonitorConfig_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Monitor.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero workers should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Monitor.Debounce = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("negative debounce should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Monitor.Paths = append(cfg.Monitor.Paths, coverage.MonitoredPath{Path: "./org", Type: coverage.TypeDirectory})
	err := cfg.Validate()
	if !errors.Is(err, apperr.ErrInvalidCoverage) {
		t.Errorf("duplicate path error = %v, want invalid coverage", err)
	}

	cfg = NewDefaultConfig()
	cfg.Monitor.Paths = []coverage.MonitoredPath{{Path: "notes.org", Type: "symlink"}}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown path type should fail")
	}
}

func TestTodoConfig(t *testing.T) {
	cfg := TodoConfig{Active: []string{"TODO", "NEXT"}, Closed: []string{"DONE", "CANCELLED"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid keywords: %v", err)
	}
	st, ok := cfg.Configuration().FindStatus("CANCELLED")
	if !ok || st.StateType != models.StateClosed {
		t.Errorf("CANCELLED = %+v, %v", st, ok)
	}

	dup := TodoConfig{Active: []string{"TODO"}, Closed: []string{"TODO"}}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate keyword should fail")
	}

	onlyClosed := TodoConfig{Closed: []string{"DONE"}}
	if err := onlyClosed.Validate(); err == nil {
		t.Error("closed keywords without active ones should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("ORGSYNC_TEST_TOKEN", "s3cret")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
monitor:
  debounce: 150ms
  workers: 2
  paths:
    - path: ` + dir + `
      type: directory
      parse_enabled: true
history:
  max_entries: 10
todo:
  active: [TODO, WAIT]
  closed: [DONE]
sqlite:
  path: ` + filepath.Join(dir, "index.db") + `
auth:
  mode: token
  token: ${ORGSYNC_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Monitor.Debounce != 150*time.Millisecond || cfg.Monitor.Workers != 2 {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	if len(cfg.Monitor.Paths) != 1 || !cfg.Monitor.Paths[0].ParseEnabled {
		t.Errorf("paths = %+v", cfg.Monitor.Paths)
	}
	if cfg.History.MaxEntries != 10 {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q, want expanded env value", cfg.Auth.Token)
	}
	if cfg.App.LogFile.MaxBackups != 3 {
		t.Errorf("unset log_file fields should keep defaults, got %+v", cfg.App.LogFile)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(filepath.Join("..", "config", "config.yaml"), cfg); err != nil {
		t.Fatalf("sample config: %v", err)
	}
	if cfg.Auth.AuthEnabled() {
		t.Error("sample config should default to auth disabled")
	}
	if _, ok := cfg.Todo.Configuration().FindStatus("WAITING"); !ok {
		t.Error("sample todo keywords not applied")
	}
}
