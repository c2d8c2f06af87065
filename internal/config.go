package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/todo"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Monitor MonitorConfig     `yaml:"monitor"`
	History HistoryConfig     `yaml:"history"`
	Todo    TodoConfig        `yaml:"todo"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Todo.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFileConfig enables a rotating JSON log file next to stdout. An empty
// Path keeps logging on stdout only.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// MonitorConfig configures the synchronization loop.
type MonitorConfig struct {
	Debounce time.Duration            `yaml:"debounce"`
	Workers  int                      `yaml:"workers"`
	Paths    []coverage.MonitoredPath `yaml:"paths"`
}

// Validate validates the monitor configuration. Paths are checked the same
// way the loop checks them at runtime.
func (c *MonitorConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	); err != nil {
		return err
	}
	if _, err := coverage.NewSet(c.Paths); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

// HistoryConfig bounds the in-memory change history.
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
	)
}

// TodoConfig holds the default TODO keywords, used by documents without
// their own #+TODO lines. Leaving both lists empty selects TODO | DONE.
type TodoConfig struct {
	Active []string `yaml:"active"`
	Closed []string `yaml:"closed"`
}

// Validate validates the TODO configuration.
func (c *TodoConfig) Validate() error {
	if len(c.Active) == 0 && len(c.Closed) == 0 {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Active, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.Closed, validation.Each(validation.Required)),
	); err != nil {
		return fmt.Errorf("todo: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Active)+len(c.Closed))
	for _, kw := range append(append([]string{}, c.Active...), c.Closed...) {
		if _, dup := seen[kw]; dup {
			return fmt.Errorf("todo: keyword %q declared twice", kw)
		}
		seen[kw] = struct{}{}
	}
	return nil
}

// Configuration returns the default TODO configuration.
func (c *TodoConfig) Configuration() *models.TodoConfiguration {
	return todo.FromKeywords(c.Active, c.Closed)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Monitor: MonitorConfig{
			Debounce: 300 * time.Millisecond,
			Workers:  4,
			Paths: []coverage.MonitoredPath{
				{Path: "./org", Type: coverage.TypeDirectory, ParseEnabled: true},
			},
		},
		History: HistoryConfig{
			MaxEntries: 1000,
		},
		SQLite: SQLiteConfig{
			Path: "./orgsync.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
