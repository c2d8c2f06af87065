// Package coverage decides which paths are monitored and parsed.
package coverage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/orgsync/internal/apperr"
)

// PathType says whether a monitored path names one file or a directory tree.
type PathType string

const (
	TypeFile      PathType = "file"
	TypeDirectory PathType = "directory"
)

// MonitoredPath is one configured root.
type MonitoredPath struct {
	Path         string   `yaml:"path" json:"path"`
	Type         PathType `yaml:"type" json:"type"`
	ParseEnabled bool     `yaml:"parse_enabled" json:"parse_enabled"`
}

// Validate validates the monitored path.
func (p MonitoredPath) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Path, validation.Required),
		validation.Field(&p.Type, validation.Required, validation.In(TypeFile, TypeDirectory)),
	)
}

// Set is an immutable, validated collection of monitored paths.
type Set struct {
	paths []MonitoredPath
}

// NewSet cleans and validates paths. Relative paths are made absolute and
// duplicates are rejected. Errors wrap apperr.ErrInvalidCoverage.
func NewSet(paths []MonitoredPath) (*Set, error) {
	out := make([]MonitoredPath, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for i, p := range paths {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: paths[%d]: %v", apperr.ErrInvalidCoverage, i, err)
		}
		abs, err := filepath.Abs(p.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: paths[%d]: %v", apperr.ErrInvalidCoverage, i, err)
		}
		if _, dup := seen[abs]; dup {
			return nil, fmt.Errorf("%w: duplicate path %s", apperr.ErrInvalidCoverage, abs)
		}
		seen[abs] = struct{}{}
		p.Path = abs
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return &Set{paths: out}, nil
}

// Empty returns a set that covers nothing.
func Empty() *Set { return &Set{} }

// Paths returns a copy of every configured path.
func (s *Set) Paths() []MonitoredPath {
	return append([]MonitoredPath(nil), s.paths...)
}

// Enabled returns the parse-enabled paths.
func (s *Set) Enabled() []MonitoredPath {
	var out []MonitoredPath
	for _, p := range s.paths {
		if p.ParseEnabled {
			out = append(out, p)
		}
	}
	return out
}

// Covers reports whether path is monitored and parse-enabled: it equals a
// file entry or lies anywhere beneath a directory entry.
func (s *Set) Covers(path string) bool {
	path = filepath.Clean(path)
	for _, p := range s.paths {
		if p.ParseEnabled && p.contains(path) {
			return true
		}
	}
	return false
}

// CoversRelevant combines Covers with IsRelevantFile.
func (s *Set) CoversRelevant(path string) bool {
	return IsRelevantFile(path) && s.Covers(path)
}

func (p MonitoredPath) contains(path string) bool {
	if p.Type == TypeFile {
		return path == p.Path
	}
	return path == p.Path || strings.HasPrefix(path, p.Path+string(os.PathSeparator))
}

// WithPath returns a copy with p added.
func (s *Set) WithPath(p MonitoredPath) (*Set, error) {
	return NewSet(append(s.Paths(), p))
}

// Without returns a copy with path removed.
func (s *Set) Without(path string) (*Set, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidCoverage, err)
	}
	var out []MonitoredPath
	for _, p := range s.paths {
		if p.Path != abs {
			out = append(out, p)
		}
	}
	return NewSet(out)
}

// WithParseEnabled returns a copy with parsing toggled for path.
func (s *Set) WithParseEnabled(path string, enabled bool) (*Set, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidCoverage, err)
	}
	out := s.Paths()
	found := false
	for i := range out {
		if out[i].Path == abs {
			out[i].ParseEnabled = enabled
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s is not monitored", apperr.ErrInvalidCoverage, abs)
	}
	return NewSet(out)
}

// IsRelevantFile reports whether path names a visible .org file.
func IsRelevantFile(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".org") && !strings.HasPrefix(base, ".")
}
