// Package todo resolves headline keywords against TODO keyword sequences and
// implements the document-to-headline inheritance rule.
package todo

import (
	"fmt"
	"strings"

	"github.com/starford/orgsync/internal/models"
)

var (
	activePalette = []string{"#ff0000", "#ff9900", "#ffff00", "#0099ff", "#9966cc"}
	closedPalette = []string{"#00ff00", "#999999", "#666666"}
)

const (
	activeFallback = "#0099ff"
	closedFallback = "#666666"
)

func activeColor(i int) string {
	if i < len(activePalette) {
		return activePalette[i]
	}
	return activeFallback
}

func closedColor(i int) string {
	if i < len(closedPalette) {
		return closedPalette[i]
	}
	return closedFallback
}

// NewSequence builds a sequence from keyword lists. Active keywords are
// ordered first, closed keywords follow.
func NewSequence(name string, active, closed []string) models.TodoSequence {
	seq := models.TodoSequence{Name: name}
	for i, kw := range active {
		seq.Statuses = append(seq.Statuses, models.TodoStatus{
			Keyword: kw, StateType: models.StateActive, Order: uint32(i), Color: activeColor(i),
		})
	}
	for i, kw := range closed {
		seq.Statuses = append(seq.Statuses, models.TodoStatus{
			Keyword: kw, StateType: models.StateClosed, Order: uint32(len(active) + i), Color: closedColor(i),
		})
	}
	return seq
}

// FromKeywords returns a single-sequence configuration, or the built-in default
// when both lists are empty.
func FromKeywords(active, closed []string) *models.TodoConfiguration {
	if len(active) == 0 && len(closed) == 0 {
		return models.DefaultTodoConfiguration()
	}
	return &models.TodoConfiguration{
		Sequences:       []models.TodoSequence{NewSequence(models.DefaultSequenceName, active, closed)},
		DefaultSequence: models.DefaultSequenceName,
	}
}

// ParseKeywordLine splits a "#+TODO:" value such as "TODO NEXT(n) | DONE(d!)"
// into active and closed keywords. Fast-access keys in parentheses are
// dropped. Without a "|" the last keyword is the closed one.
func ParseKeywordLine(value string) (active, closed []string) {
	before, after, hasBar := strings.Cut(value, "|")
	active = keywords(before)
	if hasBar {
		return active, keywords(after)
	}
	if len(active) <= 1 {
		return nil, active
	}
	return active[:len(active)-1], active[len(active)-1:]
}

func keywords(s string) []string {
	var out []string
	for _, word := range strings.Fields(s) {
		kw, _, _ := strings.Cut(word, "(")
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ParseKeywordLines builds a configuration with one sequence per line. The
// first sequence is the default one. It returns nil when no line yields a
// keyword, so callers fall back to the process default.
func ParseKeywordLines(lines []string) *models.TodoConfiguration {
	cfg := &models.TodoConfiguration{DefaultSequence: models.DefaultSequenceName}
	for _, line := range lines {
		active, closed := ParseKeywordLine(line)
		if len(active) == 0 && len(closed) == 0 {
			continue
		}
		name := models.DefaultSequenceName
		if n := len(cfg.Sequences); n > 0 {
			name = fmt.Sprintf("sequence-%d", n+1)
		}
		cfg.Sequences = append(cfg.Sequences, NewSequence(name, active, closed))
	}
	if len(cfg.Sequences) == 0 {
		return nil
	}
	return cfg
}

// Resolver maps headline keywords to statuses. Default applies to documents
// that declare no keyword lines of their own.
type Resolver struct {
	Default *models.TodoConfiguration
}

// NewResolver returns a resolver using def, or the built-in configuration when def is nil.
func NewResolver(def *models.TodoConfiguration) *Resolver {
	if def == nil {
		def = models.DefaultTodoConfiguration()
	}
	return &Resolver{Default: def}
}

// ConfigFor returns the configuration in effect for doc.
func (r *Resolver) ConfigFor(doc *models.Document) *models.TodoConfiguration {
	if doc != nil && doc.TodoConfig != nil {
		return doc.TodoConfig
	}
	return r.Default
}

// Resolve looks keyword up in cfg.
func (r *Resolver) Resolve(keyword string, cfg *models.TodoConfiguration) (models.TodoStatus, bool) {
	if keyword == "" {
		return models.TodoStatus{}, false
	}
	return cfg.FindStatus(keyword)
}

// Status resolves the keyword of h within doc. It reports false when the
// headline has no keyword or the keyword matches no sequence.
func (r *Resolver) Status(doc *models.Document, h *models.Headline) (models.TodoStatus, bool) {
	return r.Resolve(h.Title.TodoKeyword, r.ConfigFor(doc))
}

// Keywords returns every keyword recognised for doc, for the parser.
func (r *Resolver) Keywords(doc *models.Document) []string {
	return r.ConfigFor(doc).Keywords()
}
