// Package loader runs the full pipeline from raw bytes to a fingerprinted
// document: parse, build the tree, resolve TODO configuration, fingerprint
// and check the structural invariants.
package loader

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/starford/orgsync/internal/checksum"
	"github.com/starford/orgsync/internal/hierarchy"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/parser"
	"github.com/starford/orgsync/internal/todo"
)

// Loader builds documents from file content.
type Loader struct {
	Parser parser.Parser
}

// New returns a loader using p.
func New(p parser.Parser) *Loader {
	return &Loader{Parser: p}
}

// Load parses data read from path. Errors wrap apperr.ErrParseFailure for bad
// input and apperr.ErrInvariant for trees that break structural rules.
func (l *Loader) Load(path string, data []byte, at time.Time) (*models.Document, error) {
	path = filepath.Clean(path)
	res, err := l.Parser.Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	id := models.DocumentID(path)
	tree, err := hierarchy.Build(id, res.Events)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	props := res.Scope.Properties
	if props == nil {
		props = map[string]string{}
	}
	fileTags := res.Scope.FileTags
	if fileTags == nil {
		fileTags = []string{}
	}
	content := res.Scope.Content
	if content == "" {
		content = tree.Preamble
	}

	doc := &models.Document{
		ID:         id,
		Path:       path,
		Title:      res.Scope.Title,
		Content:    content,
		Headlines:  tree.Headlines,
		FileTags:   fileTags,
		Properties: props,
		Category:   res.Scope.Category,
		TodoConfig: todo.ParseKeywordLines(res.Scope.TodoLines),
		Checksum:   checksum.Sum(data),
		ParsedAt:   at,
	}

	if err := hierarchy.Validate(doc.Headlines); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	checksum.Compute(doc)
	return doc, nil
}
