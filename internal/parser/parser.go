// Package parser turns org-mode source into file-scope fields and a flat
// stream of headline events for the hierarchy builder.
package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/niklasfasching/go-org/org"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/hierarchy"
	"github.com/starford/orgsync/internal/models"
)

// Parser converts raw file content into a Result.
type Parser interface {
	Parse(path string, data []byte) (*Result, error)
}

// Scope holds the file-level fields of a document.
type Scope struct {
	Title      string
	FileTags   []string
	Properties map[string]string
	Category   string
	// TodoLines are the raw values of #+TODO, #+SEQ_TODO and #+TYP_TODO lines.
	TodoLines []string
	// Content is the body text before the first headline.
	Content string
}

// Result holds the output of parsing one org file.
type Result struct {
	Scope  Scope
	Events []hierarchy.Event
}

// keywords consumed into Scope instead of Properties.
var scopeKeywords = map[string]struct{}{
	"TITLE": {}, "FILETAGS": {}, "CATEGORY": {}, "TODO": {}, "SEQ_TODO": {}, "TYP_TODO": {},
}

var todoKeywordNames = []string{"TODO", "SEQ_TODO", "TYP_TODO"}

// OrgParser parses org-mode with go-org.
type OrgParser struct {
	logger *slog.Logger
	// keywords recognised as TODO states when the file declares none.
	keywords []string
}

// NewOrgParser returns a parser that recognises keywords as TODO states in
// files without their own keyword lines. go-org warnings are logged to logger.
func NewOrgParser(logger *slog.Logger, keywords []string) *OrgParser {
	if logger == nil {
		logger = slog.Default()
	}
	if len(keywords) == 0 {
		keywords = models.DefaultTodoConfiguration().Keywords()
	}
	return &OrgParser{logger: logger, keywords: keywords}
}

// Parse implements Parser. Invalid UTF-8 and go-org failures are reported as
// apperr.ErrParseFailure.
func (p *OrgParser) Parse(path string, data []byte) (res *Result, err error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s: invalid utf-8", apperr.ErrParseFailure, path)
	}

	normalised, declared := normaliseTodoLines(data)
	if len(declared) == 0 {
		declared = p.keywords
	}

	conf := org.New()
	conf.Log = slog.NewLogLogger(p.logger.With(slog.String("path", path)).Handler(), slog.LevelWarn)
	conf.DefaultSettings["TODO"] = strings.Join(declared, " ")

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %s: %v", apperr.ErrParseFailure, path, r)
		}
	}()
	doc := conf.Parse(bytes.NewReader(normalised), path)
	if doc.Error != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrParseFailure, path, doc.Error)
	}

	scope := extractScope(doc)
	events := extractEvents(doc.Nodes)
	scope.Title = deriveTitle(scope.Title, events, path)

	return &Result{Scope: scope, Events: events}, nil
}

// normaliseTodoLines strips fast-access keys such as "(t)" from keyword
// lines, since go-org matches headline states against the bare words, and
// returns the keywords those lines declare.
func normaliseTodoLines(data []byte) ([]byte, []string) {
	lines := strings.Split(string(data), "\n")
	var declared []string
	for i, line := range lines {
		key, value, ok := keywordLine(line)
		if !ok || !isTodoKeyword(key) {
			continue
		}
		var words []string
		for _, word := range strings.Fields(value) {
			if word == "|" {
				words = append(words, word)
				continue
			}
			kw, _, _ := strings.Cut(word, "(")
			if kw != "" {
				words = append(words, kw)
				declared = append(declared, kw)
			}
		}
		lines[i] = "#+" + key + ": " + strings.Join(words, " ")
	}
	return []byte(strings.Join(lines, "\n")), declared
}

// keywordLine splits "#+KEY: value".
func keywordLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#+") {
		return "", "", false
	}
	key, value, ok = strings.Cut(line[2:], ":")
	if !ok {
		return "", "", false
	}
	return strings.ToUpper(strings.TrimSpace(key)), strings.TrimSpace(value), true
}

func isTodoKeyword(key string) bool {
	for _, k := range todoKeywordNames {
		if k == key {
			return true
		}
	}
	return false
}

func extractScope(doc *org.Document) Scope {
	scope := Scope{
		Title:      strings.TrimSpace(doc.BufferSettings["TITLE"]),
		FileTags:   splitTags(doc.BufferSettings["FILETAGS"]),
		Category:   strings.TrimSpace(doc.BufferSettings["CATEGORY"]),
		Properties: make(map[string]string),
	}
	for key, value := range doc.BufferSettings {
		if _, skip := scopeKeywords[key]; skip {
			continue
		}
		scope.Properties[key] = value
	}
	for _, key := range todoKeywordNames {
		if v, ok := doc.BufferSettings[key]; ok {
			for _, line := range strings.Split(v, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					scope.TodoLines = append(scope.TodoLines, line)
				}
			}
		}
	}

	var preamble []org.Node
	for _, n := range doc.Nodes {
		switch n := n.(type) {
		case org.Headline:
			scope.Content = renderBody(preamble)
			return scope
		case org.Keyword:
			continue
		case org.PropertyDrawer:
			mergeProperties(scope.Properties, n)
		default:
			preamble = append(preamble, n)
		}
	}
	scope.Content = renderBody(preamble)
	return scope
}

// extractEvents flattens go-org's nested headlines back into a pre-order
// event stream.
func extractEvents(nodes []org.Node) []hierarchy.Event {
	var events []hierarchy.Event
	var walk func(h org.Headline)
	walk = func(h org.Headline) {
		props := make(map[string]string)
		if h.Properties != nil {
			mergeProperties(props, *h.Properties)
		}

		var body []org.Node
		var children []org.Headline
		for _, c := range h.Children {
			switch c := c.(type) {
			case org.Headline:
				children = append(children, c)
			case org.PropertyDrawer:
				mergeProperties(props, c)
			default:
				body = append(body, c)
			}
		}

		content, planning := splitPlanning(renderBody(body))
		events = append(events, hierarchy.Event{
			Kind:  hierarchy.HeadlineStart,
			Depth: h.Lvl,
			Title: models.Title{
				Raw:         strings.TrimSpace(org.String(h.Title...)),
				Priority:    h.Priority,
				Tags:        nonNil(h.Tags),
				TodoKeyword: h.Status,
				Properties:  props,
				Planning:    planning,
			},
		})
		if content != "" {
			events = append(events, hierarchy.Event{Kind: hierarchy.ContentText, Text: content + "\n"})
		}
		for _, c := range children {
			walk(c)
		}
	}
	for _, n := range nodes {
		if h, ok := n.(org.Headline); ok {
			walk(h)
		}
	}
	return events
}

// mergeProperties copies drawer entries into dst. Property names are
// case-insensitive in org, so keys are upper-cased.
func mergeProperties(dst map[string]string, d org.PropertyDrawer) {
	for _, kv := range d.Properties {
		if len(kv) == 0 || kv[0] == "" {
			continue
		}
		value := ""
		if len(kv) > 1 {
			value = strings.TrimSpace(kv[1])
		}
		dst[strings.ToUpper(kv[0])] = value
	}
}

func renderBody(nodes []org.Node) string {
	if len(nodes) == 0 {
		return ""
	}
	return strings.Trim(org.String(nodes...), "\n")
}

// splitTags accepts both ":a:b:" and "a b" forms.
func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ' ' || r == '\t' || r == '\n' })
	seen := make(map[string]struct{}, len(fields))
	out := []string{}
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// deriveTitle returns the #+TITLE value, else the first headline's title,
// else the file name without extension.
func deriveTitle(title string, events []hierarchy.Event, path string) string {
	if title != "" {
		return title
	}
	for _, ev := range events {
		if ev.Kind == hierarchy.HeadlineStart && ev.Title.Raw != "" {
			return ev.Title.Raw
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
