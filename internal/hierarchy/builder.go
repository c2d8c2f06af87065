// Package hierarchy turns a flat stream of headline events into an outline tree
// with position-derived ids.
package hierarchy

import (
	"fmt"
	"strings"

	"github.com/starford/orgsync/internal/models"
)

// EventKind distinguishes the two event shapes a parser emits.
type EventKind int

const (
	// HeadlineStart opens a new headline at Depth with Title.
	HeadlineStart EventKind = iota
	// ContentText appends Text to the most recently opened headline,
	// or to the document preamble when no headline is open.
	ContentText
)

// Event is one item of the parser's output stream.
type Event struct {
	Kind  EventKind
	Depth int
	Title models.Title
	Text  string
}

// Result is the finished tree plus the text found before the first headline.
type Result struct {
	Headlines []models.Headline
	Preamble  string
}

type frame struct {
	depth    int
	headline models.Headline
	content  strings.Builder
	children []models.Headline
}

// Builder assembles the tree incrementally. Children are attached to their
// parent only when they are popped, so no node ever points back up the tree.
// A Builder is not safe for concurrent use.
type Builder struct {
	docID    string
	stack    []*frame
	roots    []models.Headline
	preamble strings.Builder
	finished bool
}

// NewBuilder returns a builder stamping docID on every headline.
func NewBuilder(docID string) *Builder {
	return &Builder{docID: docID}
}

// Push feeds the next event.
func (b *Builder) Push(ev Event) error {
	if b.finished {
		return fmt.Errorf("hierarchy: push after finish")
	}
	switch ev.Kind {
	case HeadlineStart:
		return b.start(ev)
	case ContentText:
		b.appendText(ev.Text)
		return nil
	default:
		return fmt.Errorf("hierarchy: unknown event kind %d", ev.Kind)
	}
}

func (b *Builder) start(ev Event) error {
	if ev.Depth < 1 {
		return fmt.Errorf("hierarchy: headline %q has depth %d", ev.Title.Raw, ev.Depth)
	}
	for len(b.stack) > 0 && b.top().depth >= ev.Depth {
		b.pop()
	}

	var (
		id    models.HeadlineID
		level int
	)
	if parent := b.top(); parent != nil {
		id = parent.headline.ID.Child(len(parent.children) + 1)
		level = parent.headline.Level + 1
	} else {
		id = models.RootID(len(b.roots) + 1)
		level = 1
	}

	b.stack = append(b.stack, &frame{
		depth: ev.Depth,
		headline: models.Headline{
			ID:         id,
			DocumentID: b.docID,
			Level:      level,
			Title:      ev.Title,
		},
	})
	return nil
}

func (b *Builder) appendText(text string) {
	if top := b.top(); top != nil {
		top.content.WriteString(text)
		return
	}
	b.preamble.WriteString(text)
}

func (b *Builder) top() *frame {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// pop closes the top frame and attaches it to its parent or to the roots.
// The sibling index used for the next id is the parent's attached child count,
// so the closed headline must be attached before another one is opened.
func (b *Builder) pop() {
	f := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]

	h := f.headline
	h.Content = strings.TrimRight(f.content.String(), "\n")
	h.Children = f.children
	if h.Children == nil {
		h.Children = []models.Headline{}
	}

	if parent := b.top(); parent != nil {
		parent.children = append(parent.children, h)
		return
	}
	b.roots = append(b.roots, h)
}

// Finish closes every open headline and returns the tree.
func (b *Builder) Finish() Result {
	for len(b.stack) > 0 {
		b.pop()
	}
	b.finished = true
	roots := b.roots
	if roots == nil {
		roots = []models.Headline{}
	}
	return Result{
		Headlines: roots,
		Preamble:  strings.TrimRight(b.preamble.String(), "\n"),
	}
}

// Build runs events through a fresh Builder.
func Build(docID string, events []Event) (Result, error) {
	b := NewBuilder(docID)
	for _, ev := range events {
		if err := b.Push(ev); err != nil {
			return Result{}, err
		}
	}
	return b.Finish(), nil
}
