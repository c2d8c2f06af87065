// Package models defines the domain types for orgsync.
package models

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// documentNamespace seeds the name-based UUIDs used as document ids.
var documentNamespace = uuid.MustParse("6f0d2a43-58c1-4d7e-9a4b-0c3e7f2d9b61")

// DocumentID derives the stable id of the document stored at path.
// The same path always yields the same id, so reloads keep document identity.
func DocumentID(path string) string {
	return uuid.NewSHA1(documentNamespace, []byte(filepath.Clean(path))).String()
}

// Document is one parsed org file. Values stored in the repository are never
// mutated; a re-parse produces a new Document that supersedes the old one.
type Document struct {
	ID         string             `json:"id"`
	Path       string             `json:"path"`
	Title      string             `json:"title"`
	Content    string             `json:"content"`
	Headlines  []Headline         `json:"headlines"`
	FileTags   []string           `json:"file_tags"`
	Properties map[string]string  `json:"properties"`
	Category   string             `json:"category"`
	ETag       string             `json:"etag"`
	TodoConfig *TodoConfiguration `json:"todo_config,omitempty"`
	Checksum   string             `json:"checksum"`
	ParsedAt   time.Time          `json:"parsed_at"`
}

// Walk visits every headline depth-first, parents before children.
// Returning false from fn stops the walk.
func (d *Document) Walk(fn func(h *Headline) bool) {
	walkHeadlines(d.Headlines, fn)
}

func walkHeadlines(hs []Headline, fn func(h *Headline) bool) bool {
	for i := range hs {
		if !fn(&hs[i]) {
			return false
		}
		if !walkHeadlines(hs[i].Children, fn) {
			return false
		}
	}
	return true
}

// FindHeadline returns the headline with the given dotted id.
func (d *Document) FindHeadline(id string) (*Headline, bool) {
	var found *Headline
	d.Walk(func(h *Headline) bool {
		if h.ID.String() == id {
			found = h
			return false
		}
		return true
	})
	return found, found != nil
}

// Parent returns the headline that directly contains id. Top-level headlines
// have no parent. Parents are resolved by descending the tree along the id.
func (d *Document) Parent(id HeadlineID) (*Headline, bool) {
	parentID := id.Parent()
	if parentID == nil {
		return nil, false
	}
	siblings := d.Headlines
	var cur *Headline
	for _, idx := range parentID {
		if idx < 1 || idx > len(siblings) {
			return nil, false
		}
		cur = &siblings[idx-1]
		siblings = cur.Children
	}
	return cur, cur != nil
}

// HeadlineIDs returns every headline id in depth-first order.
func (d *Document) HeadlineIDs() []string {
	var out []string
	d.Walk(func(h *Headline) bool {
		out = append(out, h.ID.String())
		return true
	})
	return out
}

// HeadlineCount returns the number of headlines in the tree.
func (d *Document) HeadlineCount() int {
	n := 0
	d.Walk(func(*Headline) bool {
		n++
		return true
	})
	return n
}

// Property returns a file-scope property.
func (d *Document) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// FileMeta is a lightweight description of a file found on disk.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
