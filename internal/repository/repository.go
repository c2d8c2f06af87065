// Package repository holds the authoritative set of loaded documents.
package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/orgsync/internal/models"
)

// Repository stores documents keyed by id with a path index. Writes are
// exclusive, reads may run concurrently with each other.
// Stored documents are treated as immutable; callers must not modify them.
type Repository struct {
	mu           sync.RWMutex
	docs         map[string]*models.Document
	byPath       map[string]string
	lastModified map[string]time.Time
	now          func() time.Time
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		docs:         make(map[string]*models.Document),
		byPath:       make(map[string]string),
		lastModified: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Upsert inserts or replaces doc and returns the revision it superseded.
func (r *Repository) Upsert(doc *models.Document) *models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.docs[doc.ID]
	if prev != nil && prev.Path != doc.Path {
		delete(r.byPath, prev.Path)
	}
	r.docs[doc.ID] = doc
	r.byPath[doc.Path] = doc.ID
	r.lastModified[doc.ID] = r.now()
	return prev
}

// Get returns the document with id.
func (r *Repository) Get(id string) (*models.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

// GetByPath returns the document loaded from path.
func (r *Repository) GetByPath(path string) (*models.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPath[path]
	if !ok {
		return nil, false
	}
	return r.docs[id], true
}

// List returns every document ordered by path.
func (r *Repository) List() []*models.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

func (r *Repository) sortedLocked() []*models.Document {
	out := make([]*models.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of stored documents.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Remove deletes the document with id and returns it.
func (r *Repository) Remove(id string) (*models.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Repository) removeLocked(id string) (*models.Document, bool) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, false
	}
	delete(r.docs, id)
	delete(r.byPath, doc.Path)
	delete(r.lastModified, id)
	return doc, true
}

// LastModified returns when the document was last upserted.
func (r *Repository) LastModified(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts, ok := r.lastModified[id]
	return ts, ok
}

// DocumentForHeadline returns the first document, in path order, that contains
// a headline with the given dotted id.
func (r *Repository) DocumentForHeadline(headlineID string) (*models.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.sortedLocked() {
		if _, ok := doc.FindHeadline(headlineID); ok {
			return doc, true
		}
	}
	return nil, false
}

// FindHeadline resolves a document-qualified headline reference.
func (r *Repository) FindHeadline(ref models.HeadlineRef) (*models.Document, *models.Headline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[ref.DocumentID]
	if !ok {
		return nil, nil, false
	}
	h, ok := doc.FindHeadline(ref.HeadlineID)
	if !ok {
		return nil, nil, false
	}
	return doc, h, true
}

// PruneUncovered removes every document whose path fails covered and returns
// the removed documents ordered by path.
func (r *Repository) PruneUncovered(covered func(path string) bool) []*models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*models.Document
	for _, doc := range r.sortedLocked() {
		if covered(doc.Path) {
			continue
		}
		r.removeLocked(doc.ID)
		removed = append(removed, doc)
	}
	return removed
}
