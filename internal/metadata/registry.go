// Package metadata indexes tags and categories across every loaded document.
package metadata

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/todo"
)

// TagInfo summarises one tag across documents.
type TagInfo struct {
	Name      string               `json:"name"`
	Count     int                  `json:"count"`
	Documents []string             `json:"documents"`
	Headlines []models.HeadlineRef `json:"headlines"`
}

// CategoryInfo summarises one category across documents.
type CategoryInfo struct {
	Name      string               `json:"name"`
	Count     int                  `json:"count"`
	Documents []string             `json:"documents"`
	Headlines []models.HeadlineRef `json:"headlines"`
}

type entry struct {
	count     int
	documents map[string]int
	headlines map[models.HeadlineRef]int
}

func newEntry() *entry {
	return &entry{documents: make(map[string]int), headlines: make(map[models.HeadlineRef]int)}
}

// occurrence is one contribution a document made to an index. headline is
// nil for file-scope occurrences.
type occurrence struct {
	name     string
	headline *models.HeadlineRef
}

type contribution struct {
	tags       []occurrence
	categories []occurrence
}

// Registry is the tag and category index. Counts and back-references are only
// changed by RegisterDocument and UnregisterDocument, which keep a ledger of
// what each document contributed so that a reload replaces rather than adds.
type Registry struct {
	mu          sync.RWMutex
	tags        map[string]*entry
	categories  map[string]*entry
	ledger      map[string]contribution
	lastUpdated time.Time
	now         func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tags:       make(map[string]*entry),
		categories: make(map[string]*entry),
		ledger:     make(map[string]contribution),
		now:        time.Now,
	}
}

// RegisterDocument records the tags and categories of doc. Any contribution
// previously registered under the same document id is dropped first.
func (r *Registry) RegisterDocument(doc *models.Document) {
	c := collect(doc)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.unregisterLocked(doc.ID)
	for _, o := range c.tags {
		add(r.tags, doc.ID, o)
	}
	for _, o := range c.categories {
		add(r.categories, doc.ID, o)
	}
	r.ledger[doc.ID] = c
	r.lastUpdated = r.now()
}

// UnregisterDocument removes everything id contributed. It reports whether
// the document was registered.
func (r *Registry) UnregisterDocument(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok := r.unregisterLocked(id)
	if ok {
		r.lastUpdated = r.now()
	}
	return ok
}

func (r *Registry) unregisterLocked(id string) bool {
	c, ok := r.ledger[id]
	if !ok {
		return false
	}
	for _, o := range c.tags {
		remove(r.tags, id, o)
	}
	for _, o := range c.categories {
		remove(r.categories, id, o)
	}
	delete(r.ledger, id)
	return true
}

func collect(doc *models.Document) contribution {
	var c contribution
	for _, tag := range dedupe(doc.FileTags) {
		c.tags = append(c.tags, occurrence{name: tag})
	}
	if doc.Category != "" {
		c.categories = append(c.categories, occurrence{name: doc.Category})
	}
	doc.Walk(func(h *models.Headline) bool {
		ref := &models.HeadlineRef{DocumentID: doc.ID, HeadlineID: h.ID.String()}
		for _, tag := range dedupe(h.Title.Tags) {
			c.tags = append(c.tags, occurrence{name: tag, headline: ref})
		}
		if cat := todo.EffectiveCategory(doc, h); cat != "" {
			c.categories = append(c.categories, occurrence{name: cat, headline: ref})
		}
		return true
	})
	return c
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func add(index map[string]*entry, docID string, o occurrence) {
	e, ok := index[o.name]
	if !ok {
		e = newEntry()
		index[o.name] = e
	}
	e.count++
	e.documents[docID]++
	if o.headline != nil {
		e.headlines[*o.headline]++
	}
}

func remove(index map[string]*entry, docID string, o occurrence) {
	e, ok := index[o.name]
	if !ok {
		return
	}
	e.count--
	if e.documents[docID]--; e.documents[docID] <= 0 {
		delete(e.documents, docID)
	}
	if o.headline != nil {
		if e.headlines[*o.headline]--; e.headlines[*o.headline] <= 0 {
			delete(e.headlines, *o.headline)
		}
	}
	if e.count <= 0 {
		delete(index, o.name)
	}
}

func snapshot(e *entry) (int, []string, []models.HeadlineRef) {
	docs := make([]string, 0, len(e.documents))
	for id := range e.documents {
		docs = append(docs, id)
	}
	sort.Strings(docs)
	return e.count, docs, sortedRefs(e.headlines)
}

func sortedRefs(m map[models.HeadlineRef]int) []models.HeadlineRef {
	out := make([]models.HeadlineRef, 0, len(m))
	for ref := range m {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		a, _ := models.ParseHeadlineID(out[i].HeadlineID)
		b, _ := models.ParseHeadlineID(out[j].HeadlineID)
		return a.Compare(b) < 0
	})
	return out
}

// Tags returns every tag, most frequent first, ties by name.
func (r *Registry) Tags() []TagInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TagInfo, 0, len(r.tags))
	for name, e := range r.tags {
		count, docs, refs := snapshot(e)
		out = append(out, TagInfo{Name: name, Count: count, Documents: docs, Headlines: refs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Categories returns every category, most frequent first, ties by name.
func (r *Registry) Categories() []CategoryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CategoryInfo, 0, len(r.categories))
	for name, e := range r.categories {
		count, docs, refs := snapshot(e)
		out = append(out, CategoryInfo{Name: name, Count: count, Documents: docs, Headlines: refs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Tag returns a single tag.
func (r *Registry) Tag(name string) (TagInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tags[name]
	if !ok {
		return TagInfo{}, false
	}
	count, docs, refs := snapshot(e)
	return TagInfo{Name: name, Count: count, Documents: docs, Headlines: refs}, true
}

// Category returns a single category.
func (r *Registry) Category(name string) (CategoryInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.categories[name]
	if !ok {
		return CategoryInfo{}, false
	}
	count, docs, refs := snapshot(e)
	return CategoryInfo{Name: name, Count: count, Documents: docs, Headlines: refs}, true
}

// HeadlinesWithTag returns the headlines that declare tag themselves.
func (r *Registry) HeadlinesWithTag(tag string) []models.HeadlineRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.tags[tag]; ok {
		return sortedRefs(e.headlines)
	}
	return []models.HeadlineRef{}
}

// HeadlinesWithCategory returns the headlines whose effective category is category.
func (r *Registry) HeadlinesWithCategory(category string) []models.HeadlineRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.categories[category]; ok {
		return sortedRefs(e.headlines)
	}
	return []models.HeadlineRef{}
}

// Documents returns the ids of registered documents.
func (r *Registry) Documents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ledger))
	for id := range r.ledger {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LastUpdated returns when the registry last changed.
func (r *Registry) LastUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdated
}
