// Package orgservice is the read-side query surface over the synchronized
// document model, shared by the REST API and the MCP server.
package orgservice

import (
	"context"
	"strings"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/feed"
	"github.com/starford/orgsync/internal/index"
	"github.com/starford/orgsync/internal/metadata"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/repository"
	"github.com/starford/orgsync/internal/todo"
)

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	*models.Document
	LastModified time.Time         `json:"last_modified"`
	Failure      *feed.PathFailure `json:"failure,omitempty"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	FileTags      []string  `json:"file_tags"`
	ETag          string    `json:"etag"`
	HeadlineCount int       `json:"headline_count"`
	ParsedAt      time.Time `json:"parsed_at"`
}

// HeadlineDetail is one headline with its document context and resolved
// TODO status and category.
type HeadlineDetail struct {
	DocumentID   string             `json:"document_id"`
	DocumentPath string             `json:"document_path"`
	ID           string             `json:"id"`
	Level        int                `json:"level"`
	Title        models.Title       `json:"title"`
	Content      string             `json:"content"`
	ETag         string             `json:"etag"`
	Category     string             `json:"category"`
	Status       *models.TodoStatus `json:"status,omitempty"`
}

// PathController reads and replaces the monitored paths.
type PathController interface {
	Coverage() *coverage.Set
	SetCoverage(ctx context.Context, paths []coverage.MonitoredPath) error
}

// Deps are the collaborators of a Service. Index and Paths are optional.
type Deps struct {
	Repo     *repository.Repository
	Registry *metadata.Registry
	Feed     *feed.Feed
	Resolver *todo.Resolver
	Index    index.HeadlineIndex
	Paths    PathController
}

// Service answers queries against the repository, registry and change feed.
type Service struct {
	repo     *repository.Repository
	registry *metadata.Registry
	feed     *feed.Feed
	resolver *todo.Resolver
	idx      index.HeadlineIndex
	paths    PathController
}

// NewService creates a new query service.
func NewService(d Deps) *Service {
	if d.Resolver == nil {
		d.Resolver = todo.NewResolver(nil)
	}
	return &Service{
		repo:     d.Repo,
		registry: d.Registry,
		feed:     d.Feed,
		resolver: d.Resolver,
		idx:      d.Index,
		paths:    d.Paths,
	}
}

func listItem(doc *models.Document) DocumentListItem {
	return DocumentListItem{
		ID:            doc.ID,
		Path:          doc.Path,
		Title:         doc.Title,
		Category:      doc.Category,
		FileTags:      nonNilSlice(doc.FileTags),
		ETag:          doc.ETag,
		HeadlineCount: doc.HeadlineCount(),
		ParsedAt:      doc.ParsedAt,
	}
}

// ListDocuments returns documents ordered by path, optionally restricted to
// those where tag occurs. A non-positive limit returns everything.
func (s *Service) ListDocuments(_ context.Context, limit, offset int, tag string) ([]DocumentListItem, int, error) {
	docs := s.repo.List()
	if tag != "" {
		info, ok := s.registry.Tag(tag)
		if !ok {
			return []DocumentListItem{}, 0, nil
		}
		keep := make(map[string]struct{}, len(info.Documents))
		for _, id := range info.Documents {
			keep[id] = struct{}{}
		}
		filtered := docs[:0:0]
		for _, d := range docs {
			if _, ok := keep[d.ID]; ok {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	total := len(docs)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	docs = docs[offset:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	items := make([]DocumentListItem, len(docs))
	for i, d := range docs {
		items[i] = listItem(d)
	}
	return items, total, nil
}

// GetDocument returns the current revision of a document by id or path.
func (s *Service) GetDocument(_ context.Context, idOrPath string) (*DocumentDetail, error) {
	doc, ok := s.repo.Get(idOrPath)
	if !ok {
		doc, ok = s.repo.GetByPath(idOrPath)
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	detail := &DocumentDetail{Document: doc}
	detail.LastModified, _ = s.repo.LastModified(doc.ID)
	for _, f := range s.feed.Failures() {
		if f.Path == doc.Path {
			detail.Failure = &f
			break
		}
	}
	return detail, nil
}

// DocumentForHeadline returns the first document, in path order, containing
// the dotted headline id.
func (s *Service) DocumentForHeadline(_ context.Context, headlineID string) (*DocumentListItem, error) {
	if _, err := models.ParseHeadlineID(headlineID); err != nil {
		return nil, err
	}
	doc, ok := s.repo.DocumentForHeadline(headlineID)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	item := listItem(doc)
	return &item, nil
}

// GetHeadline resolves a document-qualified headline.
func (s *Service) GetHeadline(_ context.Context, ref models.HeadlineRef) (*HeadlineDetail, error) {
	doc, h, ok := s.repo.FindHeadline(ref)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	d := s.headlineDetail(doc, h)
	return &d, nil
}

func (s *Service) headlineDetail(doc *models.Document, h *models.Headline) HeadlineDetail {
	d := HeadlineDetail{
		DocumentID:   doc.ID,
		DocumentPath: doc.Path,
		ID:           h.ID.String(),
		Level:        h.Level,
		Title:        h.Title,
		Content:      h.Content,
		ETag:         h.ETag,
		Category:     todo.EffectiveCategory(doc, h),
	}
	if st, ok := s.resolver.Status(doc, h); ok {
		d.Status = &st
	}
	return d
}

func (s *Service) resolve(refs []models.HeadlineRef) []HeadlineDetail {
	out := make([]HeadlineDetail, 0, len(refs))
	for _, ref := range refs {
		doc, h, ok := s.repo.FindHeadline(ref)
		if !ok {
			continue
		}
		out = append(out, s.headlineDetail(doc, h))
	}
	return out
}

// Tags returns every tag with its usage.
func (s *Service) Tags(_ context.Context) []metadata.TagInfo {
	return s.registry.Tags()
}

// Categories returns every category with its usage.
func (s *Service) Categories(_ context.Context) []metadata.CategoryInfo {
	return s.registry.Categories()
}

// HeadlinesWithTag returns the headlines declaring tag.
func (s *Service) HeadlinesWithTag(_ context.Context, tag string) []HeadlineDetail {
	return s.resolve(s.registry.HeadlinesWithTag(tag))
}

// HeadlinesWithCategory returns the headlines whose effective category is category.
func (s *Service) HeadlinesWithCategory(_ context.Context, category string) []HeadlineDetail {
	return s.resolve(s.registry.HeadlinesWithCategory(category))
}

// HeadlinesWithStatus returns the headlines whose keyword resolves to a status
// of the given state type, ordered by document path then tree order.
func (s *Service) HeadlinesWithStatus(_ context.Context, state models.StateType) []HeadlineDetail {
	var out []HeadlineDetail
	for _, doc := range s.repo.List() {
		doc.Walk(func(h *models.Headline) bool {
			if st, ok := s.resolver.Status(doc, h); ok && st.StateType == state {
				out = append(out, s.headlineDetail(doc, h))
			}
			return true
		})
	}
	return nonNilSlice(out)
}

// Updates returns change records after since, optionally for one document.
func (s *Service) Updates(_ context.Context, since uint64, documentID string) []feed.Entry {
	entries := s.feed.Since(since)
	if documentID == "" {
		return nonNilSlice(entries)
	}
	out := make([]feed.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Update.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out
}

// Failures returns the paths currently failing to load.
func (s *Service) Failures(_ context.Context) []feed.PathFailure {
	return s.feed.Failures()
}

// Search finds headlines whose title, content or tags contain query. The
// SQLite index answers when configured; otherwise the repository is scanned.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.idx != nil {
		res, err := s.idx.Search(query, limit)
		return nonNilSlice(res), err
	}

	q := strings.ToLower(query)
	out := []index.SearchResult{}
	for _, doc := range s.repo.List() {
		doc.Walk(func(h *models.Headline) bool {
			if matches(h, q) {
				out = append(out, index.SearchResult{
					DocumentID: doc.ID,
					HeadlineID: h.ID.String(),
					Path:       doc.Path,
					Title:      h.Title.Raw,
					Snippet:    snippet(h.Content, 200),
				})
			}
			return len(out) < limit
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matches(h *models.Headline, q string) bool {
	if strings.Contains(strings.ToLower(h.Title.Raw), q) || strings.Contains(strings.ToLower(h.Content), q) {
		return true
	}
	for _, t := range h.Title.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// TodoKeywords returns the TODO configuration of a document, or the default
// configuration when documentID is empty.
func (s *Service) TodoKeywords(_ context.Context, documentID string) (*models.TodoConfiguration, error) {
	if documentID == "" {
		return s.resolver.Default, nil
	}
	doc, ok := s.repo.Get(documentID)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s.resolver.ConfigFor(doc), nil
}

// Paths returns the monitored paths.
func (s *Service) Paths(_ context.Context) []coverage.MonitoredPath {
	if s.paths == nil {
		return []coverage.MonitoredPath{}
	}
	return nonNilSlice(s.paths.Coverage().Paths())
}

// SetPaths replaces the monitored paths. Documents leaving coverage are
// removed before it returns.
func (s *Service) SetPaths(ctx context.Context, paths []coverage.MonitoredPath) error {
	if s.paths == nil {
		return apperr.ErrInvalidCoverage
	}
	return s.paths.SetCoverage(ctx, paths)
}

// Stats summarises the model for health and CLI output.
type Stats struct {
	Documents  int       `json:"documents"`
	Headlines  int       `json:"headlines"`
	Tags       int       `json:"tags"`
	Categories int       `json:"categories"`
	Failures   int       `json:"failures"`
	LastSeq    uint64    `json:"last_seq"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stats returns counts across the model.
func (s *Service) Stats(_ context.Context) Stats {
	st := Stats{
		Tags:       len(s.registry.Tags()),
		Categories: len(s.registry.Categories()),
		Failures:   len(s.feed.Failures()),
		LastSeq:    s.feed.Seq(),
		UpdatedAt:  s.registry.LastUpdated(),
	}
	for _, doc := range s.repo.List() {
		st.Documents++
		st.Headlines += doc.HeadlineCount()
	}
	return st
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
