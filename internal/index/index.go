package index

import "github.com/starford/orgsync/internal/models"

// HeadlineIndex is the search mirror fed by the synchronization loop.
// Consumers should depend on this interface rather than the concrete *DB type.
type HeadlineIndex interface {
	ReplaceDocument(doc *models.Document) error
	DeleteDocument(id string) error
	DocumentETag(id string) (string, error)
	DocumentIDs() (map[string]struct{}, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies HeadlineIndex at compile time.
var _ HeadlineIndex = (*DB)(nil)
