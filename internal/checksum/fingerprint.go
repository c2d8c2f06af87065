package checksum

import (
	"fmt"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/models"
)

// Headline fingerprints h from its own fields and the given child etags.
// The headline's current ETag is never read.
func Headline(h *models.Headline, childETags []string) string {
	f := newFields()
	f.str("headline")
	f.str(h.Title.Raw)
	f.str(h.Title.Priority)
	f.sortedList(h.Title.Tags)
	f.str(h.Title.TodoKeyword)
	f.dict(h.Title.Properties)
	f.str(h.Title.Planning.String())
	f.str(h.Content)
	f.list(childETags)
	return f.sum()
}

// Document fingerprints doc from its file-scope fields and the given
// top-level headline etags.
func Document(doc *models.Document, topETags []string) string {
	f := newFields()
	f.str("document")
	f.str(doc.Path)
	f.str(doc.Title)
	f.str(doc.Content)
	f.sortedList(doc.FileTags)
	f.dict(doc.Properties)
	f.str(doc.Category)
	f.list(topETags)
	return f.sum()
}

// Compute assigns fresh etags to every headline, children before parents,
// then to the document itself.
func Compute(doc *models.Document) {
	top := computeLevel(doc.Headlines)
	doc.ETag = Document(doc, top)
}

func computeLevel(hs []models.Headline) []string {
	etags := make([]string, len(hs))
	for i := range hs {
		children := computeLevel(hs[i].Children)
		hs[i].ETag = Headline(&hs[i], children)
		etags[i] = hs[i].ETag
	}
	return etags
}

// Verify recomputes every etag of doc without modifying it and reports the
// first stored value that does not match.
func Verify(doc *models.Document) error {
	top, err := verifyLevel(doc.Headlines)
	if err != nil {
		return err
	}
	if want := Document(doc, top); doc.ETag != want {
		return fmt.Errorf("%w: document %s etag is stale", apperr.ErrInvariant, doc.Path)
	}
	return nil
}

func verifyLevel(hs []models.Headline) ([]string, error) {
	etags := make([]string, len(hs))
	for i := range hs {
		children, err := verifyLevel(hs[i].Children)
		if err != nil {
			return nil, err
		}
		want := Headline(&hs[i], children)
		if hs[i].ETag != want {
			return nil, fmt.Errorf("%w: headline %s etag is stale", apperr.ErrInvariant, hs[i].ID)
		}
		etags[i] = want
	}
	return etags, nil
}
