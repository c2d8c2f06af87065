package hierarchy

import (
	"fmt"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/models"
)

// Validate checks the structural rules of a finished tree: top-level headlines
// have level 1, children sit exactly one level below their parent, ids are
// unique and each id extends its parent's id by its sibling index.
func Validate(headlines []models.Headline) error {
	seen := make(map[string]struct{})
	return validate(headlines, nil, 0, seen)
}

func validate(hs []models.Headline, parentID models.HeadlineID, parentLevel int, seen map[string]struct{}) error {
	for i := range hs {
		h := &hs[i]
		key := h.ID.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate headline id %s", apperr.ErrInvariant, key)
		}
		seen[key] = struct{}{}

		if h.Level != parentLevel+1 {
			return fmt.Errorf("%w: headline %s has level %d under level %d", apperr.ErrInvariant, key, h.Level, parentLevel)
		}
		var want models.HeadlineID
		if parentID == nil {
			want = models.RootID(i + 1)
		} else {
			want = parentID.Child(i + 1)
		}
		if !h.ID.Equal(want) {
			return fmt.Errorf("%w: headline at %s carries id %s", apperr.ErrInvariant, want, key)
		}
		if err := validate(h.Children, h.ID, h.Level, seen); err != nil {
			return err
		}
	}
	return nil
}
