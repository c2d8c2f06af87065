package todo

import "github.com/starford/orgsync/internal/models"

// CategoryProperty is the headline property that overrides the document category.
const CategoryProperty = "CATEGORY"

// EffectiveCategory returns the headline's own CATEGORY property, else the
// document's category.
func EffectiveCategory(doc *models.Document, h *models.Headline) string {
	v, _ := InheritedProperty(doc, h, CategoryProperty)
	if v == "" && doc != nil {
		return doc.Category
	}
	return v
}

// InheritedProperty applies the local-override rule: a non-empty property on
// the headline wins, otherwise the document's file-scope property is used.
func InheritedProperty(doc *models.Document, h *models.Headline, key string) (string, bool) {
	if h != nil {
		if v, ok := h.Property(key); ok && v != "" {
			return v, true
		}
	}
	if doc == nil {
		return "", false
	}
	return doc.Property(key)
}
