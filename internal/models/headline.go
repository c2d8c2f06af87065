package models

// Headline is one node of a document's outline tree. Children are owned by
// value; the parent is never referenced from the child.
type Headline struct {
	ID         HeadlineID `json:"id"`
	DocumentID string     `json:"document_id"`
	Level      int        `json:"level"`
	Title      Title      `json:"title"`
	Content    string     `json:"content"`
	Children   []Headline `json:"children"`
	ETag       string     `json:"etag"`
}

// Title is the structured headline line plus the metadata attached to it.
type Title struct {
	Raw         string            `json:"raw"`
	Priority    string            `json:"priority,omitempty"`
	Tags        []string          `json:"tags"`
	TodoKeyword string            `json:"todo_keyword,omitempty"`
	Properties  map[string]string `json:"properties"`
	Planning    *Planning         `json:"planning,omitempty"`
}

// Property returns a headline-local property.
func (h *Headline) Property(key string) (string, bool) {
	v, ok := h.Title.Properties[key]
	return v, ok
}

// IsTask reports whether the headline carries a TODO keyword.
func (h *Headline) IsTask() bool { return h.Title.TodoKeyword != "" }

// HasTag reports whether the headline declares tag itself.
func (h *Headline) HasTag(tag string) bool {
	for _, t := range h.Title.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HeadlineRef addresses a headline across documents. Headline ids are only
// unique within their document.
type HeadlineRef struct {
	DocumentID string `json:"document_id"`
	HeadlineID string `json:"headline_id"`
}
