package models

import "time"

// UpdateInfo is one change record of the feed: the headline ids that appeared,
// changed or disappeared when a document was reloaded.
type UpdateInfo struct {
	DocumentID string    `json:"document_id"`
	Path       string    `json:"path"`
	Updated    []string  `json:"updated"`
	Deleted    []string  `json:"deleted"`
	New        []string  `json:"new"`
	Removed    bool      `json:"removed,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsEmpty reports whether the record carries no change at all.
func (u UpdateInfo) IsEmpty() bool {
	return !u.Removed && len(u.Updated) == 0 && len(u.Deleted) == 0 && len(u.New) == 0
}

// Changed returns every id that was added or modified.
func (u UpdateInfo) Changed() []string {
	out := make([]string, 0, len(u.New)+len(u.Updated))
	out = append(out, u.New...)
	return append(out, u.Updated...)
}
