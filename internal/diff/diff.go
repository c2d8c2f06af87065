// Package diff compares two revisions of a document by headline etag.
package diff

import (
	"time"

	"github.com/starford/orgsync/internal/models"
)

type entry struct {
	id   string
	etag string
}

// flatten lists headlines children first, the order in which etags are computed.
func flatten(hs []models.Headline, out []entry) []entry {
	for i := range hs {
		out = flatten(hs[i].Children, out)
		out = append(out, entry{id: hs[i].ID.String(), etag: hs[i].ETag})
	}
	return out
}

// Diff classifies the headline ids of next against prev. prev may be nil for a
// first load, in which case every headline is new. When the document etags
// match the traversal is skipped and the result is empty.
func Diff(prev, next *models.Document, at time.Time) models.UpdateInfo {
	info := models.UpdateInfo{
		DocumentID: next.ID,
		Path:       next.Path,
		Updated:    []string{},
		Deleted:    []string{},
		New:        []string{},
		Timestamp:  at,
	}
	if prev != nil && prev.ETag == next.ETag {
		return info
	}

	var old []entry
	if prev != nil {
		old = flatten(prev.Headlines, nil)
	}
	oldByID := make(map[string]string, len(old))
	for _, e := range old {
		oldByID[e.id] = e.etag
	}

	cur := flatten(next.Headlines, nil)
	curIDs := make(map[string]struct{}, len(cur))
	for _, e := range cur {
		curIDs[e.id] = struct{}{}
		prevETag, ok := oldByID[e.id]
		switch {
		case !ok:
			info.New = append(info.New, e.id)
		case prevETag != e.etag:
			info.Updated = append(info.Updated, e.id)
		}
	}
	for _, e := range old {
		if _, ok := curIDs[e.id]; !ok {
			info.Deleted = append(info.Deleted, e.id)
		}
	}
	return info
}

// Removal describes a document that left the repository: all of its
// headlines are deleted.
func Removal(prev *models.Document, at time.Time) models.UpdateInfo {
	deleted := []string{}
	for _, e := range flatten(prev.Headlines, nil) {
		deleted = append(deleted, e.id)
	}
	return models.UpdateInfo{
		DocumentID: prev.ID,
		Path:       prev.Path,
		Updated:    []string{},
		Deleted:    deleted,
		New:        []string{},
		Removed:    true,
		Timestamp:  at,
	}
}
