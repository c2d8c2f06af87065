package repository

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/orgsync/internal/models"
)

func doc(path string, headlineIDs ...models.HeadlineID) *models.Document {
	d := &models.Document{ID: models.DocumentID(path), Path: path}
	for _, id := range headlineIDs {
		d.Headlines = append(d.Headlines, models.Headline{ID: id, Level: 1})
	}
	return d
}

func TestRepository_UpsertGetList(t *testing.T) {
	r := New()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	b := doc("/n/b.org")
	a := doc("/n/a.org")
	assert.Nil(t, r.Upsert(b))
	assert.Nil(t, r.Upsert(a))
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	got, ok = r.GetByPath("/n/b.org")
	require.True(t, ok)
	assert.Same(t, b, got)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "/n/a.org", list[0].Path)

	ts, ok := r.LastModified(a.ID)
	require.True(t, ok)
	assert.Equal(t, clock, ts)

	clock = clock.Add(time.Hour)
	a2 := doc("/n/a.org")
	prev := r.Upsert(a2)
	assert.Same(t, a, prev)
	ts, _ = r.LastModified(a.ID)
	assert.Equal(t, clock, ts)
	assert.Equal(t, 2, r.Len())
}

func TestRepository_Remove(t *testing.T) {
	r := New()
	a := doc("/n/a.org")
	r.Upsert(a)

	removed, ok := r.Remove(a.ID)
	require.True(t, ok)
	assert.Same(t, a, removed)

	_, ok = r.Get(a.ID)
	assert.False(t, ok)
	_, ok = r.GetByPath(a.Path)
	assert.False(t, ok)
	_, ok = r.LastModified(a.ID)
	assert.False(t, ok)

	_, ok = r.Remove(a.ID)
	assert.False(t, ok)
}

func TestRepository_DocumentForHeadline(t *testing.T) {
	r := New()
	a := doc("/n/a.org", models.HeadlineID{1})
	b := doc("/n/b.org", models.HeadlineID{1}, models.HeadlineID{2})
	b.Headlines[1].Children = []models.Headline{{ID: models.HeadlineID{2, 1}, Level: 2}}
	r.Upsert(b)
	r.Upsert(a)

	got, ok := r.DocumentForHeadline("1")
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID, "documents are searched in path order")

	got, ok = r.DocumentForHeadline("2.1")
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)

	_, ok = r.DocumentForHeadline("9")
	assert.False(t, ok)

	d, h, ok := r.FindHeadline(models.HeadlineRef{DocumentID: b.ID, HeadlineID: "1"})
	require.True(t, ok)
	assert.Equal(t, b.ID, d.ID)
	assert.Equal(t, "1", h.ID.String())

	_, _, ok = r.FindHeadline(models.HeadlineRef{DocumentID: a.ID, HeadlineID: "2"})
	assert.False(t, ok)
}

func TestRepository_PruneUncovered(t *testing.T) {
	r := New()
	for _, p := range []string{"/keep/a.org", "/drop/b.org", "/keep/c.org", "/drop/d.org"} {
		r.Upsert(doc(p))
	}
	removed := r.PruneUncovered(func(path string) bool { return strings.HasPrefix(path, "/keep/") })

	require.Len(t, removed, 2)
	assert.Equal(t, "/drop/b.org", removed[0].Path)
	assert.Equal(t, "/drop/d.org", removed[1].Path)
	for _, d := range r.List() {
		assert.True(t, strings.HasPrefix(d.Path, "/keep/"))
	}
	assert.Equal(t, 2, r.Len())
}

func TestRepository_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Upsert(doc("/n/a.org", models.HeadlineID{1}))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.List()
				r.DocumentForHeadline("1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}
