package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/models"
)

func TestSum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
	assert.NotEqual(t, Sum([]byte("a")), Sum([]byte("b")))
}

func fixture() *models.Document {
	return &models.Document{
		Path:       "/notes/a.org",
		Title:      "Notes",
		Content:    "preamble",
		FileTags:   []string{"b", "a"},
		Properties: map[string]string{"AUTHOR": "me"},
		Category:   "work",
		Headlines: []models.Headline{
			{
				ID: models.HeadlineID{1}, Level: 1,
				Title: models.Title{Raw: "A", Tags: []string{"x"}, Properties: map[string]string{}},
				Children: []models.Headline{
					{ID: models.HeadlineID{1, 1}, Level: 2, Title: models.Title{Raw: "A1"}, Content: "one"},
					{ID: models.HeadlineID{1, 2}, Level: 2, Title: models.Title{Raw: "A2"}},
				},
			},
			{ID: models.HeadlineID{2}, Level: 1, Title: models.Title{Raw: "B"}},
		},
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, b := fixture(), fixture()
	Compute(a)
	Compute(b)
	assert.Equal(t, a.ETag, b.ETag)
	assert.Equal(t, a.Headlines[0].Children[1].ETag, b.Headlines[0].Children[1].ETag)
	require.NoError(t, Verify(a))
}

func TestCompute_IgnoresPreviousETags(t *testing.T) {
	a, b := fixture(), fixture()
	b.ETag = "stale"
	b.Headlines[0].ETag = "stale"
	b.Headlines[0].Children[0].ETag = "stale"
	Compute(a)
	Compute(b)
	assert.Equal(t, a.ETag, b.ETag)
	assert.Equal(t, a.Headlines[0].ETag, b.Headlines[0].ETag)
}

func TestCompute_OrderInsensitiveSets(t *testing.T) {
	a, b := fixture(), fixture()
	b.FileTags = []string{"a", "b"}
	b.Headlines[0].Title.Tags = []string{"x"}
	Compute(a)
	Compute(b)
	assert.Equal(t, a.ETag, b.ETag)
}

func TestCompute_SensitivityPropagatesUpward(t *testing.T) {
	base := fixture()
	Compute(base)

	mutations := map[string]func(h *models.Headline){
		"raw title":  func(h *models.Headline) { h.Title.Raw = "changed" },
		"priority":   func(h *models.Headline) { h.Title.Priority = "A" },
		"tags":       func(h *models.Headline) { h.Title.Tags = []string{"new"} },
		"todo":       func(h *models.Headline) { h.Title.TodoKeyword = "TODO" },
		"properties": func(h *models.Headline) { h.Title.Properties = map[string]string{"K": "V"} },
		"planning": func(h *models.Headline) {
			h.Title.Planning = &models.Planning{Deadline: &models.Timestamp{
				Kind: models.TimestampActive, Start: &models.Datetime{Year: 2024, Month: 3, Day: 1},
			}}
		},
		"content": func(h *models.Headline) { h.Content = "different" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			doc := fixture()
			mutate(&doc.Headlines[0].Children[0])
			Compute(doc)

			assert.NotEqual(t, base.Headlines[0].Children[0].ETag, doc.Headlines[0].Children[0].ETag, "node")
			assert.NotEqual(t, base.Headlines[0].ETag, doc.Headlines[0].ETag, "parent")
			assert.NotEqual(t, base.ETag, doc.ETag, "document")
			assert.Equal(t, base.Headlines[0].Children[1].ETag, doc.Headlines[0].Children[1].ETag, "sibling")
			assert.Equal(t, base.Headlines[1].ETag, doc.Headlines[1].ETag, "other subtree")
		})
	}
}

func TestCompute_DocumentFields(t *testing.T) {
	base := fixture()
	Compute(base)

	for name, mutate := range map[string]func(d *models.Document){
		"path":       func(d *models.Document) { d.Path = "/notes/b.org" },
		"title":      func(d *models.Document) { d.Title = "Other" },
		"content":    func(d *models.Document) { d.Content = "" },
		"file tags":  func(d *models.Document) { d.FileTags = nil },
		"properties": func(d *models.Document) { d.Properties["AUTHOR"] = "you" },
		"category":   func(d *models.Document) { d.Category = "home" },
	} {
		doc := fixture()
		mutate(doc)
		Compute(doc)
		assert.NotEqual(t, base.ETag, doc.ETag, name)
		assert.Equal(t, base.Headlines[0].ETag, doc.Headlines[0].ETag, name)
	}
}

func TestCompute_FieldBoundaries(t *testing.T) {
	a := &models.Headline{Title: models.Title{Raw: "ab"}, Content: "c"}
	b := &models.Headline{Title: models.Title{Raw: "a"}, Content: "bc"}
	assert.NotEqual(t, Headline(a, nil), Headline(b, nil))
}

func TestVerify_DetectsStaleETag(t *testing.T) {
	doc := fixture()
	Compute(doc)
	doc.Headlines[1].Content = "edited without recompute"
	assert.ErrorIs(t, Verify(doc), apperr.ErrInvariant)
}
