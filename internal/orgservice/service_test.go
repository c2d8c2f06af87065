package orgservice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/testutil"
)

var vault = map[string]string{
	"work.org": `#+TITLE: Work
#+CATEGORY: job
* TODO Write report :writing:
draft the quarterly numbers
** DONE Collect data
* Meeting :people:
:PROPERTIES:
:CATEGORY: meetings
:END:
`,
	"home/garden.org": `#+TODO: PLANT | HARVESTED
* PLANT Tomatoes :writing:garden:
* HARVESTED Beans
`,
}

func TestService_Documents(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	items, total, err := env.Service.ListDocuments(ctx, 0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, env.Path("home/garden.org"), items[0].Path)

	items, total, _ = env.Service.ListDocuments(ctx, 1, 1, "")
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Work", items[0].Title)

	items, total, _ = env.Service.ListDocuments(ctx, 0, 0, "garden")
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)

	detail, err := env.Service.GetDocument(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.HeadlineCount())
	byPath, err := env.Service.GetDocument(ctx, env.Path("home/garden.org"))
	require.NoError(t, err)
	assert.Equal(t, detail.ID, byPath.ID)

	_, err = env.Service.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_DocumentForHeadline(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	item, err := env.Service.DocumentForHeadline(ctx, "1.1")
	require.NoError(t, err)
	assert.Equal(t, env.Path("work.org"), item.Path)

	_, err = env.Service.DocumentForHeadline(ctx, "9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.Service.DocumentForHeadline(ctx, "x.1")
	assert.Error(t, err)
}

func TestService_TagsAndCategories(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	writing := env.Service.HeadlinesWithTag(ctx, "writing")
	require.Len(t, writing, 2)
	for _, h := range writing {
		require.NotNil(t, h.Status)
		assert.Equal(t, models.StateActive, h.Status.StateType)
	}

	meetings := env.Service.HeadlinesWithCategory(ctx, "meetings")
	require.Len(t, meetings, 1)
	assert.Equal(t, "Meeting", meetings[0].Title.Raw)

	job := env.Service.HeadlinesWithCategory(ctx, "job")
	assert.Len(t, job, 2)

	names := map[string]int{}
	for _, tag := range env.Service.Tags(ctx) {
		names[tag.Name] = tag.Count
	}
	assert.Equal(t, 2, names["writing"])
	assert.Equal(t, 1, names["garden"])
}

func TestService_TodoKeywordsPerDocument(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	def, err := env.Service.TodoKeywords(ctx, "")
	require.NoError(t, err)
	_, ok := def.FindStatus("TODO")
	assert.True(t, ok)

	garden, _ := env.Service.GetDocument(ctx, env.Path("home/garden.org"))
	cfg, err := env.Service.TodoKeywords(ctx, garden.ID)
	require.NoError(t, err)
	st, ok := cfg.FindStatus("HARVESTED")
	require.True(t, ok)
	assert.True(t, st.IsClosed())

	closed := env.Service.HeadlinesWithStatus(ctx, models.StateClosed)
	require.Len(t, closed, 2)
	assert.Equal(t, "Beans", closed[0].Title.Raw)
	assert.Equal(t, "Collect data", closed[1].Title.Raw)
}

func TestService_SearchAndUpdates(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	res, err := env.Service.Search(ctx, "quarterly", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "1", res[0].HeadlineID)

	all := env.Service.Updates(ctx, 0, "")
	assert.Len(t, all, 2)
	work, _ := env.Service.GetDocument(ctx, env.Path("work.org"))
	one := env.Service.Updates(ctx, 0, work.ID)
	require.Len(t, one, 1)
	assert.Equal(t, []string{"1.1", "1", "2"}, one[0].Update.New)

	st := env.Service.Stats(ctx)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 5, st.Headlines)
}

func TestService_SetPaths(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	paths := env.Service.Paths(ctx)
	require.Len(t, paths, 1)

	err := env.Service.SetPaths(ctx, []coverage.MonitoredPath{
		{Path: env.Path("work.org"), Type: coverage.TypeFile, ParseEnabled: true},
	})
	require.NoError(t, err)
	_, total, _ := env.Service.ListDocuments(ctx, 0, 0, "")
	assert.Equal(t, 1, total)
	assert.Empty(t, env.Service.HeadlinesWithTag(ctx, "garden"))

	err = env.Service.SetPaths(ctx, []coverage.MonitoredPath{{Path: "", Type: coverage.TypeFile}})
	assert.ErrorIs(t, err, apperr.ErrInvalidCoverage)
}
