package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

func TestSourceStatsRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	s.PutSource(pipeline.Source{ID: "src-1", Name: "Example", URL: "https://example.org", Active: true})

	now := time.Now().UTC()
	require.NoError(t, s.UpdateSourceStats(t.Context(), "src-1", true, now))
	require.NoError(t, s.UpdateSourceStats(t.Context(), "src-1", false, now))

	source, err := s.GetSource(t.Context(), "src-1")
	require.NoError(t, err)
	require.Equal(t, 2, source.AttemptCount)
	require.Equal(t, 1, source.SuccessCount)
	require.InDelta(t, 0.5, source.SuccessRate(), 1e-9)
	require.NotNil(t, source.LastScrapedAt)
}

func TestGetSourceNotFound(t *testing.T) {
	t.Parallel()

	_, err := New().GetSource(t.Context(), "missing")
	require.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestItemLifecycle(t *testing.T) {
	t.Parallel()

	s := New()
	item := pipeline.RawItem{
		ID:           "item-1",
		SourceID:     "src-1",
		URL:          "https://example.org/posts/grant",
		Status:       pipeline.ItemStatusRaw,
		DiscoveredAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateItem(t.Context(), item))

	found, ok, err := s.FindItemByURL(t.Context(), "src-1", item.URL)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "item-1", found.ID)

	_, ok, err = s.FindItemByURL(t.Context(), "src-2", item.URL)
	require.NoError(t, err)
	require.False(t, ok)

	item.Status = pipeline.ItemStatusFailed
	require.NoError(t, s.UpdateItem(t.Context(), item))

	failed, err := s.ListItemsByStatus(t.Context(), pipeline.ItemStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestListItemsByStatusOrdersOldestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	base := time.Now().UTC()
	for i, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.CreateItem(t.Context(), pipeline.RawItem{
			ID:           id,
			Status:       pipeline.ItemStatusRaw,
			DiscoveredAt: base.Add(time.Duration(2-i) * time.Minute),
		}))
	}

	items, err := s.ListItemsByStatus(t.Context(), pipeline.ItemStatusRaw)
	require.NoError(t, err)
	require.Equal(t, "c", items[0].ID)
	require.Equal(t, "b", items[2].ID)
}

func TestActiveRunTracking(t *testing.T) {
	t.Parallel()

	s := New()
	run := pipeline.CampaignRun{
		ID:         "run-1",
		CampaignID: "camp-1",
		Status:     pipeline.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateRun(t.Context(), run))

	active, ok, err := s.GetActiveRun(t.Context(), "camp-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "run-1", active.ID)

	completed := time.Now().UTC()
	run.Status = pipeline.RunStatusCompleted
	run.CompletedAt = &completed
	require.NoError(t, s.UpdateRun(t.Context(), run))

	_, ok, err = s.GetActiveRun(t.Context(), "camp-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListRunsMostRecentFirstWithLimit(t *testing.T) {
	t.Parallel()

	s := New()
	base := time.Now().UTC()
	for i := range 5 {
		require.NoError(t, s.CreateRun(t.Context(), pipeline.CampaignRun{
			ID:         string(rune('a' + i)),
			CampaignID: "camp-1",
			Status:     pipeline.RunStatusCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(t.Context(), "camp-1", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "e", runs[0].ID)
}

func TestOpportunityURLIndex(t *testing.T) {
	t.Parallel()

	s := New()
	id, err := s.CreateOpportunity(t.Context(), pipeline.Opportunity{
		ID:        "opp-1",
		Title:     "Grant X",
		SourceURL: "https://example.org/posts/grant-x",
	})
	require.NoError(t, err)
	require.Equal(t, "opp-1", id)

	found, ok, err := s.FindOpportunityByURL(t.Context(), "https://example.org/posts/grant-x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "opp-1", found)

	_, ok, _ = s.FindOpportunityByURL(t.Context(), "https://example.org/other")
	require.False(t, ok)
}
