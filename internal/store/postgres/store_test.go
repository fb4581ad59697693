package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestGetSourceScansRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	scraped := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM sources WHERE id").
		WithArgs("src-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "url", "kind", "active", "keywords",
			"success_count", "attempt_count", "last_scraped_at",
		}).AddRow(
			"src-1", "Scholarships Daily", "https://example.com", pipeline.SourceKindWebsite,
			true, []byte(`["scholarship"]`), 4, 5, &scraped,
		))

	src, err := store.GetSource(context.Background(), "src-1")
	require.NoError(t, err)
	require.Equal(t, "Scholarships Daily", src.Name)
	require.Equal(t, pipeline.SourceKindWebsite, src.Kind)
	require.Equal(t, []string{"scholarship"}, src.Keywords)
	require.InEpsilon(t, 0.8, src.SuccessRate(), 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSourceNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM sources WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := store.GetSource(context.Background(), "missing")
	require.ErrorIs(t, err, pipeline.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSourceStats(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE sources").
		WithArgs("src-1", true, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateSourceStats(context.Background(), "src-1", true, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateItemInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	discovered := time.Unix(1700000000, 0).UTC()

	item := pipeline.RawItem{
		ID:           "item-1",
		SourceID:     "src-1",
		URL:          "https://example.com/fellowship-2026",
		DiscoveredAt: discovered,
		Status:       pipeline.ItemStatusRaw,
	}

	mock.ExpectExec("INSERT INTO raw_items").
		WithArgs(
			item.ID, item.SourceID, item.URL, "", "", "",
			discovered, (*time.Time)(nil), pipeline.ItemStatusRaw, 0.0, "", "",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateItem(context.Background(), item))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindItemByURLMissReturnsNoError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM raw_items WHERE source_id").
		WithArgs("src-1", "https://example.com/post").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, found, err := store.FindItemByURL(context.Background(), "src-1", "https://example.com/post")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemMissingRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE raw_items").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateItem(context.Background(), pipeline.RawItem{ID: "gone"})
	require.ErrorIs(t, err, pipeline.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListItemsByStatus(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	discovered := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM raw_items WHERE status").
		WithArgs(pipeline.ItemStatusRaw).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "source_id", "url", "title", "body", "snapshot_uri",
			"discovered_at", "scraped_at", "status", "confidence", "opportunity_id", "notes",
		}).AddRow(
			"item-1", "src-1", "https://example.com/a", "", "", "",
			discovered, (*time.Time)(nil), pipeline.ItemStatusRaw, 0.0, "", "",
		).AddRow(
			"item-2", "src-1", "https://example.com/b", "", "", "",
			discovered.Add(time.Minute), (*time.Time)(nil), pipeline.ItemStatusRaw, 0.0, "", "",
		))

	items, err := store.ListItemsByStatus(context.Background(), pipeline.ItemStatusRaw)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "item-1", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveRun(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM campaign_runs").
		WithArgs("camp-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "campaign_id", "status", "started_at", "completed_at",
			"total_sources", "processed_sources", "items_found", "items_created", "error_text",
		}).AddRow(
			"run-1", "camp-1", pipeline.RunStatusRunning, started, (*time.Time)(nil),
			3, 1, 5, 2, "",
		))

	run, active, err := store.GetActiveRun(context.Background(), "camp-1")
	require.NoError(t, err)
	require.True(t, active)
	require.Equal(t, pipeline.RunStatusRunning, run.Status)
	require.Equal(t, 3, run.TotalSources)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaignScansRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE id").
		WithArgs("camp-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "source_ids", "prompt", "frequency", "frequency_unit",
			"category", "max_posts", "active", "last_run_at",
		}).AddRow(
			"camp-1", "Weekly scholarships", []byte(`["src-1","src-2"]`), "",
			1, "weeks", "Scholarship", 10, true, (*time.Time)(nil),
		))

	campaign, err := store.GetCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Equal(t, []string{"src-1", "src-2"}, campaign.SourceIDs)
	require.Equal(t, 10, campaign.MaxPosts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOpportunityEncodesLists(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()

	opp := pipeline.Opportunity{
		ID:           "opp-1",
		Title:        "Global Fellowship",
		Organization: "Example Org",
		Category:     "Fellowship",
		Requirements: []string{"CV"},
		FundingType:  "Fully Funded",
		Amount:       pipeline.Amount{Type: pipeline.AmountShapeSingle, Value: "5000"},
		SourceURL:    "https://example.com/fellowship",
		Confidence:   0.9,
		CreatedAt:    created,
	}

	mock.ExpectExec("INSERT INTO opportunities").
		WithArgs(
			opp.ID, opp.Title, opp.Organization, opp.Category, "", "",
			[]byte(`["CV"]`), "", []byte(`[]`), opp.FundingType,
			[]byte(`{"type":"single","value":"5000"}`),
			[]byte(`[]`), []byte(`[]`), "", (*time.Time)(nil), "",
			(*time.Time)(nil), (*time.Time)(nil), "", opp.SourceURL, 0.9, created,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.CreateOpportunity(context.Background(), opp)
	require.NoError(t, err)
	require.Equal(t, "opp-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpportunityByURL(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id FROM opportunities WHERE source_url").
		WithArgs("https://example.com/fellowship").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("opp-1"))

	id, found, err := store.FindOpportunityByURL(context.Background(), "https://example.com/fellowship")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "opp-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}
