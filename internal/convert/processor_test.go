package convert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
	"github.com/shubhamdixena/opportunity-pipeline/internal/store/memory"
	"github.com/shubhamdixena/opportunity-pipeline/internal/validate"
)

type scriptedEngine struct {
	failURL string
}

func (e scriptedEngine) Structure(_ context.Context, title, _, sourceURL string) (pipeline.Structured, error) {
	if sourceURL == e.failURL {
		return pipeline.Structured{}, &pipeline.ParseError{Reason: "no JSON block"}
	}
	return pipeline.Structured{
		Candidate: pipeline.Candidate{
			Title:        title,
			Organization: "Example Org",
			Category:     "Grant",
		},
	}, nil
}

func seedRawItems(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	base := time.Now().UTC()
	for i := range n {
		require.NoError(t, store.CreateItem(t.Context(), pipeline.RawItem{
			ID:           string(rune('a' + i)),
			SourceID:     "src-1",
			URL:          "https://example.org/posts/item-" + string(rune('a'+i)),
			Title:        "Item " + string(rune('A'+i)),
			Body:         "enough body text for structuring",
			Status:       pipeline.ItemStatusRaw,
			DiscoveredAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestProcessPendingIsolatesItemFailures(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedRawItems(t, store, 4)

	svc := newTestService(store, &recordingPublisher{})
	p := NewProcessor(store, scriptedEngine{failURL: "https://example.org/posts/item-b"},
		validate.New(), svc, zap.NewNop())

	result, err := p.ProcessPending(t.Context())
	require.NoError(t, err)

	require.Equal(t, 4, result.Total)
	require.Equal(t, 3, result.Created)
	require.Equal(t, 1, result.Failed)

	failed, err := store.ListItemsByStatus(t.Context(), pipeline.ItemStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "b", failed[0].ID)
	require.Contains(t, failed[0].Notes, "no JSON block")
}

func TestProcessPendingSkipsBodylessItems(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, store.CreateItem(t.Context(), pipeline.RawItem{
		ID:           "empty",
		URL:          "https://example.org/posts/empty",
		Status:       pipeline.ItemStatusRaw,
		DiscoveredAt: time.Now().UTC(),
	}))

	svc := newTestService(store, &recordingPublisher{})
	p := NewProcessor(store, scriptedEngine{}, validate.New(), svc, zap.NewNop())

	result, err := p.ProcessPending(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, result.Skipped)
	require.Zero(t, result.Created)
}

func TestProcessPendingEmptyQueue(t *testing.T) {
	t.Parallel()

	svc := newTestService(memory.New(), &recordingPublisher{})
	p := NewProcessor(memory.New(), scriptedEngine{}, validate.New(), svc, zap.NewNop())

	result, err := p.ProcessPending(t.Context())
	require.NoError(t, err)
	require.Zero(t, result.Total)
}
