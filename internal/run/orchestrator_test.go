package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/convert"
	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
	"github.com/shubhamdixena/opportunity-pipeline/internal/store/memory"
	"github.com/shubhamdixena/opportunity-pipeline/internal/validate"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type fakeDiscoverer struct {
	posts map[string][]string
	err   error
	gate  chan struct{}
}

func (d *fakeDiscoverer) Discover(_ context.Context, seedURL string, maxPosts int, _ string) (pipeline.Discovery, error) {
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return pipeline.Discovery{}, d.err
	}
	posts := d.posts[seedURL]
	if len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}
	return pipeline.Discovery{Posts: posts, MethodUsed: "seed"}, nil
}

type fakeExtractor struct {
	failURL string
}

func (e fakeExtractor) Extract(_ context.Context, url string) (pipeline.Extraction, error) {
	if url == e.failURL {
		return pipeline.Extraction{}, &pipeline.ExtractionError{URL: url, Reason: "quality gate"}
	}
	return pipeline.Extraction{
		URL:     url,
		Title:   "Title for " + url,
		Content: "Plenty of readable content extracted from the page body.",
		RawHTML: "<html><body>snapshot</body></html>",
	}, nil
}

type fakeEngine struct{}

func (fakeEngine) StructureWithInstructions(_ context.Context, title, _, _, _ string) (pipeline.Structured, error) {
	return pipeline.Structured{
		Candidate: pipeline.Candidate{Title: title, Organization: "Org", Category: "Grant"},
	}, nil
}

type recordingBlobs struct {
	mu    sync.Mutex
	paths []string
}

func (b *recordingBlobs) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	return "mem://" + path, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) (string, error) { return "", nil }

type fixture struct {
	store *memory.Store
	orch  *Orchestrator
}

func newFixture(t *testing.T, disc Discoverer, ext Extractor) fixture {
	t.Helper()
	store := memory.New()
	clock := &tickingClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	ids := &seqIDs{}
	converter := convert.NewService(store, store, noopPublisher{}, "", clock, ids, zap.NewNop())
	orch := NewOrchestrator(store, disc, ext, fakeEngine{}, validate.New(), converter,
		&recordingBlobs{}, clock, ids, Options{Concurrency: 2, ItemTimeout: time.Second}, zap.NewNop())
	return fixture{store: store, orch: orch}
}

func seedCampaign(t *testing.T, store *memory.Store, sourceURLs ...string) pipeline.Campaign {
	t.Helper()
	campaign := pipeline.Campaign{ID: "camp-1", Name: "Weekly scan", Active: true, MaxPosts: 5}
	for i, u := range sourceURLs {
		id := fmt.Sprintf("src-%d", i+1)
		store.PutSource(pipeline.Source{ID: id, URL: u, Kind: pipeline.SourceKindWebsite, Active: true})
		campaign.SourceIDs = append(campaign.SourceIDs, id)
	}
	store.PutCampaign(campaign)
	return campaign
}

func waitTerminal(t *testing.T, store *memory.Store, runID string) pipeline.CampaignRun {
	t.Helper()
	var final pipeline.CampaignRun
	require.Eventually(t, func() bool {
		runs, err := store.ListRuns(context.Background(), "camp-1", 10)
		if err != nil {
			return false
		}
		for _, r := range runs {
			if r.ID == runID && r.Status.IsTerminal() {
				final = r
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return final
}

func TestStartGuards(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeDiscoverer{}, fakeExtractor{})

	f.store.PutCampaign(pipeline.Campaign{ID: "camp-1", Active: false, SourceIDs: []string{"src-1"}})
	_, err := f.orch.Start(t.Context(), "camp-1")
	require.ErrorIs(t, err, pipeline.ErrInactiveCampaign)

	f.store.PutCampaign(pipeline.Campaign{ID: "camp-1", Active: true})
	_, err = f.orch.Start(t.Context(), "camp-1")
	require.ErrorIs(t, err, pipeline.ErrNotConfigured)

	_, err = f.orch.Start(t.Context(), "missing")
	require.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{posts: map[string][]string{
		"https://a.example.org": {
			"https://a.example.org/posts/grant-one",
			"https://a.example.org/posts/grant-two",
		},
		"https://b.example.org": {
			"https://b.example.org/posts/award-one",
		},
	}}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org", "https://b.example.org")

	run, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusRunning, run.Status)
	require.Equal(t, 2, run.TotalSources)

	final := waitTerminal(t, f.store, run.ID)
	require.Equal(t, pipeline.RunStatusCompleted, final.Status)
	require.Equal(t, 2, final.ProcessedSources)
	require.Equal(t, 3, final.ItemsFound)
	require.Equal(t, 3, final.ItemsCreated)
	require.NotNil(t, final.CompletedAt)

	posted, err := f.store.ListItemsByStatus(t.Context(), pipeline.ItemStatusPosted)
	require.NoError(t, err)
	require.Len(t, posted, 3)
	for _, item := range posted {
		require.NotEmpty(t, item.OpportunityID)
		require.NotEmpty(t, item.SnapshotURI)
	}

	src, err := f.store.GetSource(t.Context(), "src-1")
	require.NoError(t, err)
	require.Equal(t, 1, src.AttemptCount)
	require.Equal(t, 1, src.SuccessCount)

	campaign, err := f.store.GetCampaign(t.Context(), "camp-1")
	require.NoError(t, err)
	require.NotNil(t, campaign.LastRunAt)
}

func TestPerURLFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{posts: map[string][]string{
		"https://a.example.org": {
			"https://a.example.org/posts/good-one",
			"https://a.example.org/posts/broken",
			"https://a.example.org/posts/good-two",
		},
	}}
	f := newFixture(t, disc, fakeExtractor{failURL: "https://a.example.org/posts/broken"})
	seedCampaign(t, f.store, "https://a.example.org")

	run, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)

	final := waitTerminal(t, f.store, run.ID)
	require.Equal(t, pipeline.RunStatusCompleted, final.Status)
	require.Equal(t, 3, final.ItemsFound)
	require.Equal(t, 2, final.ItemsCreated)

	failed, err := f.store.ListItemsByStatus(t.Context(), pipeline.ItemStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Contains(t, failed[0].Notes, "quality gate")
}

func TestDiscoveryFailureMarksSourceUnsuccessful(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{err: &pipeline.DiscoveryError{URL: "https://a.example.org", Err: errors.New("all methods failed")}}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org")

	run, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)

	final := waitTerminal(t, f.store, run.ID)
	require.Equal(t, pipeline.RunStatusCompleted, final.Status)
	require.Zero(t, final.ItemsFound)

	src, err := f.store.GetSource(t.Context(), "src-1")
	require.NoError(t, err)
	require.Equal(t, 1, src.AttemptCount)
	require.Zero(t, src.SuccessCount)
}

func TestConcurrentStartAdmitsExactlyOne(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	disc := &fakeDiscoverer{gate: gate}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org")

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for range attempts {
		go func() {
			defer wg.Done()
			_, err := f.orch.Start(context.Background(), "camp-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var started, rejected int
	for err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, started)
	require.Equal(t, attempts-1, rejected)

	close(gate)
}

func TestRerunSkipsAlreadyPostedItems(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{posts: map[string][]string{
		"https://a.example.org": {"https://a.example.org/posts/grant-one"},
	}}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org")

	first, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)
	require.Equal(t, 1, waitTerminal(t, f.store, first.ID).ItemsCreated)

	second, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)
	final := waitTerminal(t, f.store, second.ID)
	require.Zero(t, final.ItemsFound)
	require.Zero(t, final.ItemsCreated)
}

func TestStopFinalizesRun(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	disc := &fakeDiscoverer{gate: gate, posts: map[string][]string{}}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org", "https://b.example.org", "https://c.example.org")

	run, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)

	stopped, err := f.orch.Stop(t.Context(), "camp-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusStopped, stopped.Status)
	require.NotNil(t, stopped.CompletedAt)

	close(gate)
	final := waitTerminal(t, f.store, run.ID)
	require.Equal(t, pipeline.RunStatusStopped, final.Status)

	_, err = f.orch.Stop(t.Context(), "camp-1")
	require.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestStatusReportsRecentRuns(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{posts: map[string][]string{}}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org")

	run, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)
	waitTerminal(t, f.store, run.ID)

	report, err := f.orch.Status(t.Context(), "camp-1")
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	require.Nil(t, report.Progress)
}

func TestQueueCountsItems(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{posts: map[string][]string{
		"https://a.example.org": {"https://a.example.org/posts/grant-one"},
	}}
	f := newFixture(t, disc, fakeExtractor{})
	seedCampaign(t, f.store, "https://a.example.org")

	run, err := f.orch.Start(t.Context(), "camp-1")
	require.NoError(t, err)
	waitTerminal(t, f.store, run.ID)

	queue, err := f.orch.Queue(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, queue.Items[pipeline.ItemStatusPosted])
	require.Empty(t, queue.ActiveRuns)
}
