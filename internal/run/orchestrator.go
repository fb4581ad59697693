// Package run orchestrates campaign runs: discovery across sources, the
// per-URL content pipeline and the run state machine.
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/convert"
	"github.com/shubhamdixena/opportunity-pipeline/internal/discover"
	"github.com/shubhamdixena/opportunity-pipeline/internal/metrics"
	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Discoverer enumerates candidate post URLs for a source.
type Discoverer interface {
	Discover(ctx context.Context, seedURL string, maxPosts int, strategy string) (pipeline.Discovery, error)
}

// Extractor pulls readable content from one URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (pipeline.Extraction, error)
}

// Structurer produces a candidate from extracted text, honoring
// campaign-specific instructions.
type Structurer interface {
	StructureWithInstructions(ctx context.Context, title, rawText, sourceURL, instructions string) (pipeline.Structured, error)
}

// CandidateValidator scores a candidate.
type CandidateValidator interface {
	Validate(c pipeline.Candidate) pipeline.ValidationResult
}

// Converter turns a validated candidate into an opportunity.
type Converter interface {
	Convert(ctx context.Context, item pipeline.RawItem, candidate pipeline.Candidate, validation pipeline.ValidationResult) (convert.Result, error)
}

// Options tunes orchestrator behavior.
type Options struct {
	// Concurrency bounds the per-run source worker pool.
	Concurrency int
	// ItemTimeout caps each external call for a single URL.
	ItemTimeout time.Duration
	// DefaultMaxPosts applies when a campaign does not set its own cap.
	DefaultMaxPosts int
	ContentType     string
}

// Orchestrator enforces the single-active-run invariant and drives the
// discover → extract → structure → validate → convert pipeline.
type Orchestrator struct {
	store      pipeline.Store
	discoverer Discoverer
	extractor  Extractor
	engine     Structurer
	validator  CandidateValidator
	converter  Converter
	blobs      pipeline.BlobStore
	clock      pipeline.Clock
	ids        pipeline.IDGenerator
	logger     *zap.Logger
	opts       Options

	mu          sync.Mutex
	campaignMus map[string]*sync.Mutex
	active      map[string]*runState
}

// NewOrchestrator wires the run pipeline. The blob store may be nil to
// disable HTML snapshots.
func NewOrchestrator(
	store pipeline.Store,
	discoverer Discoverer,
	extractor Extractor,
	engine Structurer,
	validator CandidateValidator,
	converter Converter,
	blobs pipeline.BlobStore,
	clock pipeline.Clock,
	ids pipeline.IDGenerator,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	metrics.Init()
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 30 * time.Second
	}
	if opts.DefaultMaxPosts <= 0 {
		opts.DefaultMaxPosts = 10
	}
	if opts.ContentType == "" {
		opts.ContentType = "text/html; charset=utf-8"
	}
	return &Orchestrator{
		store:       store,
		discoverer:  discoverer,
		extractor:   extractor,
		engine:      engine,
		validator:   validator,
		converter:   converter,
		blobs:       blobs,
		clock:       clock,
		ids:         ids,
		logger:      logger,
		opts:        opts,
		campaignMus: make(map[string]*sync.Mutex),
		active:      make(map[string]*runState),
	}
}

// Start admits a new run for the campaign and executes it in the
// background. The check-then-create is serialized per campaign, so
// concurrent starts yield exactly one running run; the loser gets
// pipeline.ErrAlreadyRunning.
func (o *Orchestrator) Start(ctx context.Context, campaignID string) (pipeline.CampaignRun, error) {
	campaign, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return pipeline.CampaignRun{}, fmt.Errorf("get campaign %s: %w", campaignID, err)
	}
	if !campaign.Active {
		return pipeline.CampaignRun{}, pipeline.ErrInactiveCampaign
	}
	if len(campaign.SourceIDs) == 0 {
		return pipeline.CampaignRun{}, pipeline.ErrNotConfigured
	}

	lock := o.lockFor(campaignID)
	lock.Lock()
	defer lock.Unlock()

	if _, found, err := o.store.GetActiveRun(ctx, campaignID); err != nil {
		return pipeline.CampaignRun{}, &pipeline.PersistenceError{Op: "get active run", Err: err}
	} else if found {
		return pipeline.CampaignRun{}, pipeline.ErrAlreadyRunning
	}

	id, err := o.ids.NewID()
	if err != nil {
		return pipeline.CampaignRun{}, fmt.Errorf("generate run id: %w", err)
	}
	now := o.clock.Now()
	run := pipeline.CampaignRun{
		ID:           id,
		CampaignID:   campaignID,
		Status:       pipeline.RunStatusRunning,
		StartedAt:    now,
		TotalSources: len(campaign.SourceIDs),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return pipeline.CampaignRun{}, &pipeline.PersistenceError{Op: "create run", Err: err}
	}
	if err := o.store.TouchCampaign(ctx, campaignID, now); err != nil {
		o.logger.Warn("failed to stamp campaign last run", zap.String("campaign_id", campaignID), zap.Error(err))
	}

	st := newRunState(run)
	o.mu.Lock()
	o.active[campaignID] = st
	o.mu.Unlock()

	o.logger.Info("campaign run started",
		zap.String("campaign_id", campaignID),
		zap.String("run_id", run.ID),
		zap.Int("sources", run.TotalSources),
	)
	go o.execute(context.Background(), campaign, st)

	return run, nil
}

// Stop requests a cooperative stop. In-flight per-item work finishes; no
// new sources are started. The run is finalized as stopped.
func (o *Orchestrator) Stop(ctx context.Context, campaignID string) (pipeline.CampaignRun, error) {
	o.mu.Lock()
	st := o.active[campaignID]
	o.mu.Unlock()
	if st != nil {
		st.requestStop()
	}

	run, found, err := o.store.GetActiveRun(ctx, campaignID)
	if err != nil {
		return pipeline.CampaignRun{}, &pipeline.PersistenceError{Op: "get active run", Err: err}
	}
	if !found {
		return pipeline.CampaignRun{}, fmt.Errorf("campaign %s: no running run: %w", campaignID, pipeline.ErrNotFound)
	}

	if st != nil {
		run = st.snapshot()
	}
	now := o.clock.Now()
	run.Status = pipeline.RunStatusStopped
	run.CompletedAt = &now
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return pipeline.CampaignRun{}, &pipeline.PersistenceError{Op: "stop run", Err: err}
	}

	o.logger.Info("campaign run stopped", zap.String("campaign_id", campaignID), zap.String("run_id", run.ID))
	return run, nil
}

// StatusReport is the response to a status query: recent runs plus a live
// progress snapshot when a run is active.
type StatusReport struct {
	Runs     []pipeline.CampaignRun `json:"runs"`
	Progress *pipeline.Progress     `json:"progress,omitempty"`
}

// Status returns the most recent runs and live progress for the campaign.
func (o *Orchestrator) Status(ctx context.Context, campaignID string) (StatusReport, error) {
	runs, err := o.store.ListRuns(ctx, campaignID, 10)
	if err != nil {
		return StatusReport{}, &pipeline.PersistenceError{Op: "list runs", Err: err}
	}
	report := StatusReport{Runs: runs}

	o.mu.Lock()
	st := o.active[campaignID]
	o.mu.Unlock()
	if st != nil {
		p := st.progress(o.clock.Now())
		report.Progress = &p
	}
	return report, nil
}

// QueueStatus summarizes item counts by status and all live runs.
type QueueStatus struct {
	Items      map[pipeline.ItemStatus]int `json:"items"`
	ActiveRuns []pipeline.Progress         `json:"active_runs,omitempty"`
}

// Queue reports the global processing queue state.
func (o *Orchestrator) Queue(ctx context.Context) (QueueStatus, error) {
	statuses := []pipeline.ItemStatus{
		pipeline.ItemStatusRaw, pipeline.ItemStatusProcessing,
		pipeline.ItemStatusProcessed, pipeline.ItemStatusPosted,
		pipeline.ItemStatusConverted, pipeline.ItemStatusFailed,
		pipeline.ItemStatusRejected,
	}
	status := QueueStatus{Items: make(map[pipeline.ItemStatus]int, len(statuses))}
	for _, s := range statuses {
		items, err := o.store.ListItemsByStatus(ctx, s)
		if err != nil {
			return QueueStatus{}, &pipeline.PersistenceError{Op: "list items", Err: err}
		}
		status.Items[s] = len(items)
	}

	now := o.clock.Now()
	o.mu.Lock()
	for _, st := range o.active {
		status.ActiveRuns = append(status.ActiveRuns, st.progress(now))
	}
	o.mu.Unlock()
	return status, nil
}

func (o *Orchestrator) lockFor(campaignID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.campaignMus[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		o.campaignMus[campaignID] = lock
	}
	return lock
}

func (o *Orchestrator) execute(ctx context.Context, campaign pipeline.Campaign, st *runState) {
	// The active entry is cleared before the run record is finalized, so a
	// caller observing a terminal run never sees stale live progress.
	release := func() {
		o.mu.Lock()
		delete(o.active, campaign.ID)
		o.mu.Unlock()
	}

	sources, err := o.store.ListSources(ctx, campaign.SourceIDs)
	if err != nil || len(sources) == 0 {
		errText := "no sources could be loaded"
		if err != nil {
			errText = err.Error()
		}
		release()
		o.finalize(ctx, st, pipeline.RunStatusFailed, errText)
		return
	}

	workers := min(o.opts.Concurrency, len(sources))
	srcCh := make(chan pipeline.Source)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for source := range srcCh {
				o.runSource(ctx, campaign, st, source)
			}
		}()
	}

	for _, source := range sources {
		if st.stopped.Load() {
			break
		}
		srcCh <- source
	}
	close(srcCh)
	wg.Wait()
	release()

	if st.stopped.Load() {
		o.finalize(ctx, st, pipeline.RunStatusStopped, "")
		return
	}
	o.finalize(ctx, st, pipeline.RunStatusCompleted, "")
}

func (o *Orchestrator) runSource(ctx context.Context, campaign pipeline.Campaign, st *runState, source pipeline.Source) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ok := o.processSource(ctx, campaign, st, source)

	if err := o.store.UpdateSourceStats(ctx, source.ID, ok, o.clock.Now()); err != nil {
		o.logger.Warn("failed to update source stats", zap.String("source_id", source.ID), zap.Error(err))
	}
	st.incProcessedSources()
	o.persistCounters(ctx, st)
}

func (o *Orchestrator) processSource(ctx context.Context, campaign pipeline.Campaign, st *runState, source pipeline.Source) bool {
	maxPosts := campaign.MaxPosts
	if maxPosts <= 0 {
		maxPosts = o.opts.DefaultMaxPosts
	}

	discovery, err := o.discoverer.Discover(ctx, source.URL, maxPosts, strategyForKind(source.Kind))
	if err != nil {
		// Discovery failure is recorded and the run moves on.
		o.logger.Warn("discovery failed",
			zap.String("source_id", source.ID),
			zap.String("url", source.URL),
			zap.Error(err),
		)
		return false
	}
	metrics.ObserveDiscovery(source.URL, discovery.MethodUsed)

	for _, postURL := range discovery.Posts {
		if st.stopped.Load() {
			break
		}
		st.setCurrentURL(postURL)
		o.processURL(ctx, campaign, st, source, postURL)
	}
	st.setCurrentURL("")
	return true
}

// processURL is the per-URL error boundary: any pipeline failure is
// recorded on the item and never escapes to abort the source or the run.
func (o *Orchestrator) processURL(ctx context.Context, campaign pipeline.Campaign, st *runState, source pipeline.Source, postURL string) {
	normalized, err := pipeline.NormalizeURL(postURL)
	if err != nil {
		o.logger.Warn("skipping unparseable url", zap.String("url", postURL), zap.Error(err))
		return
	}

	item, fresh, err := o.admitItem(ctx, source, normalized)
	if err != nil {
		o.logger.Warn("item admission failed", zap.String("url", normalized), zap.Error(err))
		return
	}
	if !fresh {
		return
	}
	st.addItemsFound(1)

	itemCtx, cancel := context.WithTimeout(ctx, o.opts.ItemTimeout)
	defer cancel()

	ext, err := o.extractor.Extract(itemCtx, normalized)
	if err != nil {
		o.failItem(ctx, item, err)
		return
	}

	if o.blobs != nil && ext.RawHTML != "" {
		path := fmt.Sprintf("%s/%s.html", campaign.ID, item.ID)
		uri, putErr := o.blobs.PutObject(ctx, path, o.opts.ContentType, []byte(ext.RawHTML))
		if putErr != nil {
			o.logger.Warn("snapshot upload failed", zap.String("item_id", item.ID), zap.Error(putErr))
		} else {
			item.SnapshotURI = uri
		}
	}

	now := o.clock.Now()
	item.Title = ext.Title
	item.Body = ext.Content
	item.ScrapedAt = &now
	item.Status = pipeline.ItemStatusProcessing
	if err := o.store.UpdateItem(ctx, item); err != nil {
		o.logger.Warn("failed to persist scraped item", zap.String("item_id", item.ID), zap.Error(err))
		return
	}

	structured, err := o.engine.StructureWithInstructions(itemCtx, ext.Title, ext.Content, normalized, campaign.Prompt)
	if err != nil {
		o.failItem(ctx, item, err)
		return
	}

	validation := o.validator.Validate(structured.Candidate)
	result, err := o.converter.Convert(ctx, item, structured.Candidate, validation)
	switch {
	case err != nil:
		o.logger.Warn("conversion failed", zap.String("item_id", item.ID), zap.Error(err))
	case result.Created:
		st.incItemsCreated()
		metrics.ObserveItem(string(pipeline.ItemStatusPosted))
		metrics.ObserveOpportunityCreated()
	default:
		metrics.ObserveItem(string(pipeline.ItemStatusRejected))
	}
}

// admitItem dedupes by normalized URL. Already-processed items are skipped;
// previously failed items are reset and retried.
func (o *Orchestrator) admitItem(ctx context.Context, source pipeline.Source, normalizedURL string) (pipeline.RawItem, bool, error) {
	existing, found, err := o.store.FindItemByURL(ctx, source.ID, normalizedURL)
	if err != nil {
		return pipeline.RawItem{}, false, err
	}
	if found {
		if existing.Status != pipeline.ItemStatusFailed {
			return pipeline.RawItem{}, false, nil
		}
		existing.Status = pipeline.ItemStatusRaw
		if err := o.store.UpdateItem(ctx, existing); err != nil {
			return pipeline.RawItem{}, false, err
		}
		return existing, true, nil
	}

	id, err := o.ids.NewID()
	if err != nil {
		return pipeline.RawItem{}, false, fmt.Errorf("generate item id: %w", err)
	}
	item := pipeline.RawItem{
		ID:           id,
		SourceID:     source.ID,
		URL:          normalizedURL,
		Status:       pipeline.ItemStatusRaw,
		DiscoveredAt: o.clock.Now(),
	}
	if err := o.store.CreateItem(ctx, item); err != nil {
		return pipeline.RawItem{}, false, err
	}
	return item, true, nil
}

func (o *Orchestrator) failItem(ctx context.Context, item pipeline.RawItem, cause error) {
	item.Status = pipeline.ItemStatusFailed
	if item.Notes == "" {
		item.Notes = cause.Error()
	} else {
		item.Notes += " | " + cause.Error()
	}
	if err := o.store.UpdateItem(ctx, item); err != nil {
		o.logger.Error("failed to record item failure", zap.String("item_id", item.ID), zap.Error(err))
	}
	metrics.ObserveItem(string(pipeline.ItemStatusFailed))
}

func (o *Orchestrator) persistCounters(ctx context.Context, st *runState) {
	if err := o.store.UpdateRun(ctx, st.snapshot()); err != nil {
		o.logger.Warn("failed to persist run counters", zap.Error(err))
	}
}

func (o *Orchestrator) finalize(ctx context.Context, st *runState, status pipeline.RunStatus, errText string) {
	run := st.finalize(status, errText, o.clock.Now())
	if err := o.store.UpdateRun(ctx, run); err != nil {
		o.logger.Error("failed to finalize run", zap.String("run_id", run.ID), zap.Error(err))
	}
	metrics.ObserveRun(string(status))
	o.logger.Info("campaign run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("items_found", run.ItemsFound),
		zap.Int("items_created", run.ItemsCreated),
	)
}

func strategyForKind(kind pipeline.SourceKind) string {
	switch kind {
	case pipeline.SourceKindRSS:
		return discover.StrategyRSS
	case pipeline.SourceKindSitemap:
		return discover.StrategySitemap
	default:
		return discover.StrategyAuto
	}
}
