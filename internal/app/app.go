// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/api"
	"github.com/shubhamdixena/opportunity-pipeline/internal/blob"
	"github.com/shubhamdixena/opportunity-pipeline/internal/clock/system"
	"github.com/shubhamdixena/opportunity-pipeline/internal/config"
	"github.com/shubhamdixena/opportunity-pipeline/internal/convert"
	"github.com/shubhamdixena/opportunity-pipeline/internal/discover"
	"github.com/shubhamdixena/opportunity-pipeline/internal/extract"
	"github.com/shubhamdixena/opportunity-pipeline/internal/fetch"
	"github.com/shubhamdixena/opportunity-pipeline/internal/id/uuid"
	"github.com/shubhamdixena/opportunity-pipeline/internal/llm"
	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
	"github.com/shubhamdixena/opportunity-pipeline/internal/publish"
	"github.com/shubhamdixena/opportunity-pipeline/internal/run"
	"github.com/shubhamdixena/opportunity-pipeline/internal/schedule"
	"github.com/shubhamdixena/opportunity-pipeline/internal/store/memory"
	"github.com/shubhamdixena/opportunity-pipeline/internal/store/postgres"
	"github.com/shubhamdixena/opportunity-pipeline/internal/structure"
	"github.com/shubhamdixena/opportunity-pipeline/internal/validate"
)

// App holds the shared, long-lived services for the pipeline. It is
// initialized once at startup and passed to the command that needs it.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        pipeline.Store
	Blobs        pipeline.BlobStore
	Publisher    pipeline.Publisher
	Discoverer   *discover.Discoverer
	Extractor    *extract.Extractor
	Engine       *structure.Engine
	Validator    *validate.Validator
	Converter    *convert.Service
	Processor    *convert.Processor
	Orchestrator *run.Orchestrator
	Scheduler    *schedule.Scheduler
	Server       *api.Server

	closers []func() error
}

// New builds the full service graph from configuration. It fails fast when a
// configured provider cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	store, err := a.buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	blobs, err := a.buildBlobs(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Blobs = blobs

	publisher, err := a.buildPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Publisher = publisher

	fetcher := fetch.NewHTTPFetcher(fetch.Options{
		Timeout:      cfg.FetchTimeout(),
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		HostQPS:      2,
	}, logger)
	detector := fetch.NewHeuristicDetector(cfg.Headless.MinHTMLBytes, fetch.DefaultShellSelectors, fetch.DefaultShellKeywords)
	renderer, err := a.buildRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}
	smart := fetch.NewSmartFetcher(fetcher, detector, renderer, logger)

	a.Discoverer = discover.New(
		discover.NewSeedScanner(cfg.Fetch.UserAgent, cfg.FetchTimeout(), logger),
		discover.NewFeedScanner(cfg.Fetch.UserAgent, cfg.FetchTimeout(), logger),
		discover.NewSitemapScanner(smart, logger),
		logger,
	)
	a.Extractor = extract.New(smart, logger)

	completer := llm.NewOpenAIClient(llm.ClientOptions{
		Endpoint: cfg.AI.Endpoint,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		Timeout:  cfg.AITimeout(),
	}, logger)
	a.Engine = structure.New(completer, logger)
	a.Validator = validate.New()

	clk := system.New()
	ids := uuid.NewGenerator()

	a.Converter = convert.NewService(store, store, publisher, cfg.Events.Topic, clk, ids, logger)
	a.Processor = convert.NewProcessor(store, a.Engine, a.Validator, a.Converter, logger)
	a.Orchestrator = run.NewOrchestrator(
		store, a.Discoverer, a.Extractor, a.Engine, a.Validator, a.Converter,
		blobs, clk, ids,
		run.Options{
			Concurrency:     cfg.Runner.SourceConcurrency,
			ItemTimeout:     cfg.ItemTimeout(),
			DefaultMaxPosts: cfg.Discovery.MaxPostsDefault,
		},
		logger,
	)
	if cfg.Scheduler.Enabled {
		a.Scheduler = schedule.New(store, a.Orchestrator, clk, logger)
	}
	a.Server = api.NewServer(store, a.Discoverer, a.Extractor, a.Engine, a.Validator, a.Converter, a.Processor, a.Orchestrator, cfg, logger)

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Store, error) {
	if cfg.DB.DSN == "" {
		logger.Info("using in-memory store; data will not survive restarts")
		return memory.New(), nil
	}
	logger.Info("connecting to postgres")
	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.DB.DSN, MaxConns: cfg.DB.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return store, nil
}

func (a *App) buildBlobs(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.BlobStore, error) {
	switch cfg.Snapshots.Provider {
	case "gcs":
		if cfg.Snapshots.GCSBucket == "" {
			return nil, fmt.Errorf("snapshots provider is 'gcs' but snapshots.gcs_bucket is not set")
		}
		logger.Info("using GCS snapshot store", zap.String("bucket", cfg.Snapshots.GCSBucket))
		store, err := blob.NewGCS(ctx, cfg.Snapshots.GCSBucket, cfg.Snapshots.Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs snapshots: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "memory":
		return blob.NewMemory(), nil
	case "noop", "":
		logger.Info("snapshots disabled; raw HTML will be discarded")
		return blob.NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown snapshots provider: %s", cfg.Snapshots.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Publisher, error) {
	switch cfg.Events.Provider {
	case "pubsub":
		if cfg.Events.ProjectID == "" {
			return nil, fmt.Errorf("events provider is 'pubsub' but events.project_id is not set")
		}
		logger.Info("using pub/sub event publisher", zap.String("project", cfg.Events.ProjectID))
		pub, err := publish.NewPubSub(ctx, cfg.Events.ProjectID, logger)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		return pub, nil
	case "memory":
		return publish.NewMemory(), nil
	case "noop", "":
		logger.Info("event publishing disabled")
		return publish.NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown events provider: %s", cfg.Events.Provider)
	}
}

func (a *App) buildRenderer(cfg config.Config, logger *zap.Logger) (pipeline.Renderer, error) {
	if !cfg.Headless.Enabled {
		return nil, nil
	}
	renderer, err := fetch.NewChromedpRenderer(fetch.RendererOptions{
		MaxParallel: cfg.Headless.MaxParallel,
		NavTimeout:  cfg.NavTimeout(),
		UserAgent:   cfg.Fetch.UserAgent,
	}, logger)
	switch {
	case err == nil:
		a.closers = append(a.closers, renderer.Close)
		return renderer, nil
	case errors.Is(err, fetch.ErrRendererDisabled):
		logger.Warn("headless enabled but renderer unavailable; JS shells will not be rendered")
		return nil, nil
	default:
		return nil, fmt.Errorf("init renderer: %w", err)
	}
}

// Close shuts down all services in reverse initialization order and flushes
// the logger.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("error closing service", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
