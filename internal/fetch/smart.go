package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// SmartFetcher fetches over HTTP first and falls back to the renderer when
// the detector flags the response as a JS shell. With a nil renderer it
// behaves like the plain fetcher.
type SmartFetcher struct {
	fetcher  pipeline.Fetcher
	detector pipeline.ShellDetector
	renderer pipeline.Renderer
	logger   *zap.Logger
}

// NewSmartFetcher wires the fetch, detect, render cascade.
func NewSmartFetcher(fetcher pipeline.Fetcher, detector pipeline.ShellDetector, renderer pipeline.Renderer, logger *zap.Logger) *SmartFetcher {
	return &SmartFetcher{
		fetcher:  fetcher,
		detector: detector,
		renderer: renderer,
		logger:   logger,
	}
}

// Fetch retrieves the page, promoting to a JS render when needed. A failed
// render falls back to the plain HTTP result rather than failing the fetch.
func (s *SmartFetcher) Fetch(ctx context.Context, rawURL string) (pipeline.Page, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return page, err
	}
	if s.renderer == nil || s.detector == nil || !s.detector.NeedsJS(page) {
		return page, nil
	}

	rendered, renderErr := s.renderer.Render(ctx, rawURL)
	if renderErr != nil {
		s.logger.Warn("js render failed, using plain fetch",
			zap.String("url", rawURL),
			zap.Error(renderErr),
		)
		return page, nil
	}
	return rendered, nil
}
