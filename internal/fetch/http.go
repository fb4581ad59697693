// Package fetch retrieves remote pages over plain HTTP and, when a page
// looks like an empty JS shell, via headless Chrome.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Options configures the HTTP fetcher.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	// HostQPS bounds requests per second against a single host. Zero
	// disables the limiter.
	HostQPS float64
}

// HTTPFetcher implements pipeline.Fetcher with a shared http.Client and
// browser-like request headers.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	hostQPS      float64
	hostLimiters sync.Map
	logger       *zap.Logger
}

// NewHTTPFetcher builds a fetcher from the given options.
func NewHTTPFetcher(opts Options, logger *zap.Logger) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &HTTPFetcher{
		client:       &http.Client{Timeout: timeout},
		userAgent:    opts.UserAgent,
		maxBodyBytes: maxBody,
		hostQPS:      opts.HostQPS,
		logger:       logger,
	}
}

// Fetch downloads a single URL. Non-2xx responses and transport failures
// are reported as *pipeline.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (pipeline.Page, error) {
	if err := f.waitHostBudget(ctx, rawURL); err != nil {
		return pipeline.Page{}, &pipeline.FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return pipeline.Page{}, &pipeline.FetchError{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	f.setHeaders(req)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return pipeline.Page{}, &pipeline.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return pipeline.Page{}, &pipeline.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	page := pipeline.Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return page, &pipeline.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	f.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", page.Duration),
	)
	return page, nil
}

func (f *HTTPFetcher) setHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

func (f *HTTPFetcher) waitHostBudget(ctx context.Context, rawURL string) error {
	if f.hostQPS <= 0 {
		return nil
	}
	host := hostOf(rawURL)
	val, _ := f.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(f.hostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func hostOf(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.ToLower(rest)
}
