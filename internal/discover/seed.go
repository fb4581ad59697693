package discover

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// SeedScanner collects outbound links from the seed page itself and keeps
// the ones that look like individual posts.
type SeedScanner struct {
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSeedScanner builds a scanner with the given request settings.
func NewSeedScanner(userAgent string, timeout time.Duration, logger *zap.Logger) *SeedScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SeedScanner{userAgent: userAgent, timeout: timeout, logger: logger}
}

// Scan visits the seed page once and returns candidate post URLs.
func (s *SeedScanner) Scan(ctx context.Context, seedURL string) ([]string, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	var links []string
	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if looksLikePost(seedURL, link) {
			links = append(links, link)
		}
	})

	var visitErr error
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(seedURL); err != nil {
		return nil, fmt.Errorf("visit seed page: %w", err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, fmt.Errorf("scan seed page: %w", visitErr)
	}

	s.logger.Debug("seed scan complete", zap.String("url", seedURL), zap.Int("candidates", len(links)))
	return links, nil
}
