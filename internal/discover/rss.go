package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// conventionalFeedPaths are probed relative to the site root when the seed
// URL itself is not a feed.
var conventionalFeedPaths = []string{
	"/feed",
	"/rss",
	"/rss.xml",
	"/feed.xml",
	"/atom.xml",
	"/index.xml",
}

// FeedScanner discovers posts through RSS/Atom feeds.
type FeedScanner struct {
	parser *gofeed.Parser
	logger *zap.Logger
}

// NewFeedScanner builds a scanner with a bounded HTTP client.
func NewFeedScanner(userAgent string, timeout time.Duration, logger *zap.Logger) *FeedScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: timeout}
	return &FeedScanner{parser: parser, logger: logger}
}

// Scan tries the seed URL as a feed, then conventional feed paths, and
// returns item links from the first feed that parses.
func (s *FeedScanner) Scan(ctx context.Context, seedURL string) ([]string, error) {
	var lastErr error
	for _, feedURL := range s.feedCandidates(seedURL) {
		feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			lastErr = err
			continue
		}
		links := make([]string, 0, len(feed.Items))
		for _, item := range feed.Items {
			if link := strings.TrimSpace(item.Link); link != "" {
				links = append(links, link)
			}
		}
		if len(links) > 0 {
			s.logger.Debug("feed scan complete",
				zap.String("feed_url", feedURL),
				zap.Int("candidates", len(links)),
			)
			return links, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no parseable feed: %w", lastErr)
	}
	return nil, fmt.Errorf("no feed items found for %s", seedURL)
}

func (s *FeedScanner) feedCandidates(seedURL string) []string {
	trimmed := strings.TrimRight(seedURL, "/")
	if looksLikeFeed(trimmed) {
		return []string{trimmed}
	}

	candidates := []string{trimmed + "/feed"}
	if u, err := url.Parse(trimmed); err == nil && u.Host != "" {
		root := u.Scheme + "://" + u.Host
		for _, p := range conventionalFeedPaths {
			candidate := root + p
			if candidate != candidates[0] {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}

func looksLikeFeed(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, marker := range []string{"/feed", "/rss", ".xml"} {
		if strings.HasSuffix(lower, marker) {
			return true
		}
	}
	return false
}
