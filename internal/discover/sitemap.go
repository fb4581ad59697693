package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// maxChildSitemaps bounds how many child sitemaps of an index are fetched.
const maxChildSitemaps = 3

var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

// SitemapScanner discovers posts by reading the site's sitemap.
type SitemapScanner struct {
	fetcher pipeline.Fetcher
	logger  *zap.Logger
}

// NewSitemapScanner builds a scanner on top of the shared fetcher.
func NewSitemapScanner(fetcher pipeline.Fetcher, logger *zap.Logger) *SitemapScanner {
	return &SitemapScanner{fetcher: fetcher, logger: logger}
}

// Scan probes conventional sitemap locations, follows one level of sitemap
// index nesting, and filters entries through the post heuristics.
func (s *SitemapScanner) Scan(ctx context.Context, seedURL string) ([]string, error) {
	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	root := u.Scheme + "://" + u.Host

	var lastErr error
	for _, path := range sitemapPaths {
		page, err := s.fetcher.Fetch(ctx, root+path)
		if err != nil {
			lastErr = err
			continue
		}
		urls, children, err := parseSitemap(page.Body)
		if err != nil {
			lastErr = err
			continue
		}
		if len(children) > maxChildSitemaps {
			children = children[:maxChildSitemaps]
		}
		for _, child := range children {
			childPage, err := s.fetcher.Fetch(ctx, child)
			if err != nil {
				continue
			}
			childURLs, _, err := parseSitemap(childPage.Body)
			if err != nil {
				continue
			}
			urls = append(urls, childURLs...)
		}

		posts := make([]string, 0, len(urls))
		for _, entry := range urls {
			if looksLikePost(seedURL, entry) {
				posts = append(posts, entry)
			}
		}
		if len(posts) > 0 {
			s.logger.Debug("sitemap scan complete",
				zap.String("sitemap", root+path),
				zap.Int("candidates", len(posts)),
			)
			return posts, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no usable sitemap: %w", lastErr)
	}
	return nil, fmt.Errorf("no post urls in sitemap for %s", seedURL)
}

func parseSitemap(body []byte) (urls, children []string, err error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse sitemap xml: %w", err)
	}
	for _, node := range xmlquery.Find(doc, "//urlset/url/loc") {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			urls = append(urls, loc)
		}
	}
	for _, node := range xmlquery.Find(doc, "//sitemapindex/sitemap/loc") {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			children = append(children, loc)
		}
	}
	return urls, children, nil
}
