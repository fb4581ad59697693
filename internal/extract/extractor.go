// Package extract pulls readable article content out of fetched pages using
// ordered selector cascades with a readability fallback.
package extract

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

const (
	// minElementChars filters out boilerplate fragments inside a container.
	minElementChars = 20
	// minSelectorChars is the per-selector success threshold for the
	// content cascade.
	minSelectorChars = 100
	// minContentChars is the quality gate below which extraction fails.
	minContentChars = 50
	excerptMaxChars = 160
)

// strippedSelectors are removed from the document before any cascade runs.
var strippedSelectors = []string{
	"script", "style", "noscript", "nav", "footer", "aside",
	"header .menu", ".advertisement", ".ads", ".ad", ".sidebar",
	".comments", ".related-posts", ".share-buttons",
}

var titleSelectors = []string{
	".entry-title",
	".post-title",
	"article h1",
	"h1",
}

var contentSelectors = []string{
	".entry-content",
	".post-content",
	".article-content",
	"article",
	"main",
	".content",
	"#content",
}

var authorSelectors = []string{
	"meta[name='author']",
	"[rel='author']",
	".author-name",
	".author",
	".byline",
}

var dateSelectors = []string{
	"meta[property='article:published_time']",
	"time[datetime]",
	".published",
	".post-date",
	".date",
}

var categorySelectors = []string{
	"meta[property='article:section']",
	".cat-links a",
	".category a",
	".post-category",
}

var tagSelectors = []string{
	".tags a",
	".tag-links a",
	"a[rel='tag']",
}

// Extractor implements the content extraction contract on top of a Fetcher.
type Extractor struct {
	fetcher pipeline.Fetcher
	logger  *zap.Logger
}

// New creates an Extractor.
func New(fetcher pipeline.Fetcher, logger *zap.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, logger: logger}
}

// Extract fetches the URL and extracts a best-effort readable tuple. It
// returns *pipeline.FetchError on transport failure and
// *pipeline.ExtractionError when the quality gate fails.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (pipeline.Extraction, error) {
	page, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return pipeline.Extraction{}, err
	}
	return e.FromPage(page)
}

// FromPage extracts readable content from an already-fetched page.
func (e *Extractor) FromPage(page pipeline.Page) (pipeline.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return pipeline.Extraction{}, &pipeline.ExtractionError{URL: page.URL, Reason: "unparseable html: " + err.Error()}
	}

	for _, sel := range strippedSelectors {
		doc.Find(sel).Remove()
	}

	ext := pipeline.Extraction{
		URL:           page.URL,
		Title:         e.extractTitle(doc),
		Content:       e.extractContent(doc),
		Author:        firstMatchText(doc, authorSelectors),
		PublishedDate: firstMatchText(doc, dateSelectors),
		Category:      firstMatchText(doc, categorySelectors),
		Tags:          collectTexts(doc, tagSelectors),
		RawHTML:       string(page.Body),
	}
	ext.Excerpt = e.extractExcerpt(doc, ext.Content)

	if ext.Title == "" || len(ext.Content) < minContentChars {
		if fb, ok := e.readabilityFallback(page); ok {
			if ext.Title == "" {
				ext.Title = fb.Title
			}
			if len(fb.Content) > len(ext.Content) {
				ext.Content = fb.Content
			}
			if ext.Excerpt == "" {
				ext.Excerpt = fb.Excerpt
			}
		}
	}

	if ext.Title == "" || len(ext.Content) < minContentChars {
		return pipeline.Extraction{}, &pipeline.ExtractionError{URL: page.URL, Reason: "quality gate: empty title or content below threshold"}
	}

	e.logger.Debug("extracted content",
		zap.String("url", page.URL),
		zap.String("title", ext.Title),
		zap.Int("content_chars", len(ext.Content)),
	)
	return ext, nil
}

func (e *Extractor) extractTitle(doc *goquery.Document) string {
	for _, sel := range titleSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// extractContent walks the container cascade and collects descendant blocks
// above the per-element threshold, joined by blank lines. The first selector
// whose joined text reaches minSelectorChars wins.
func (e *Extractor) extractContent(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		joined := joinBlocks(container)
		if len(joined) >= minSelectorChars {
			return joined
		}
	}

	// Last resort: every paragraph on the page above the element threshold.
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); len(text) > minElementChars {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func joinBlocks(container *goquery.Selection) string {
	var parts []string
	container.Find("p, h2, h3, h4, li, div").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Is("p, div, ul, ol") {
			return
		}
		if text := strings.TrimSpace(s.Text()); len(text) > minElementChars {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func (e *Extractor) extractExcerpt(doc *goquery.Document, content string) string {
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			return desc
		}
	}
	first := strings.TrimSpace(doc.Find("p").First().Text())
	if first == "" {
		first = content
	}
	return truncate(first, excerptMaxChars)
}

type fallbackResult struct {
	Title   string
	Content string
	Excerpt string
}

// readabilityFallback runs go-readability over the raw HTML when the
// cascades come up short.
func (e *Extractor) readabilityFallback(page pipeline.Page) (fallbackResult, bool) {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return fallbackResult{}, false
	}
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		e.logger.Debug("readability fallback failed", zap.String("url", page.URL), zap.Error(err))
		return fallbackResult{}, false
	}
	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return fallbackResult{}, false
	}
	return fallbackResult{
		Title:   strings.TrimSpace(article.Title),
		Content: content,
		Excerpt: truncate(strings.TrimSpace(article.Excerpt), excerptMaxChars),
	}, true
}

func firstMatchText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if strings.HasPrefix(sel, "meta") {
			if content, ok := node.Attr("content"); ok {
				if content = strings.TrimSpace(content); content != "" {
					return content
				}
			}
			continue
		}
		if sel == "time[datetime]" {
			if dt, ok := node.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
				return strings.TrimSpace(dt)
			}
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

func collectTexts(doc *goquery.Document, selectors []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return
			}
			if _, ok := seen[text]; ok {
				return
			}
			seen[text] = struct{}{}
			out = append(out, text)
		})
		if len(out) > 0 {
			return out
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
