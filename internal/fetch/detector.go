package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// HeuristicDetector flags pages that look like empty JavaScript shells and
// should be retried through the renderer.
type HeuristicDetector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// DefaultShellSelectors are DOM nodes whose absence suggests the server sent
// an app shell rather than rendered content.
var DefaultShellSelectors = []string{"article", "main", "h1"}

// DefaultShellKeywords are markers common to client-rendered app shells.
var DefaultShellKeywords = []string{
	"enable javascript",
	"id=\"__next\"",
	"id=\"root\"></div>",
	"ng-version",
}

// NewHeuristicDetector constructs a detector with the given thresholds. Empty
// selector and keyword entries are discarded.
func NewHeuristicDetector(minBytes int, selectors, keywords []string) *HeuristicDetector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &HeuristicDetector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowered,
	}
}

// NeedsJS inspects the page for signals that indicate JS rendering is required.
func (d *HeuristicDetector) NeedsJS(page pipeline.Page) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(page.Body):
		return true
	case d.containsKeywords(page.Body):
		return true
	default:
		return d.missingSelectors(page.Body)
	}
}

func (d *HeuristicDetector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *HeuristicDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *HeuristicDetector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	return true
}
