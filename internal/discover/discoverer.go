// Package discover enumerates candidate post URLs for a source using a
// prioritized strategy cascade.
package discover

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// Strategy names accepted by Discover.
const (
	StrategyAuto    = "auto-detect"
	StrategySeed    = "seed-first"
	StrategyRSS     = "rss-first"
	StrategySitemap = "sitemap-first"
)

// Method names reported in discovery results and diagnostics.
const (
	MethodSeed    = "seed"
	MethodRSS     = "rss"
	MethodSitemap = "sitemap"
)

const sampleSize = 3

// Scanner enumerates candidate URLs for one discovery method.
type Scanner interface {
	Scan(ctx context.Context, seedURL string) ([]string, error)
}

type method struct {
	name    string
	scanner Scanner
}

// Discoverer runs the method cascade and owns dedupe and truncation.
type Discoverer struct {
	methods []method
	logger  *zap.Logger
}

// New wires the three discovery methods in cascade order.
func New(seed, rss, sitemap Scanner, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		methods: []method{
			{name: MethodSeed, scanner: seed},
			{name: MethodRSS, scanner: rss},
			{name: MethodSitemap, scanner: sitemap},
		},
		logger: logger,
	}
}

// Discover enumerates up to maxPosts candidate post URLs. With the
// auto-detect strategy, methods run in cascade order and the first one that
// reaches maxPosts wins; a forced strategy runs only its method. Diagnostics
// always carry an entry per method, zeroed for methods never attempted.
func (d *Discoverer) Discover(ctx context.Context, seedURL string, maxPosts int, strategy string) (pipeline.Discovery, error) {
	if maxPosts <= 0 {
		maxPosts = 10
	}
	order, err := d.order(strategy)
	if err != nil {
		return pipeline.Discovery{}, err
	}

	diagnostics := pipeline.MethodDiagnostics{}
	for _, m := range d.methods {
		diagnostics[m.name] = pipeline.MethodReport{}
	}

	var bestPosts []string
	var bestMethod string
	failures := 0

	for _, m := range order {
		candidates, scanErr := m.scanner.Scan(ctx, seedURL)
		if scanErr != nil {
			failures++
			diagnostics[m.name] = pipeline.MethodReport{Error: scanErr.Error()}
			d.logger.Debug("discovery method failed",
				zap.String("method", m.name),
				zap.String("url", seedURL),
				zap.Error(scanErr),
			)
			continue
		}

		posts := dedupeNormalized(candidates)
		diagnostics[m.name] = pipeline.MethodReport{Count: len(posts), Sample: sampleOf(posts)}

		if len(posts) >= maxPosts {
			return pipeline.Discovery{
				Posts:       posts[:maxPosts],
				MethodUsed:  m.name,
				Diagnostics: diagnostics,
			}, nil
		}
		if len(posts) > len(bestPosts) {
			bestPosts = posts
			bestMethod = m.name
		}
	}

	if failures == len(order) && len(bestPosts) == 0 {
		return pipeline.Discovery{Diagnostics: diagnostics},
			&pipeline.DiscoveryError{URL: seedURL, Err: fmt.Errorf("all %d discovery methods failed", len(order))}
	}

	// Partial success: fewer than maxPosts candidates is still a result.
	return pipeline.Discovery{
		Posts:       bestPosts,
		MethodUsed:  bestMethod,
		Diagnostics: diagnostics,
	}, nil
}

func (d *Discoverer) order(strategy string) ([]method, error) {
	switch strategy {
	case "", StrategyAuto:
		return d.methods, nil
	case StrategySeed:
		return d.methodsNamed(MethodSeed), nil
	case StrategyRSS:
		return d.methodsNamed(MethodRSS), nil
	case StrategySitemap:
		return d.methodsNamed(MethodSitemap), nil
	default:
		return nil, fmt.Errorf("unknown discovery strategy %q", strategy)
	}
}

func (d *Discoverer) methodsNamed(name string) []method {
	for _, m := range d.methods {
		if m.name == name {
			return []method{m}
		}
	}
	return nil
}

func dedupeNormalized(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		normalized, err := pipeline.NormalizeURL(c)
		if err != nil {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func sampleOf(posts []string) []string {
	if len(posts) <= sampleSize {
		return posts
	}
	return posts[:sampleSize]
}
