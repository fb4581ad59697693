// Package metrics exposes Prometheus collectors for the pipeline service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineItemsTotal         *prometheus.CounterVec
	pipelineRunsTotal          *prometheus.CounterVec
	pipelineDiscoveriesTotal   *prometheus.CounterVec
	pipelineOpportunitiesTotal prometheus.Counter
	pipelineFetchSeconds       *prometheus.HistogramVec
	pipelineStructureSeconds   prometheus.Histogram
	pipelineActiveWorkers      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_items_total",
				Help: "Total raw items transitioned, labeled by resulting status.",
			},
			[]string{"status"},
		)

		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total campaign runs finalized, labeled by terminal status.",
			},
			[]string{"status"},
		)

		pipelineDiscoveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_discoveries_total",
				Help: "Total discovery attempts, labeled by site and winning method.",
			},
			[]string{"site", "method"},
		)

		pipelineOpportunitiesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_opportunities_created_total",
				Help: "Total opportunities created by conversion.",
			},
		)

		pipelineFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		pipelineStructureSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_structure_duration_seconds",
				Help:    "Histogram of AI structuring latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		pipelineActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_active_workers",
				Help: "Number of workers currently processing a source.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem increments the item counter for the given resulting status.
func ObserveItem(status string) {
	pipelineItemsTotal.WithLabelValues(status).Inc()
}

// ObserveRun increments the run counter for the given terminal status.
func ObserveRun(status string) {
	pipelineRunsTotal.WithLabelValues(status).Inc()
}

// ObserveDiscovery records one discovery attempt and its winning method.
func ObserveDiscovery(site, method string) {
	pipelineDiscoveriesTotal.WithLabelValues(SanitizeSite(site), method).Inc()
}

// ObserveOpportunityCreated increments the created-opportunity counter.
func ObserveOpportunityCreated() {
	pipelineOpportunitiesTotal.Inc()
}

// ObserveFetch records the duration of one page fetch.
func ObserveFetch(site string, duration time.Duration) {
	pipelineFetchSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveStructure records the duration of one AI structuring call.
func ObserveStructure(duration time.Duration) {
	pipelineStructureSeconds.Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	pipelineActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	pipelineActiveWorkers.Dec()
}
