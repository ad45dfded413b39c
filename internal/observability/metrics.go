package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BatchMetrics holds the Prometheus instruments recording a mining batch's
// progress: commits processed, cache effectiveness, and analyzer latency.
type BatchMetrics struct {
	CommitsTotal        *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	AnalyzerRequestsTotal *prometheus.CounterVec
	AnalyzerDuration     prometheus.Histogram
	CommitDuration       prometheus.Histogram
	WorktreesInUse       prometheus.Gauge

	registry *prometheus.Registry
}

// NewBatchMetrics creates a fresh registry and registers every instrument
// on it, so repeated mining runs in the same process never collide.
func NewBatchMetrics() *BatchMetrics {
	registry := prometheus.NewRegistry()

	bm := &BatchMetrics{
		registry: registry,
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdminer_commits_total",
			Help: "Commits processed, by outcome (ok, error).",
		}, []string{"outcome"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pmdminer_cache_hits_total",
			Help: "File hash cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pmdminer_cache_misses_total",
			Help: "File hash cache misses.",
		}),
		AnalyzerRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmdminer_analyzer_requests_total",
			Help: "Analyzer Client HTTP requests, by outcome.",
		}, []string{"outcome"}),
		AnalyzerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmdminer_analyzer_request_duration_seconds",
			Help:    "Analyzer Client request latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmdminer_commit_duration_seconds",
			Help:    "Wall time to fully process one commit.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		WorktreesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pmdminer_worktrees_in_use",
			Help: "Worktrees currently checked out by a scheduler worker.",
		}),
	}

	registry.MustRegister(
		bm.CommitsTotal,
		bm.CacheHitsTotal,
		bm.CacheMissesTotal,
		bm.AnalyzerRequestsTotal,
		bm.AnalyzerDuration,
		bm.CommitDuration,
		bm.WorktreesInUse,
	)

	return bm
}

// Handler returns the Prometheus scrape endpoint handler for this batch's registry.
func (bm *BatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(bm.registry, promhttp.HandlerOpts{})
}
