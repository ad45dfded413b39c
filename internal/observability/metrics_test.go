package observability_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/pmdminer/internal/observability"
)

func TestBatchMetrics_ScrapeExposesCounters(t *testing.T) {
	bm := observability.NewBatchMetrics()
	bm.CommitsTotal.WithLabelValues("ok").Inc()
	bm.CacheHitsTotal.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	bm.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "pmdminer_commits_total")
	assert.Contains(t, rec.Body.String(), "pmdminer_cache_hits_total")
}

func TestNewBatchMetrics_IndependentRegistries(t *testing.T) {
	first := observability.NewBatchMetrics()
	second := observability.NewBatchMetrics()

	first.CommitsTotal.WithLabelValues("ok").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	second.Handler().ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), `pmdminer_commits_total{outcome="ok"} 1`)
}
