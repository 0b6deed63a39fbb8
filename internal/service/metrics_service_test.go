package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesDomainCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/catalog", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveCatalogEvaluation("success", 5*time.Millisecond)
	metrics.IncCatalogStaleDrop()
	metrics.IncEnrollment("success")
	metrics.IncEnrollment("payment_required")
	metrics.SetLiveViews(3)
	metrics.ObserveJob("assets", JobAssetCleanup, "done")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
	assert.Equal(t, uint64(1), snapshot.CatalogEvaluations)
	assert.Equal(t, uint64(1), snapshot.CatalogStaleDrops)
	assert.Equal(t, uint64(1), snapshot.Enrollments)
	assert.Equal(t, 3, snapshot.LiveViews)
	assert.InDelta(t, 20.0, snapshot.AverageRequestDurationMs, 0.001)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{"catalog_evaluation_duration_seconds", "catalog_stale_results_dropped_total", "enrollment_attempts_total", "background_jobs_total"} {
		assert.True(t, strings.Contains(body, name), name)
	}
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.IncCatalogStaleDrop()
	metrics.SetLiveViews(1)
	assert.Zero(t, metrics.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
