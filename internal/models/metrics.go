package models

import "time"

// SystemMetrics is a lightweight snapshot of process metrics for the admin API.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CatalogEvaluations       uint64    `json:"catalog_evaluations"`
	CatalogStaleDrops        uint64    `json:"catalog_stale_drops"`
	Enrollments              uint64    `json:"enrollments"`
	LiveViews                int       `json:"live_views"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
