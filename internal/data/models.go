package data

import (
	"context"
	"time"
)

// HealthCheckResponse represents the health check response structure.
// Provides system status, version information, and storage connectivity details.
type HealthCheckResponse struct {
	Status     string           `json:"status"`
	SystemInfo SystemInfo       `json:"system_info"`
	Store      *StoreHealthInfo `json:"store,omitempty"`
}

// SystemInfo contains basic application information for health checks.
type SystemInfo struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Timestamp   string `json:"timestamp"`
}

// StoreHealthInfo reports repository connectivity and backend-specific details.
type StoreHealthInfo struct {
	Status         string                 `json:"status"`
	ResponseTimeMs int64                  `json:"response_time_ms"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// Healthy reports whether the store answered its probe.
func (s *StoreHealthInfo) Healthy() bool {
	return s != nil && s.Status == "connected"
}

// ProbeStore runs repo.Health and times it.
func ProbeStore(ctx context.Context, repo Repository) *StoreHealthInfo {
	start := time.Now()
	details, err := repo.Health(ctx)
	info := &StoreHealthInfo{
		Status:         "connected",
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Details:        details,
	}
	if err != nil {
		info.Status = "disconnected"
	}
	return info
}
