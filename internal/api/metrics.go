package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	Uploads       UploadMetrics      `json:"uploads"`
	MQTT          IntegrationMetrics `json:"mqtt"`
	InfluxDB      IntegrationMetrics `json:"influxdb"`
	LiveClients   int                `json:"live_clients"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// UploadMetrics counts POST /upload_data outcomes since start.
type UploadMetrics struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

// IntegrationMetrics describes an optional integration.
type IntegrationMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// handleMetrics returns runtime statistics and upload counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Uploads: UploadMetrics{
			Accepted: s.uploadsAccepted.Load(),
			Rejected: s.uploadsRejected.Load(),
			Failed:   s.uploadsFailed.Load(),
		},
		MQTT:     integrationMetrics(ctx, s.mqtt),
		InfluxDB: integrationMetrics(ctx, s.influxdb),
	}
	if s.live != nil {
		metrics.LiveClients = s.live.ClientCount()
	}

	writeJSON(w, http.StatusOK, metrics)
}

func integrationMetrics(ctx context.Context, hc HealthChecker) IntegrationMetrics {
	if hc == nil {
		return IntegrationMetrics{}
	}
	return IntegrationMetrics{Enabled: true, Connected: hc.HealthCheck(ctx) == nil}
}
