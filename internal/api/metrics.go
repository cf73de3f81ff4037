package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/influxdb"
	"github.com/rf24mqtt/rf24mqtt/internal/process"
)

const bytesPerMB = 1 << 20

// SystemMetrics is the body of GET /api/v1/metrics.
type SystemMetrics struct {
	Timestamp     time.Time       `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Pipeline      PipelineLoad    `json:"pipeline"`
	FeedClients   int             `json:"feed_clients"`
	Radio         *process.Stats  `json:"radio,omitempty"`
	Telemetry     *influxdb.Stats `json:"telemetry,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	HeapObjects uint64  `json:"heap_objects"`
	NumGC       uint32  `json:"num_gc"`
}

// PipelineLoad is the gateway's buffered state: what is waiting in the
// broker inbox and how many topics the duplicate filter is holding.
type PipelineLoad struct {
	InboxLength   int   `json:"inbox_length"`
	FilterEntries int64 `json:"filter_entries"`
	Devices       int   `json:"devices"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	gw := s.gateway.Stats()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:  runtime.NumGoroutine(),
			HeapAllocMB: float64(mem.HeapAlloc) / bytesPerMB,
			HeapObjects: mem.HeapObjects,
			NumGC:       mem.NumGC,
		},
		Pipeline: PipelineLoad{
			InboxLength:   gw.InboxLength,
			FilterEntries: gw.FilterEntries,
			Devices:       gw.Devices,
		},
		FeedClients: s.hub.ClientCount(),
	}

	if s.radio != nil {
		stats := s.radio.Stats()
		metrics.Radio = &stats
	}

	if s.telemetry != nil {
		stats := s.telemetry.Stats()
		metrics.Telemetry = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
