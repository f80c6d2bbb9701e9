package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// StatsSource reports counters kept outside the session, such as dropped
// log lines and history events.
type StatsSource interface {
	Stats() map[string]uint64
}

// StatsFunc adapts a function to the StatsSource interface.
type StatsFunc func() map[string]uint64

// Stats calls f().
func (f StatsFunc) Stats() map[string]uint64 { return f() }

// SystemMetrics is the /metrics response.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     WSMetrics         `json:"websocket"`
	Session       SessionMetrics    `json:"session"`
	Devices       int               `json:"devices"`
	Counters      map[string]uint64 `json:"counters,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedFrames    uint64 `json:"dropped_frames"`
}

// SessionMetrics summarises the MQTT session.
type SessionMetrics struct {
	State         string           `json:"state"`
	Subscriptions int              `json:"subscriptions"`
	Counters      session.Counters `json:"counters"`
}

// handleMetrics returns runtime, session and component counters. When the
// loop does not answer the session part is left empty rather than failing
// the request.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
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
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedFrames:    s.hub.Dropped(),
		},
	}

	err := s.onLoop(r.Context(), func() {
		status := s.session.Snapshot()
		metrics.Session = SessionMetrics{
			State:         status.State,
			Subscriptions: len(status.Subscriptions),
			Counters:      status.Counters,
		}
		if s.devices != nil {
			metrics.Devices = len(s.devices.Snapshot())
		}
	})
	if err != nil {
		s.logger.Debug("metrics without session", "error", err)
		metrics.Session.State = "unknown"
	}

	if s.stats != nil {
		metrics.Counters = s.stats.Stats()
	}

	writeJSON(w, http.StatusOK, metrics)
}
