package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports liveness for the trading loop.
type HealthChecker struct {
	mu          sync.RWMutex
	lastTick    time.Time
	isConnected bool
	tripped     bool
}

type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastTick      time.Time `json:"last_tick"`
	IsConnected   bool      `json:"is_connected"`
	EmergencyStop bool      `json:"emergency_stop"`
	Uptime        string    `json:"uptime"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// MarkTick records a completed orchestrator tick.
func (h *HealthChecker) MarkTick() {
	h.mu.Lock()
	h.lastTick = time.Now()
	h.isConnected = true
	h.mu.Unlock()
}

// MarkDisconnected records a failed exchange read.
func (h *HealthChecker) MarkDisconnected() {
	h.mu.Lock()
	h.isConnected = false
	h.mu.Unlock()
}

// MarkTripped records an emergency stop trip.
func (h *HealthChecker) MarkTripped() {
	h.mu.Lock()
	h.tripped = true
	h.mu.Unlock()
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	switch {
	case h.tripped:
		status = "halted"
		w.WriteHeader(http.StatusServiceUnavailable)
	case !h.isConnected || time.Since(h.lastTick) > 10*time.Minute:
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	health := HealthStatus{
		Status:        status,
		Timestamp:     time.Now(),
		LastTick:      h.lastTick,
		IsConnected:   h.isConnected,
		EmergencyStop: h.tripped,
		Uptime:        time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
