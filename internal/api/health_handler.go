package api

import (
	"net/http"
	"time"

	"github.com/sdnpulse/sdnpulse/internal/snapshot"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store *snapshot.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *snapshot.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Health handles GET /health (liveness probe)
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready handles GET /ready. The service is ready once the first
// collection cycle has been published.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.store.Current()
	if !ok {
		sendJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status:    "not_ready",
			Timestamp: time.Now(),
			Checks:    map[string]string{"snapshot": "pending"},
			Error:     "no collection cycle has completed yet",
		})
		return
	}

	sendJSON(w, http.StatusOK, ReadinessResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks: map[string]string{
			"snapshot":     "ok",
			"collected_at": snap.CollectedAt.Format(time.RFC3339),
		},
	})
}
