package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sdnpulse/sdnpulse/internal/snapshot"
	"github.com/sdnpulse/sdnpulse/internal/source"
)

// SnapshotHandler serves the latest snapshot and the configured sources.
type SnapshotHandler struct {
	store    *snapshot.Store
	sources  []source.Descriptor
	registry *source.Registry
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(store *snapshot.Store, sources []source.Descriptor, registry *source.Registry) *SnapshotHandler {
	return &SnapshotHandler{
		store:    store,
		sources:  sources,
		registry: registry,
	}
}

// SourceInfo describes a configured source and its latest result.
type SourceInfo struct {
	ID             string                 `json:"id"`
	Kind           string                 `json:"kind"`
	Class          source.Class           `json:"class"`
	TimeoutMS      int64                  `json:"timeout_ms"`
	MaxAttempts    int                    `json:"max_attempts"`
	RetryBackoffMS int64                  `json:"retry_backoff_ms"`
	WorstCaseMS    int64                  `json:"worst_case_ms"`
	Latest         *snapshot.SourceResult `json:"latest"`
}

// Get handles GET /api/v1/snapshot
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.store.Current()
	if !ok {
		sendError(w, r, http.StatusServiceUnavailable, "NOT_READY", "No snapshot has been collected yet", nil)
		return
	}
	sendJSON(w, http.StatusOK, snap)
}

// ListSources handles GET /api/v1/sources
func (h *SnapshotHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.store.Current()

	infos := make([]SourceInfo, 0, len(h.sources))
	for _, d := range h.sources {
		infos = append(infos, sourceInfo(d, snap))
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"sources": infos,
		"total":   len(infos),
	})
}

// GetSource handles GET /api/v1/sources/{id}
func (h *SnapshotHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, d := range h.sources {
		if d.ID == id {
			snap, _ := h.store.Current()
			sendJSON(w, http.StatusOK, sourceInfo(d, snap))
			return
		}
	}
	sendError(w, r, http.StatusNotFound, "NOT_FOUND", "Source not found", map[string]string{"id": id})
}

// ListKinds handles GET /api/v1/kinds
func (h *SnapshotHandler) ListKinds(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"kinds": h.registry.ListKinds(),
	})
}

func sourceInfo(d source.Descriptor, snap snapshot.Snapshot) SourceInfo {
	info := SourceInfo{
		ID:             d.ID,
		Kind:           d.Kind,
		Class:          d.Class,
		TimeoutMS:      d.Timeout.Milliseconds(),
		MaxAttempts:    d.MaxAttempts,
		RetryBackoffMS: d.RetryBackoff.Milliseconds(),
		WorstCaseMS:    d.WorstCase().Milliseconds(),
	}
	if r, ok := snap.Source(d.ID); ok {
		info.Latest = &r
	}
	return info
}
