package handler

import (
	"net/http"

	"github.com/smart-directory/referral-service/internal/events"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	events *events.Publisher
}

// NewHealthHandler creates a new health handler. The publisher may be nil
// when the event stream is not configured.
func NewHealthHandler(publisher *events.Publisher) *HealthHandler {
	return &HealthHandler{
		events: publisher,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	// An unconfigured event stream never blocks readiness; a configured but
	// disconnected one does.
	if h.events != nil && !h.events.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "event stream not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
