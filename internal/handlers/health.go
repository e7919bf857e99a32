package handlers

import (
	"net/http"

	"github.com/instrugate/api/internal/repositories"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	health repositories.HealthRepository
}

// NewHealthHandlers constructs the probe handlers. A nil repository makes the
// readiness probe report healthy, which suits in-memory test wiring.
func NewHealthHandlers(health repositories.HealthRepository) *HealthHandlers {
	return &HealthHandlers{health: health}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the datastore is reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}
