package handlers

import (
	"context"
	"net/http"
	"time"
)

// Engine is an external tool whose presence the health check reports.
type Engine interface {
	Name() string
	Available() bool
}

// versioner is implemented by engines that can report their version.
type versioner interface {
	Version(ctx context.Context) (string, error)
}

// Counter reports the number of tracked artifacts.
type Counter interface {
	Len() int
}

// HealthHandler reports engine availability and the active artifact count.
type HealthHandler struct {
	engines []Engine
	store   Counter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Counter, engines ...Engine) *HealthHandler {
	return &HealthHandler{engines: engines, store: store}
}

// HealthDTO is the body of GET /health.
type HealthDTO struct {
	Success     bool              `json:"success"`
	Status      string            `json:"status"`
	Engines     map[string]bool   `json:"engines"`
	Versions    map[string]string `json:"versions,omitempty"`
	ActiveFiles int               `json:"active_files"`
}

// Health handles GET /health. Missing engines degrade the service but do not
// fail the check, since fallback strategies may still succeed.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthDTO{
		Success:     true,
		Status:      "healthy",
		Engines:     make(map[string]bool, len(h.engines)),
		ActiveFiles: h.store.Len(),
	}
	for _, e := range h.engines {
		ok := e.Available()
		resp.Engines[e.Name()] = ok
		if !ok {
			resp.Status = "degraded"
			continue
		}
		if v, isVersioner := e.(versioner); isVersioner {
			if version, err := v.Version(ctx); err == nil && version != "" {
				if resp.Versions == nil {
					resp.Versions = map[string]string{}
				}
				resp.Versions[e.Name()] = version
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
