package api

import (
	"net/http"

	"github.com/ashureev/recipe-road/internal/config"
	"github.com/ashureev/recipe-road/internal/session"
	"github.com/go-chi/chi/v5"
)

// Version is reported by the root endpoint. Override at build time with
// -ldflags "-X github.com/ashureev/recipe-road/internal/api.Version=...".
var Version = "0.1.0"

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	sessions *session.Registry
	cfg      *config.Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(sessions *session.Registry, cfg *config.Config) *HealthHandler {
	return &HealthHandler{sessions: sessions, cfg: cfg}
}

// Health returns the health status of the API and which model credentials are present.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]interface{}{
		"api":      "ok",
		"recipe":   credentialStatus(h.cfg.Recipe.APIKey),
		"realtime": credentialStatus(h.cfg.Realtime.APIKey),
		"sessions": h.sessions.Len(),
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"api":    "Recipe Road",
		"checks": checks,
	})
}

// Root describes the API.
func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"message": "Recipe Road API",
		"version": Version,
	})
}

// RegisterHealth registers the health check and root routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
}

func credentialStatus(key string) string {
	if key == "" {
		return "not_configured"
	}
	return "configured"
}
