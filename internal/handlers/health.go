package handlers

import (
	"net/http"
)

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status         string `json:"status"`
	APIConfigured  bool   `json:"api_configured"`
	RelayEnabled   bool   `json:"relay_enabled"`
	ActiveSessions int    `json:"active_sessions"`
	PendingAuths   int    `json:"pending_auths"`
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Status:  "ok",
		Message: "Telegram Activity Monitor API",
		Version: Version,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.JSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		APIConfigured:  h.config.APIConfigured,
		RelayEnabled:   h.config.RelayEnabled,
		ActiveSessions: h.counter.Len(),
		PendingAuths:   h.counter.PendingLen(),
	})
}
