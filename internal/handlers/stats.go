package handlers

import (
	"net/http"

	"github.com/Veraticus/tgpulse/internal/api/middleware"
)

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.queries.Stats(r.Context(), middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.Fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, st)
}

// Activities handles GET /api/activities.
func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.queries.Activities(middleware.TokenFromContext(r.Context())))
}

// ActivityChart handles GET /api/activity-chart.
func (h *Handler) ActivityChart(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.queries.Chart(middleware.TokenFromContext(r.Context())))
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.queries.Status(middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.Fail(w, err)
		return
	}
	h.JSON(w, http.StatusOK, st)
}
