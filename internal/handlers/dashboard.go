package handlers

import (
	"net/http"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type DashboardHandler struct {
	svc      *services.DashboardService
	timeline *activity.Timeline
}

func NewDashboardHandler(svc *services.DashboardService, timeline *activity.Timeline) *DashboardHandler {
	return &DashboardHandler{svc: svc, timeline: timeline}
}

func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Build(r.Context(), auth.AdminID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

// Activity is the firm-wide feed: ?limit= and ?action= category or prefix.
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	_, limit, _ := httpx.Pagination(r, 20)
	items, err := h.timeline.Recent(r.Context(), limit, r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}
