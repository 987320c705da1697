package handlers

import (
	"net/http"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type FavoriteHandler struct {
	svc *services.FavoriteService
}

func NewFavoriteHandler(svc *services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: svc}
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), auth.AdminID(r.Context()), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Toggle flips membership of {type, id} and returns the new state.
func (h *FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type string `json:"type"`
		ID   uint   `json:"id"`
	}
	if !decode(w, r, &in) {
		return
	}
	on, err := h.svc.Toggle(r.Context(), auth.AdminID(r.Context()), in.Type, in.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"is_favorite": on})
}
