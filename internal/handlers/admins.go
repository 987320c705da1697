package handlers

import (
	"net/http"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/services"
)

// AdminHandler serves the staff management routes, mounted behind
// policy.RequireSuperAdmin. The service refuses every change to the super admin.
type AdminHandler struct {
	svc   *services.AdminService
	cache Invalidator
}

func NewAdminHandler(svc *services.AdminService, cache Invalidator) *AdminHandler {
	return &AdminHandler{svc: svc, cache: cache}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	lf, page, limit := listFilter(r)
	rows, total, err := h.svc.List(r.Context(), lf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Paginated(w, rows, total, page, limit)
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.AdminInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.svc.Create(r.Context(), adminActor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.AdminInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.svc.Update(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmAdmin, id)
	httpx.JSON(w, http.StatusOK, a)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), adminActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmAdmin, id)
	noContent(w)
}

func (h *AdminHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.ToggleStatus(r.Context(), adminActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmAdmin, id)
	httpx.JSON(w, http.StatusOK, a)
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pw, err := h.svc.ResetPassword(r.Context(), adminActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmAdmin, id)
	httpx.JSON(w, http.StatusOK, map[string]string{"temporary_password": pw})
}
