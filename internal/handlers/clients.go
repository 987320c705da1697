package handlers

import (
	"net/http"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type ClientHandler struct {
	svc   *services.ClientService
	cache Invalidator
}

func NewClientHandler(svc *services.ClientService, cache Invalidator) *ClientHandler {
	return &ClientHandler{svc: svc, cache: cache}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	lf, page, limit := listFilter(r)
	rows, total, err := h.svc.List(r.Context(), services.ClientFilter{
		ListFilter:    lf,
		ResponsableID: queryUint(r, "responsable_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Paginated(w, rows, total, page, limit)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// Create returns the generated password once when none was supplied.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ClientInput
	if !decode(w, r, &in) {
		return
	}
	c, temp, err := h.svc.Create(r.Context(), adminActor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := map[string]any{"client": c}
	if temp != "" {
		out["temporary_password"] = temp
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.ClientInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.Update(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmClient, id)
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), adminActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmClient, id)
	noContent(w)
}

func (h *ClientHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.ToggleStatus(r.Context(), adminActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmClient, id)
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ClientHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pw, err := h.svc.ResetPassword(r.Context(), adminActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmClient, id)
	httpx.JSON(w, http.StatusOK, map[string]string{"temporary_password": pw})
}
