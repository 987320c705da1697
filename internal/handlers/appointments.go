package handlers

import (
	"net/http"

	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/services"
)

// AppointmentHandler is the staff side of appointment requests.
type AppointmentHandler struct {
	svc *services.AppointmentService
}

func NewAppointmentHandler(svc *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

// List puts pending requests first; ?status= narrows.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	lf, page, limit := listFilter(r)
	rows, total, err := h.svc.List(r.Context(), lf.Status, lf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Paginated(w, rows, total, page, limit)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *AppointmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.AcceptInput
	if !decode(w, r, &in) {
		return
	}
	req, ev, err := h.svc.Accept(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": req, "event": ev})
}

func (h *AppointmentHandler) Refuse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Reponse string `json:"reponse"`
	}
	if !decode(w, r, &in) {
		return
	}
	req, err := h.svc.Refuse(r.Context(), adminActor(r), id, in.Reponse)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}
