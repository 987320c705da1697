package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type EventHandler struct {
	svc *services.EventService
}

func NewEventHandler(svc *services.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// queryTime accepts RFC 3339 timestamps and plain dates.
func queryTime(r *http.Request, name string) (time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	return t, err == nil
}

func eventFilter(w http.ResponseWriter, r *http.Request) (services.EventFilter, bool) {
	from, ok1 := queryTime(r, "from")
	to, ok2 := queryTime(r, "to")
	if !ok1 || !ok2 {
		httpx.Error(w, r, http.StatusBadRequest, "validation_failed", map[string]string{"from": "invalid_value", "to": "invalid_value"})
		return services.EventFilter{}, false
	}
	return services.EventFilter{
		From:      from,
		To:        to,
		DossierID: queryUint(r, "dossier_id"),
		Type:      r.URL.Query().Get("type"),
	}, true
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := eventFilter(w, r)
	if !ok {
		return
	}
	events, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": events})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ev, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ev)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.EventInput
	if !decode(w, r, &in) {
		return
	}
	ev, err := h.svc.Create(r.Context(), adminActor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ev)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.EventInput
	if !decode(w, r, &in) {
		return
	}
	ev, err := h.svc.Update(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ev)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), adminActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	noContent(w)
}
