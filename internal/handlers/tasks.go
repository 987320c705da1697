package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type TaskHandler struct {
	svc *services.TaskService
}

func NewTaskHandler(svc *services.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// List serves /api/tasks and /api/dossiers/{id}/tasks. ?mine=1 keeps the
// tasks assigned to the current admin.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.TaskFilter{
		DossierID:    queryUint(r, "dossier_id"),
		AssignedToID: queryUint(r, "assigned_to_id"),
		Status:       r.URL.Query().Get("status"),
		Priority:     r.URL.Query().Get("priority"),
		Open:         queryBool(r, "open"),
	}
	if r.PathValue("id") != "" {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		f.DossierID = id
	}
	if queryBool(r, "mine") {
		if a := adminActor(r); a.ID != nil {
			f.AssignedToID = *a.ID
		}
	}
	tasks, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": tasks})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.TaskInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Create(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.TaskInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Update(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *TaskHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Reopen)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, activity.Actor, uint) (*models.Task, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := apply(r.Context(), adminActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
