package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/services"
	"github.com/diewo77/portail-cabinet/internal/syncer"
)

// FolderSyncer creates the OneDrive folders of one dossier. *syncer.DocumentSync implements it.
type FolderSyncer interface {
	SyncDossierFolders(ctx context.Context, dossierID uint) syncer.Result
}

type DossierHandler struct {
	svc      *services.DossierService
	timeline *activity.Timeline
	folders  FolderSyncer
}

// NewDossierHandler accepts a nil folders when OneDrive is not wired.
func NewDossierHandler(svc *services.DossierService, timeline *activity.Timeline, folders FolderSyncer) *DossierHandler {
	return &DossierHandler{svc: svc, timeline: timeline, folders: folders}
}

func (h *DossierHandler) List(w http.ResponseWriter, r *http.Request) {
	lf, page, limit := listFilter(r)
	rows, total, err := h.svc.List(r.Context(), services.DossierFilter{
		ListFilter: lf,
		ClientID:   queryUint(r, "client_id"),
		AdminID:    queryUint(r, "admin_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Paginated(w, rows, total, page, limit)
}

func (h *DossierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DossierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.DossierInput
	if !decode(w, r, &in) {
		return
	}
	d, err := h.svc.Create(r.Context(), adminActor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *DossierHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in services.DossierInput
	if !decode(w, r, &in) {
		return
	}
	d, err := h.svc.Update(r.Context(), adminActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DossierHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// ChangeStatus handles PATCH /api/dossiers/{id}/status.
func (h *DossierHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Status models.DossierStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	d, err := h.svc.ChangeStatus(r.Context(), adminActor(r), id, in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

// Timeline pages through the activity of one dossier, optionally narrowed by ?action=.
func (h *DossierHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	page, limit, offset := httpx.Pagination(r, 30)
	items, total, err := h.timeline.ForDossier(r.Context(), id, activity.Query{
		Limit:  limit,
		Offset: offset,
		Action: r.URL.Query().Get("action"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Paginated(w, items, total, page, limit)
}

// SyncOneDrive creates or repairs the OneDrive folders of a dossier.
func (h *DossierHandler) SyncOneDrive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if h.folders == nil {
		httpx.Error(w, r, http.StatusBadRequest, "integration_not_configured", nil)
		return
	}
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	res := h.folders.SyncDossierFolders(r.Context(), id)
	if !res.Success {
		httpx.Error(w, r, http.StatusBadGateway, "sync_failed", map[string]string{"reason": res.Error})
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
