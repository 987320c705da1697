package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/gate"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/policy"
	"github.com/diewo77/portail-cabinet/internal/services"
)

// Authorizer checks the request principal against the gate. *policy.Guard implements it.
type Authorizer interface {
	Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error
}

// PortalServices groups what the client portal reads and writes.
type PortalServices struct {
	Dossiers     *services.DossierService
	Documents    *services.DocumentService
	Events       *services.EventService
	Appointments *services.AppointmentService
	Clients      *services.ClientService
}

// PortalHandler serves /api/client/*, mounted behind policy.RequireClient.
// Resources of other clients answer 404, never 403.
type PortalHandler struct {
	svc      PortalServices
	gate     Authorizer
	cache    Invalidator
	maxBytes int64
}

func NewPortalHandler(svc PortalServices, gate Authorizer, cache Invalidator, maxBytes int64) *PortalHandler {
	return &PortalHandler{svc: svc, gate: gate, cache: cache, maxBytes: maxBytes}
}

func (h *PortalHandler) dossier(r *http.Request, c *models.Client) (*models.Dossier, error) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		return nil, services.ErrNotFound
	}
	d, err := h.svc.Dossiers.GetForClient(r.Context(), c.ID, id)
	if err != nil {
		return nil, err
	}
	if err := h.gate.Authorize(r.Context(), gate.ActionView, policy.ResourceDossier, d); err != nil {
		return nil, services.ErrNotFound
	}
	return d, nil
}

func (h *PortalHandler) Dossiers(w http.ResponseWriter, r *http.Request) {
	c := policy.CurrentClient(r.Context())
	lf, page, limit := listFilter(r)
	rows, total, err := h.svc.Dossiers.List(r.Context(), services.DossierFilter{ListFilter: lf, ClientID: c.ID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Paginated(w, rows, total, page, limit)
}

func (h *PortalHandler) Dossier(w http.ResponseWriter, r *http.Request) {
	d, err := h.dossier(r, policy.CurrentClient(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *PortalHandler) Documents(w http.ResponseWriter, r *http.Request) {
	c := policy.CurrentClient(r.Context())
	d, err := h.dossier(r, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	docs, err := h.svc.Documents.ListForClient(r.Context(), c, d.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": docs})
}

// Upload stores a client document in the dossier's "client" folder.
func (h *PortalHandler) Upload(w http.ResponseWriter, r *http.Request) {
	c := policy.CurrentClient(r.Context())
	d, err := h.dossier(r, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.gate.Authorize(r.Context(), gate.ActionUpload, policy.ResourceDocument, d); err != nil {
		writeError(w, r, services.ErrUploadNotAllowed)
		return
	}
	up, ok := readUpload(w, r, h.maxBytes)
	if !ok {
		return
	}
	up.Description = r.FormValue("description")
	doc, err := h.svc.Documents.UploadForClient(r.Context(), c, d.ID, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *PortalHandler) Download(w http.ResponseWriter, r *http.Request) {
	c := policy.CurrentClient(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.svc.Documents.GetForClient(r.Context(), c, id)
	if err == nil {
		if h.gate.Authorize(r.Context(), gate.ActionDownload, policy.ResourceDocument, doc) != nil {
			err = services.ErrNotFound
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	serveDocument(w, r, h.svc.Documents, doc)
}

// Events lists the visible entries of the client's dossiers.
func (h *PortalHandler) Events(w http.ResponseWriter, r *http.Request) {
	f, ok := eventFilter(w, r)
	if !ok {
		return
	}
	f.ClientID = policy.CurrentClient(r.Context()).ID
	events, err := h.svc.Events.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": events})
}

func (h *PortalHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Appointments.ListForClient(r.Context(), policy.CurrentClient(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *PortalHandler) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Authorize(r.Context(), gate.ActionRequest, policy.ResourceAppointment, nil); err != nil {
		writeError(w, r, err)
		return
	}
	var in services.AppointmentInput
	if !decode(w, r, &in) {
		return
	}
	req, err := h.svc.Appointments.Create(r.Context(), policy.CurrentClient(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *PortalHandler) Profile(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, policy.CurrentClient(r.Context()))
}

func (h *PortalHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	c := policy.CurrentClient(r.Context())
	var in services.ProfileInput
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.svc.Clients.UpdateProfile(r.Context(), c.ID, in)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			err = services.ErrForbidden
		}
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(auth.RealmClient, c.ID)
	httpx.JSON(w, http.StatusOK, updated)
}
