package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/gcalendar"
	"github.com/diewo77/portail-cabinet/internal/health"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/syncer"
)

// FullSyncer runs a complete synchronisation pass and records its SyncLog.
type FullSyncer interface {
	FullSync(ctx context.Context, mode string) (*models.SyncLog, error)
}

// CalendarLister lists the calendars of the connected Google account.
type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]gcalendar.Calendar, error)
}

// Integration is one connectable service.
type Integration struct {
	OAuth *oauth.Service
	Sync  FullSyncer
}

type IntegrationHandler struct {
	integrations map[string]Integration
	calendars    CalendarLister
	states       *oauth.StateSigner
	history      *syncer.History
	health       *health.Service
	activity     *activity.Logger
	appURL       string
	log          *zap.Logger
}

type IntegrationDeps struct {
	OneDrive  Integration
	Google    Integration
	Calendars CalendarLister
	States    *oauth.StateSigner
	History   *syncer.History
	Health    *health.Service
	Activity  *activity.Logger
	// AppURL is the front-end base the OAuth callbacks redirect to.
	AppURL string
	Log    *zap.Logger
}

func NewIntegrationHandler(d IntegrationDeps) *IntegrationHandler {
	return &IntegrationHandler{
		integrations: map[string]Integration{
			models.ServiceOneDrive:       d.OneDrive,
			models.ServiceGoogleCalendar: d.Google,
		},
		calendars: d.Calendars,
		states:    d.States,
		history:   d.History,
		health:    d.Health,
		activity:  d.Activity,
		appURL:    d.AppURL,
		log:       logging.OrNop(d.Log),
	}
}

func (h *IntegrationHandler) lookup(w http.ResponseWriter, r *http.Request) (string, Integration, bool) {
	key := r.PathValue("service")
	if key == "google" {
		key = models.ServiceGoogleCalendar
	}
	in, ok := h.integrations[key]
	if !ok || in.OAuth == nil {
		httpx.Error(w, r, http.StatusNotFound, "not_found", nil)
		return "", Integration{}, false
	}
	return key, in, true
}

func (h *IntegrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	_, in, ok := h.lookup(w, r)
	if !ok {
		return
	}
	st, err := in.OAuth.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

// Connect returns the provider consent URL carrying a signed state.
func (h *IntegrationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	key, in, ok := h.lookup(w, r)
	if !ok {
		return
	}
	state, err := h.states.Issue(key, auth.AdminID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := in.OAuth.AuthorizationURL(state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"url": u})
}

// OneDriveCallback handles GET /api/onedrive/callback.
func (h *IntegrationHandler) OneDriveCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, models.ServiceOneDrive, "onedrive")
}

// GoogleCallback handles GET /api/google/callback.
func (h *IntegrationHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, models.ServiceGoogleCalendar, "google")
}

func (h *IntegrationHandler) callback(w http.ResponseWriter, r *http.Request, key, param string) {
	fail := func(msg string) {
		h.log.Warn("oauth callback failed", zap.String("service", key), zap.String("reason", msg))
		h.redirect(w, r, url.Values{param + "_error": {msg}})
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = e
		}
		fail(msg)
		return
	}
	in := h.integrations[key]
	if in.OAuth == nil || !in.OAuth.IsConfigured() {
		fail(oauth.ErrNotConfigured.Error())
		return
	}
	adminID, err := h.states.Verify(q.Get("state"), key)
	if err != nil {
		fail("invalid state")
		return
	}
	code := q.Get("code")
	if code == "" {
		fail("missing authorization code")
		return
	}
	tok, err := in.OAuth.CompleteOAuthFlow(r.Context(), code, adminID)
	if err != nil {
		fail(err.Error())
		return
	}
	h.activity.IntegrationConnected(r.Context(), activity.Actor{ID: &adminID, Type: activity.ActorAdmin}, key, tok.AccountEmail)
	h.health.Invalidate()
	h.redirect(w, r, url.Values{param + "_success": {"true"}})
}

func (h *IntegrationHandler) redirect(w http.ResponseWriter, r *http.Request, q url.Values) {
	http.Redirect(w, r, h.appURL+"/admin/parametres?"+q.Encode(), http.StatusFound)
}

func (h *IntegrationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	key, in, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := in.OAuth.Disconnect(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	h.activity.IntegrationDisconnected(r.Context(), adminActor(r), key)
	h.health.Invalidate()
	noContent(w)
}

// Sync runs a manual full synchronisation and returns its log.
func (h *IntegrationHandler) Sync(w http.ResponseWriter, r *http.Request) {
	_, in, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if in.Sync == nil || !in.OAuth.IsConfigured() {
		writeError(w, r, oauth.ErrNotConfigured)
		return
	}
	rec, err := in.OAuth.Record(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, oauth.ErrNotConnected)
		return
	}
	l, err := in.Sync.FullSync(r.Context(), models.SyncModeManual)
	if err != nil {
		if errors.Is(err, oauth.ErrNotConnected) {
			writeError(w, r, err)
			return
		}
		logging.FromContext(r.Context(), h.log).Error("full sync failed", zap.Error(err))
		httpx.Error(w, r, http.StatusBadGateway, "sync_failed", nil)
		return
	}
	h.health.Invalidate()
	httpx.JSON(w, http.StatusOK, map[string]any{"log": l, "details": syncer.DetailLines(l)})
}

// Settings updates the selected calendar and/or the sync mode.
func (h *IntegrationHandler) Settings(w http.ResponseWriter, r *http.Request) {
	_, in, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		SelectedResourceID *string `json:"selected_resource_id"`
		SyncMode           *string `json:"sync_mode"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.SyncMode != nil && *body.SyncMode != models.SyncModeAuto && *body.SyncMode != models.SyncModeManual {
		httpx.Error(w, r, http.StatusBadRequest, "validation_failed", map[string]string{"sync_mode": "invalid_value"})
		return
	}
	if err := in.OAuth.UpdateSettings(r.Context(), body.SelectedResourceID, body.SyncMode); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := in.OAuth.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

// Calendars lists the writable Google calendars for the settings picker.
func (h *IntegrationHandler) Calendars(w http.ResponseWriter, r *http.Request) {
	if h.calendars == nil {
		writeError(w, r, oauth.ErrNotConfigured)
		return
	}
	cals, err := h.calendars.ListCalendars(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": cals})
}

func (h *IntegrationHandler) SyncLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.history.List(r.Context(), r.URL.Query().Get("service"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": logs})
}

// Health returns the cached integration report; ?force=1 refreshes it.
func (h *IntegrationHandler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.health.Report(r.Context(), queryBool(r, "force")))
}
