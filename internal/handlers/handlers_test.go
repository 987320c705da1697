package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/i18n"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/policy"
	"github.com/diewo77/portail-cabinet/internal/services"
	"github.com/diewo77/portail-cabinet/internal/storage"
	"github.com/diewo77/portail-cabinet/internal/syncer/syncertest"
)

func TestDossierCreateAndValidation(t *testing.T) {
	db, act := setup(t)
	admin := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	c := seedClient(t, db, "Martin", "martin@client.fr")
	h := NewDossierHandler(services.NewDossierService(db, act, &syncertest.Recorder{}, nil, nil), activity.NewTimeline(db), nil)

	w := serve("POST /api/dossiers", h.Create, asAdmin(jsonRequest(t, http.MethodPost, "/api/dossiers", map[string]any{
		"intitule":  "Succession Martin",
		"client_id": c.ID,
	}), admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d models.Dossier
	decodeBody(t, w, &d)
	assert.Regexp(t, `^\d{4}-001-MAR$`, d.Reference)

	w = serve("POST /api/dossiers", h.Create, asAdmin(jsonRequest(t, http.MethodPost, "/api/dossiers", map[string]any{}), admin))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var e errorBody
	decodeBody(t, w, &e)
	assert.Equal(t, "validation_failed", e.Error)
	assert.Equal(t, "required", e.Details["intitule"])
	assert.Equal(t, "required", e.Details["client_id"])

	w = serve("GET /api/dossiers/{id}", h.Get, asAdmin(httptest.NewRequest(http.MethodGet, "/api/dossiers/999", nil), admin))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve("GET /api/dossiers/{id}", h.Get, asAdmin(httptest.NewRequest(http.MethodGet, "/api/dossiers/abc", nil), admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve("GET /api/dossiers/{id}/timeline", h.Timeline, asAdmin(httptest.NewRequest(http.MethodGet, "/api/dossiers/"+itoa(d.ID)+"/timeline", nil), admin))
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []activity.Item `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	decodeBody(t, w, &page)
	assert.EqualValues(t, 1, page.Meta.Total)
}

func TestSuperAdminProtectedAnswers403(t *testing.T) {
	db, act := setup(t)
	root := seedAdmin(t, db, "root@cabinet.fr", models.RoleSuperAdmin)
	cache := &nopInvalidator{}
	h := NewAdminHandler(services.NewAdminService(db, act), cache)

	r := jsonRequest(t, http.MethodPut, "/api/admins/1", map[string]any{"name": "Pirate", "email": "pirate@cabinet.fr"})
	r = r.WithContext(i18n.WithLang(r.Context(), "en"))
	w := serve("PUT /api/admins/{id}", h.Update, asAdmin(r, root))
	require.Equal(t, http.StatusForbidden, w.Code)
	var e errorBody
	decodeBody(t, w, &e)
	assert.Equal(t, "super_admin_protected", e.Error)
	assert.Equal(t, "The super administrator cannot be modified", e.Message)

	w = serve("POST /api/admins/{id}/toggle-status", h.ToggleStatus, asAdmin(httptest.NewRequest(http.MethodPost, "/api/admins/1/toggle-status", nil), root))
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = serve("DELETE /api/admins/{id}", h.Delete, asAdmin(httptest.NewRequest(http.MethodDelete, "/api/admins/1", nil), root))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, cache.calls)

	var stored models.Admin
	require.NoError(t, db.First(&stored, root.ID).Error)
	assert.Equal(t, "root@cabinet.fr", stored.Name)
	assert.True(t, stored.IsActive)
}

func TestClientResetPasswordInvalidatesSession(t *testing.T) {
	db, act := setup(t)
	admin := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	cache := &nopInvalidator{}
	h := NewClientHandler(services.NewClientService(db, act), cache)

	w := serve("POST /api/clients", h.Create, asAdmin(jsonRequest(t, http.MethodPost, "/api/clients", map[string]any{
		"nom": "Durand", "email": "durand@client.fr",
	}), admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Client            models.Client `json:"client"`
		TemporaryPassword string        `json:"temporary_password"`
	}
	decodeBody(t, w, &created)
	assert.NotEmpty(t, created.TemporaryPassword)

	w = serve("POST /api/clients", h.Create, asAdmin(jsonRequest(t, http.MethodPost, "/api/clients", map[string]any{
		"nom": "Autre", "email": "DURAND@client.fr",
	}), admin))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve("POST /api/clients/{id}/reset-password", h.ResetPassword,
		asAdmin(httptest.NewRequest(http.MethodPost, "/api/clients/"+itoa(created.Client.ID)+"/reset-password", nil), admin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uint{created.Client.ID}, cache.calls)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	db, _ := setup(t)
	seedClient(t, db, "Martin", "martin@client.fr")
	h := NewAuthHandler(services.NewAuthService(db), &nopInvalidator{})

	w := httptest.NewRecorder()
	h.ClientLogin(w, jsonRequest(t, http.MethodPost, "/api/client/login", credentials{Email: "martin@client.fr", Password: testPassword}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	p, ok := auth.ParseSession(r)
	require.True(t, ok)
	assert.True(t, p.IsClient())

	w = httptest.NewRecorder()
	h.AdminLogin(w, jsonRequest(t, http.MethodPost, "/api/admin/login", credentials{Email: "martin@client.fr", Password: testPassword}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func portalFixture(t *testing.T) (*PortalHandler, *models.Client, *models.Dossier, *models.Dossier) {
	t.Helper()
	db, act := setup(t)
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	mine := seedClient(t, db, "Martin", "martin@client.fr")
	other := seedClient(t, db, "Durand", "durand@client.fr")
	guard := policy.NewGuard(services.NewAuthService(db), time.Minute)
	events := services.NewEventService(db, act, nil)
	h := NewPortalHandler(PortalServices{
		Dossiers:     services.NewDossierService(db, act, nil, store, nil),
		Documents:    services.NewDocumentService(db, store, nil, act, nil, 0, nil),
		Events:       events,
		Appointments: services.NewAppointmentService(db, events, act),
		Clients:      services.NewClientService(db, act),
	}, guard, guard, 1<<20)
	return h, mine, seedDossier(t, db, mine, "2025-001-MAR"), seedDossier(t, db, other, "2025-002-DUR")
}

func TestPortalHidesForeignDossier(t *testing.T) {
	h, c, mine, theirs := portalFixture(t)

	w := serve("GET /api/client/dossiers/{id}", h.Dossier, asClient(httptest.NewRequest(http.MethodGet, "/api/client/dossiers/"+itoa(mine.ID), nil), c))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve("GET /api/client/dossiers/{id}", h.Dossier, asClient(httptest.NewRequest(http.MethodGet, "/api/client/dossiers/"+itoa(theirs.ID), nil), c))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve("GET /api/client/dossiers", h.Dossiers, asClient(httptest.NewRequest(http.MethodGet, "/api/client/dossiers", nil), c))
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []models.Dossier `json:"data"`
	}
	decodeBody(t, w, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, mine.ID, page.Data[0].ID)
}

func multipartUpload(t *testing.T, target, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestPortalUploadRequiresPermission(t *testing.T) {
	h, c, mine, _ := portalFixture(t)
	target := "/api/client/dossiers/" + itoa(mine.ID) + "/documents"

	w := serve("POST /api/client/dossiers/{id}/documents", h.Upload, asClient(multipartUpload(t, target, "piece.pdf", []byte("%PDF")), c))
	require.Equal(t, http.StatusForbidden, w.Code)
	var e errorBody
	decodeBody(t, w, &e)
	assert.Equal(t, "upload_not_allowed", e.Error)

	_, err := h.svc.Clients.Update(t.Context(), activity.System(), c.ID, services.ClientInput{
		Nom: c.Nom, Email: c.Email, CanUpload: boolPtr(true),
	})
	require.NoError(t, err)
	h.cache.Invalidate(auth.RealmClient, c.ID)
	c.CanUpload = true

	w = serve("POST /api/client/dossiers/{id}/documents", h.Upload, asClient(multipartUpload(t, target, "piece.pdf", []byte("%PDF")), c))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc models.Document
	decodeBody(t, w, &doc)
	assert.Equal(t, models.LocationClient, doc.Location)

	w = serve("GET /api/client/documents/{id}/download", h.Download,
		asClient(httptest.NewRequest(http.MethodGet, "/api/client/documents/"+itoa(doc.ID)+"/download", nil), c))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF", w.Body.String())
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func boolPtr(b bool) *bool { return &b }
