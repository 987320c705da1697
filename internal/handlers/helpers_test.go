package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/db/dbtest"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/policy"
	"github.com/diewo77/portail-cabinet/internal/services"
)

const testPassword = "password123"

func setup(t *testing.T) (*gorm.DB, *activity.Logger) {
	t.Helper()
	db := dbtest.New(t)
	return db, activity.NewLogger(db, nil)
}

func hash(t *testing.T) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func seedAdmin(t *testing.T, db *gorm.DB, email string, role models.AdminRole) *models.Admin {
	t.Helper()
	a := &models.Admin{Name: email, Email: email, Password: hash(t), Role: role, IsActive: true}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedClient(t *testing.T, db *gorm.DB, nom, email string) *models.Client {
	t.Helper()
	c := &models.Client{Nom: nom, Email: email, Password: hash(t), IsActive: true}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedDossier(t *testing.T, db *gorm.DB, c *models.Client, ref string) *models.Dossier {
	t.Helper()
	d := &models.Dossier{Reference: ref, Intitule: "Litige " + ref, Status: models.DossierOuvert, ClientID: c.ID}
	require.NoError(t, db.Create(d).Error)
	return d
}

// asAdmin mimics auth.Middleware followed by policy.RequireAdmin.
func asAdmin(r *http.Request, a *models.Admin) *http.Request {
	ctx := auth.WithPrincipal(r.Context(), auth.Principal{Realm: auth.RealmAdmin, ID: a.ID, Stage: auth.StageFull})
	return r.WithContext(policy.WithAccount(ctx, &services.Account{Realm: auth.RealmAdmin, Admin: a}))
}

func asClient(r *http.Request, c *models.Client) *http.Request {
	ctx := auth.WithPrincipal(r.Context(), auth.Principal{Realm: auth.RealmClient, ID: c.ID, Stage: auth.StageFull})
	return r.WithContext(policy.WithAccount(ctx, &services.Account{Realm: auth.RealmClient, Client: c}))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, target, rd)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// serve routes r through a mux so that path values resolve.
func serve(pattern string, h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

type nopInvalidator struct{ calls []uint }

func (n *nopInvalidator) Invalidate(_ auth.Realm, id uint) { n.calls = append(n.calls, id) }
