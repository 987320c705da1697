package policy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/gate"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/policy"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type fakeAccounts struct {
	admins  map[uint]*models.Admin
	clients map[uint]*models.Client
	calls   int
}

func (f *fakeAccounts) Me(_ context.Context, realm auth.Realm, id uint) (*services.Account, error) {
	f.calls++
	if realm == auth.RealmAdmin {
		if a, ok := f.admins[id]; ok {
			cp := *a
			return &services.Account{Realm: realm, Admin: &cp}, nil
		}
		return nil, services.ErrNotFound
	}
	if c, ok := f.clients[id]; ok {
		cp := *c
		return &services.Account{Realm: realm, Client: &cp}, nil
	}
	return nil, services.ErrNotFound
}

func newFixture() (*policy.Guard, *fakeAccounts) {
	f := &fakeAccounts{
		admins: map[uint]*models.Admin{
			1: {ID: 1, Role: models.RoleSuperAdmin, IsActive: true},
			2: {ID: 2, Role: models.RoleAdmin, IsActive: true},
		},
		clients: map[uint]*models.Client{
			10: {ID: 10, IsActive: true},
			11: {ID: 11, IsActive: true, CanUpload: true},
		},
	}
	return policy.NewGuard(f, time.Minute), f
}

func ctxFor(realm auth.Realm, id uint) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{Realm: realm, ID: id, Stage: auth.StageFull})
}

func serve(mw func(http.Handler) http.Handler, ctx context.Context) int {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if policy.CurrentAdmin(r.Context()) == nil && policy.CurrentClient(r.Context()) == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	return rec.Code
}

func TestRequireRealms(t *testing.T) {
	g, _ := newFixture()

	assert.Equal(t, http.StatusNoContent, serve(g.RequireAdmin(), ctxFor(auth.RealmAdmin, 2)))
	assert.Equal(t, http.StatusUnauthorized, serve(g.RequireAdmin(), ctxFor(auth.RealmClient, 10)))
	assert.Equal(t, http.StatusUnauthorized, serve(g.RequireClient(), ctxFor(auth.RealmAdmin, 2)))
	assert.Equal(t, http.StatusNoContent, serve(g.RequireClient(), ctxFor(auth.RealmClient, 10)))
	assert.Equal(t, http.StatusUnauthorized, serve(g.RequireAdmin(), context.Background()))

	assert.Equal(t, http.StatusForbidden, serve(g.RequireSuperAdmin(), ctxFor(auth.RealmAdmin, 2)))
	assert.Equal(t, http.StatusNoContent, serve(g.RequireSuperAdmin(), ctxFor(auth.RealmAdmin, 1)))

	pending := auth.WithPrincipal(context.Background(), auth.Principal{Realm: auth.RealmAdmin, ID: 2, Stage: auth.StageTwoFactor})
	assert.Equal(t, http.StatusUnauthorized, serve(g.RequireAdmin(), pending))
}

func TestDisabledAccountAfterInvalidate(t *testing.T) {
	g, f := newFixture()
	ctx := ctxFor(auth.RealmClient, 10)
	require.True(t, g.Verify(ctx, auth.Principal{Realm: auth.RealmClient, ID: 10}))

	f.clients[10].IsActive = false
	assert.True(t, g.Verify(ctx, auth.Principal{Realm: auth.RealmClient, ID: 10}), "cached until invalidated")
	assert.Equal(t, 1, f.calls)

	g.Invalidate(auth.RealmClient, 10)
	assert.False(t, g.Verify(ctx, auth.Principal{Realm: auth.RealmClient, ID: 10}))
	assert.Equal(t, http.StatusForbidden, serve(g.RequireClient(), ctx))
	assert.False(t, g.Verify(ctx, auth.Principal{Realm: auth.RealmAdmin, ID: 99}))
}

func TestAuthorizeOwnership(t *testing.T) {
	g, _ := newFixture()
	mine := &models.Dossier{ID: 5, ClientID: 10}
	theirs := &models.Dossier{ID: 6, ClientID: 11}

	client := ctxFor(auth.RealmClient, 10)
	assert.True(t, g.Can(client, gate.ActionView, policy.ResourceDossier, mine))
	assert.False(t, g.Can(client, gate.ActionView, policy.ResourceDossier, theirs))
	assert.False(t, g.Can(client, gate.ActionUpdate, policy.ResourceDossier, mine))
	assert.True(t, g.Can(client, gate.ActionList, policy.ResourceDossier, nil))
	assert.True(t, g.Can(client, gate.ActionView, policy.ResourceAppointment, &models.AppointmentRequest{ClientID: 10}))

	admin := ctxFor(auth.RealmAdmin, 2)
	assert.True(t, g.Can(admin, gate.ActionDelete, policy.ResourceDossier, theirs))

	assert.ErrorIs(t, g.Authorize(context.Background(), gate.ActionView, policy.ResourceDossier, mine), gate.ErrUnauthorized)
	assert.ErrorIs(t, g.Authorize(client, gate.ActionView, "invoice", nil), gate.ErrNoPolicyDefined)
}

func TestDocumentPolicy(t *testing.T) {
	g, _ := newFixture()
	visible := &models.Document{VisibleClient: true}
	sensitive := &models.Document{VisibleClient: true, Sensible: true}

	reader := ctxFor(auth.RealmClient, 10)
	assert.True(t, g.Can(reader, gate.ActionDownload, policy.ResourceDocument, visible))
	assert.False(t, g.Can(reader, gate.ActionDownload, policy.ResourceDocument, sensitive))
	assert.False(t, g.Can(reader, gate.ActionView, policy.ResourceDocument, &models.Document{}))
	assert.False(t, g.Can(reader, gate.ActionUpload, policy.ResourceDocument, &models.Dossier{ClientID: 10}))

	uploader := ctxFor(auth.RealmClient, 11)
	assert.True(t, g.Can(uploader, gate.ActionUpload, policy.ResourceDocument, &models.Dossier{ClientID: 11}))
	assert.False(t, g.Can(uploader, gate.ActionUpload, policy.ResourceDocument, &models.Dossier{ClientID: 10}))
}
