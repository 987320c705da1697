// Package policy decides who may reach which route and resource.
package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/gate"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/cache"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/services"
)

// Resource types known to the gate.
const (
	ResourceDossier     = "dossier"
	ResourceDocument    = "document"
	ResourceAppointment = "appointment"
)

// Accounts loads the account behind a session. *services.AuthService implements it.
type Accounts interface {
	Me(ctx context.Context, realm auth.Realm, id uint) (*services.Account, error)
}

type accountKey struct {
	realm auth.Realm
	id    uint
}

type ctxKey struct{}

// Guard holds the gate and a short-lived cache of session accounts, so that
// every request does not hit the database to check the account is still active.
type Guard struct {
	Gate     *gate.Gate[auth.Principal]
	accounts *cache.TTL[accountKey, services.Account]
}

// NewGuard wires the gate with the portal policies. ttl bounds how long a
// disabled account keeps working on an open session.
func NewGuard(accounts Accounts, ttl time.Duration) *Guard {
	g := &Guard{Gate: gate.NewGate[auth.Principal]()}
	g.accounts = cache.New(func(ctx context.Context, k accountKey) (services.Account, error) {
		acc, err := accounts.Me(ctx, k.realm, k.id)
		if err != nil {
			return services.Account{}, err
		}
		return *acc, nil
	}, ttl)

	// Staff see every resource; clients only their own.
	g.Gate.BeforeAll(func(_ context.Context, p auth.Principal, _ gate.Action, _ string) bool {
		return p.IsAdmin()
	})
	owned := NewOwnershipPolicy()
	g.Gate.Register(ResourceDossier, owned)
	g.Gate.Register(ResourceAppointment, owned)
	g.Gate.Register(ResourceDocument, NewDocumentPolicy(g.client))
	return g
}

func (g *Guard) account(ctx context.Context, p auth.Principal) (*services.Account, error) {
	acc, err := g.accounts.Get(ctx, accountKey{p.Realm, p.ID})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (g *Guard) client(ctx context.Context, id uint) (*models.Client, error) {
	acc, err := g.account(ctx, auth.Principal{Realm: auth.RealmClient, ID: id})
	if err != nil {
		return nil, err
	}
	if acc.Client == nil {
		return nil, services.ErrNotFound
	}
	c := *acc.Client
	return &c, nil
}

// Verify reports whether the session account still exists and is active.
// Install it with auth.SetVerifier.
func (g *Guard) Verify(ctx context.Context, p auth.Principal) bool {
	acc, err := g.account(ctx, p)
	if err != nil {
		return false
	}
	if acc.Admin != nil {
		return acc.Admin.IsActive
	}
	return acc.Client != nil && acc.Client.IsActive
}

// Invalidate drops the cached account, after a status, password or role change.
func (g *Guard) Invalidate(realm auth.Realm, id uint) {
	g.accounts.Invalidate(accountKey{realm, id})
}

func (g *Guard) InvalidateAll() { g.accounts.InvalidateAll() }

// Authorize checks the principal of ctx against the gate.
func (g *Guard) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	p, ok := auth.FromContext(ctx)
	if !ok || p.Stage != auth.StageFull {
		return gate.ErrUnauthorized
	}
	return g.Gate.Authorize(ctx, p, action, resourceType, resource)
}

// Can is Authorize returning a bool.
func (g *Guard) Can(ctx context.Context, action gate.Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, action, resourceType, resource) == nil
}

// CurrentAdmin returns the admin loaded by RequireAdmin.
func CurrentAdmin(ctx context.Context) *models.Admin {
	if acc, ok := ctx.Value(ctxKey{}).(*services.Account); ok {
		return acc.Admin
	}
	return nil
}

// CurrentClient returns the client loaded by RequireClient.
func CurrentClient(ctx context.Context) *models.Client {
	if acc, ok := ctx.Value(ctxKey{}).(*services.Account); ok {
		return acc.Client
	}
	return nil
}

// WithAccount stores acc for CurrentAdmin and CurrentClient.
func WithAccount(ctx context.Context, acc *services.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, acc)
}

func (g *Guard) require(realm auth.Realm, allow func(*services.Account) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok || p.Realm != realm || p.Stage != auth.StageFull {
				httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			acc, err := g.account(r.Context(), p)
			if err != nil {
				if !errors.Is(err, services.ErrNotFound) {
					httpx.Error(w, r, http.StatusInternalServerError, "internal_error", nil)
					return
				}
				auth.ClearSession(w)
				httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			active := (acc.Admin != nil && acc.Admin.IsActive) || (acc.Client != nil && acc.Client.IsActive)
			if !active {
				auth.ClearSession(w)
				httpx.Error(w, r, http.StatusForbidden, "account_inactive", nil)
				return
			}
			if allow != nil && !allow(acc) {
				httpx.Error(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
		})
	}
}

// RequireAdmin admits any active staff session.
func (g *Guard) RequireAdmin() func(http.Handler) http.Handler {
	return g.require(auth.RealmAdmin, nil)
}

// RequireSuperAdmin admits the super admin only.
func (g *Guard) RequireSuperAdmin() func(http.Handler) http.Handler {
	return g.require(auth.RealmAdmin, func(acc *services.Account) bool {
		return acc.Admin != nil && acc.Admin.IsSuperAdmin()
	})
}

// RequireClient admits any active client session.
func (g *Guard) RequireClient() func(http.Handler) http.Handler {
	return g.require(auth.RealmClient, nil)
}
