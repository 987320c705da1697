package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/portail-cabinet/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	principalCtxKey   = ctxKey("principal")
)

// Realm separates staff sessions from client portal sessions.
type Realm string

const (
	RealmAdmin  Realm = "admin"
	RealmClient Realm = "client"
)

// Stage is "full" once every authentication factor has been checked.
type Stage string

const (
	StageFull      Stage = "full"
	StageTwoFactor Stage = "2fa"
)

const (
	sessionTTL   = 14 * 24 * time.Hour
	twoFactorTTL = 5 * time.Minute
)

// Principal identifies the authenticated account behind a request.
type Principal struct {
	Realm Realm
	ID    uint
	Stage Stage
}

// IsAdmin reports a fully authenticated staff session.
func (p Principal) IsAdmin() bool { return p.Realm == RealmAdmin && p.Stage == StageFull }

// IsClient reports a fully authenticated client session.
func (p Principal) IsClient() bool { return p.Realm == RealmClient && p.Stage == StageFull }

// Verifier is an optional callback to validate that a session's account still exists and is active.
// Set it during app bootstrap via SetVerifier. If nil, no extra verification is performed.
type Verifier func(ctx context.Context, p Principal) bool

var (
	verifier Verifier
	secret   string
)

// SetVerifier configures the global verifier used by Require.
func SetVerifier(v Verifier) { verifier = v }

// SetSecret overrides SESSION_SECRET.
func SetSecret(s string) { secret = s }

// Secret returns the configured secret, SESSION_SECRET or default dev value.
func Secret() string {
	if secret != "" {
		return secret
	}
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie for a fully authenticated account.
func CreateSession(w http.ResponseWriter, realm Realm, id uint) {
	setSession(w, Principal{Realm: realm, ID: id, Stage: StageFull}, sessionTTL)
}

// CreatePendingSession sets a short-lived cookie waiting for the TOTP code.
func CreatePendingSession(w http.ResponseWriter, realm Realm, id uint) {
	setSession(w, Principal{Realm: realm, ID: id, Stage: StageTwoFactor}, twoFactorTTL)
}

func setSession(w http.ResponseWriter, p Principal, ttl time.Duration) {
	exp := time.Now().Add(ttl)
	payload := strings.Join([]string{
		string(p.Realm),
		strconv.FormatUint(uint64(p.ID), 10),
		string(p.Stage),
		strconv.FormatInt(exp.Unix(), 10),
	}, ".")
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    payload + "." + sign(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns its principal.
func ParseSession(r *http.Request) (Principal, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Principal{}, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 5 {
		return Principal{}, false
	}
	payload := strings.Join(parts[:4], ".")
	if !hmac.Equal([]byte(parts[4]), []byte(sign(payload))) {
		return Principal{}, false
	}
	realm := Realm(parts[0])
	if realm != RealmAdmin && realm != RealmClient {
		return Principal{}, false
	}
	id64, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || id64 == 0 {
		return Principal{}, false
	}
	stage := Stage(parts[2])
	if stage != StageFull && stage != StageTwoFactor {
		return Principal{}, false
	}
	exp, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || time.Now().Unix() > exp {
		return Principal{}, false
	}
	return Principal{Realm: realm, ID: uint(id64), Stage: stage}, true
}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// FromContext extracts the principal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok
}

// AdminID returns the id of a fully authenticated admin, or 0.
func AdminID(ctx context.Context) uint {
	if p, ok := FromContext(ctx); ok && p.IsAdmin() {
		return p.ID
	}
	return 0
}

// ClientID returns the id of a fully authenticated client, or 0.
func ClientID(ctx context.Context) uint {
	if p, ok := FromContext(ctx); ok && p.IsClient() {
		return p.ID
	}
	return 0
}

// Middleware attaches the principal to request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := ParseSession(r); ok {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// Require answers 401 unless the request carries a full session of realm.
func Require(realm Realm) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok || p.Realm != realm || p.Stage != StageFull {
				httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if verifier != nil && !verifier(r.Context(), p) {
				// Session refers to a non-existing/disabled account: clear and treat as unauthorized.
				ClearSession(w)
				httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny accepts a full session of either realm.
func RequireAny(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok || p.Stage != StageFull {
			httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if verifier != nil && !verifier(r.Context(), p) {
			ClearSession(w)
			httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
