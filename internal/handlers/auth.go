package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/services"
)

// Invalidator drops a cached session account. *policy.Guard implements it.
type Invalidator interface {
	Invalidate(realm auth.Realm, id uint)
}

type AuthHandler struct {
	svc   *services.AuthService
	cache Invalidator
}

func NewAuthHandler(svc *services.AuthService, cache Invalidator) *AuthHandler {
	return &AuthHandler{svc: svc, cache: cache}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeInput struct {
	Code string `json:"code"`
}

type passwordChange struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
}

// AdminLogin handles POST /api/admin/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, auth.RealmAdmin)
}

// ClientLogin handles POST /api/client/login.
func (h *AuthHandler) ClientLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, auth.RealmClient)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, realm auth.Realm) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Login(r.Context(), realm, in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.TwoFactorRequired {
		auth.CreatePendingSession(w, realm, res.Account.ID())
		httpx.JSON(w, http.StatusOK, map[string]any{"two_factor_required": true})
		return
	}
	auth.CreateSession(w, realm, res.Account.ID())
	httpx.JSON(w, http.StatusOK, map[string]any{"two_factor_required": false, "user": res.Account})
}

// VerifyTwoFactor upgrades a pending session once the TOTP code checks out.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok || p.Stage != auth.StageTwoFactor {
		httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in codeInput
	if !decode(w, r, &in) {
		return
	}
	acc, err := h.svc.VerifyTwoFactor(r.Context(), p.Realm, p.ID, in.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auth.CreateSession(w, p.Realm, acc.ID())
	httpx.JSON(w, http.StatusOK, map[string]any{"user": acc})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	noContent(w)
}

// Me returns the account of a full session, or 401.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok || p.Stage != auth.StageFull {
		httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	acc, err := h.svc.Me(r.Context(), p.Realm, p.ID)
	if err != nil {
		auth.ClearSession(w)
		httpx.Error(w, r, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": acc})
}

func (h *AuthHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	setup, err := h.svc.SetupTwoFactor(r.Context(), p.Realm, p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, setup)
}

func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.toggleTwoFactor(w, r, h.svc.EnableTwoFactor, true)
}

func (h *AuthHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	h.toggleTwoFactor(w, r, h.svc.DisableTwoFactor, false)
}

func (h *AuthHandler) toggleTwoFactor(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, realm auth.Realm, id uint, code string) error, enabled bool) {
	p, _ := auth.FromContext(r.Context())
	var in codeInput
	if !decode(w, r, &in) {
		return
	}
	if err := apply(r.Context(), p.Realm, p.ID, in.Code); err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(p.Realm, p.ID)
	httpx.JSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": enabled})
}

// ChangePassword lets either realm change its own password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	var in passwordChange
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), p.Realm, p.ID, in.CurrentPassword, in.Password); err != nil {
		writeError(w, r, err)
		return
	}
	h.cache.Invalidate(p.Realm, p.ID)
	noContent(w)
}
