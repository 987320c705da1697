// Package handlers exposes the domain services as a JSON API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/portail-cabinet/gate"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/policy"
	"github.com/diewo77/portail-cabinet/internal/services"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrSuperAdminProtected, http.StatusForbidden, "super_admin_protected"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{gate.ErrUnauthorized, http.StatusForbidden, "forbidden"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{services.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
	{services.ErrEmailTaken, http.StatusConflict, "email_already_exists"},
	{services.ErrClientHasDossiers, http.StatusConflict, "client_has_dossiers"},
	{services.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
	{services.ErrUploadNotAllowed, http.StatusForbidden, "upload_not_allowed"},
	{services.ErrAppointmentNotAllowed, http.StatusForbidden, "appointment_not_allowed"},
	{services.ErrInvalidTOTP, http.StatusUnprocessableEntity, "invalid_totp"},
	{services.ErrTwoFactorNotSetup, http.StatusBadRequest, "two_factor_not_setup"},
	{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{services.ErrInvalidPassword, http.StatusUnprocessableEntity, "invalid_password"},
	{oauth.ErrNotConfigured, http.StatusBadRequest, "integration_not_configured"},
	{oauth.ErrNotConnected, http.StatusBadRequest, "integration_not_connected"},
}

// writeError maps a service error to its status and code. Unknown errors are
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := services.AsValidation(err); ok {
		httpx.Error(w, r, http.StatusBadRequest, "validation_failed", v)
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httpx.Error(w, r, m.status, m.code, nil)
			return
		}
	}
	logging.FromContext(r.Context(), nil).Error("request failed",
		zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	httpx.Error(w, r, http.StatusInternalServerError, "internal_error", nil)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, ok := httpx.PathID(r, name)
	if !ok {
		httpx.Error(w, r, http.StatusBadRequest, "invalid_id", nil)
	}
	return id, ok
}

func queryUint(r *http.Request, name string) uint {
	n, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// listFilter reads page, limit, search and status.
func listFilter(r *http.Request) (f services.ListFilter, page, limit int) {
	page, limit, offset := httpx.Pagination(r, 20)
	q := r.URL.Query()
	return services.ListFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Offset: offset,
		Limit:  limit,
	}, page, limit
}

// adminActor is the staff member loaded by policy.RequireAdmin.
func adminActor(r *http.Request) activity.Actor {
	if a := policy.CurrentAdmin(r.Context()); a != nil {
		return activity.AdminActor(a)
	}
	return activity.System()
}

func noContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }
