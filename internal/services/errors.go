// Package services holds the domain operations behind the HTTP handlers.
package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/validation"
)

var (
	ErrNotFound              = gorm.ErrRecordNotFound
	ErrSuperAdminProtected   = errors.New("super admin is protected")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account inactive")
	ErrEmailTaken            = errors.New("email already exists")
	ErrAlreadyProcessed      = errors.New("appointment request already processed")
	ErrUploadNotAllowed      = errors.New("upload not allowed")
	ErrAppointmentNotAllowed = errors.New("appointment requests not allowed")
	ErrInvalidTOTP           = errors.New("invalid totp code")
	ErrTwoFactorNotSetup     = errors.New("two-factor not set up")
	ErrFileTooLarge          = errors.New("file too large")
	ErrClientHasDossiers     = errors.New("client still owns dossiers")
	ErrInvalidPassword       = errors.New("current password does not match")
)

// ValidationError carries field level codes.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string { return "validation failed" }

func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

// AsValidation unwraps a *ValidationError.
func AsValidation(err error) (validation.Violations, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations, true
	}
	return nil, false
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
