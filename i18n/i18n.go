// Package i18n holds the message catalogue used for API error messages.
package i18n

import (
	"context"
	"strings"
)

type ctxKey struct{}

// Default is the portal language.
const Default = "fr"

var catalog = map[string]map[string]string{
	"fr": {
		"required":                   "Requis",
		"invalid_email":              "Adresse e-mail invalide",
		"invalid_value":              "Valeur invalide",
		"too_long":                   "Trop long",
		"too_short":                  "Trop court",
		"end_before_start":           "La fin précède le début",
		"unauthorized":               "Authentification requise",
		"invalid_credentials":        "Identifiants invalides",
		"account_inactive":           "Compte désactivé",
		"forbidden":                  "Accès refusé",
		"super_admin_protected":      "Le super administrateur ne peut pas être modifié",
		"not_found":                  "Ressource introuvable",
		"invalid_id":                 "Identifiant invalide",
		"invalid_json":               "Corps de requête invalide",
		"invalid_form":               "Formulaire invalide",
		"validation_failed":          "Données invalides",
		"email_already_exists":       "Cette adresse e-mail est déjà utilisée",
		"conflict":                   "Conflit avec une ressource existante",
		"db_error":                   "Erreur de base de données",
		"internal_error":             "Une erreur interne est survenue",
		"two_factor_required":        "Code de double authentification requis",
		"invalid_totp":               "Code de double authentification invalide",
		"two_factor_not_setup":       "La double authentification n'est pas configurée",
		"upload_not_allowed":         "Le dépôt de documents n'est pas autorisé",
		"appointment_not_allowed":    "Les demandes de rendez-vous ne sont pas autorisées",
		"file_required":              "Fichier requis",
		"file_too_large":             "Fichier trop volumineux",
		"integration_not_configured": "Intégration non configurée",
		"integration_not_connected":  "Intégration non connectée",
		"invalid_state":              "Paramètre state invalide",
		"sync_failed":                "La synchronisation a échoué",
		"queue_full":                 "File de synchronisation saturée",
		"already_processed":          "Demande déjà traitée",
		"client_has_dossiers":        "Ce client possède encore des dossiers",
		"invalid_password":           "Mot de passe actuel incorrect",
		"date_in_past":               "La date est déjà passée",
	},
	"en": {
		"required":                   "Required",
		"invalid_email":              "Invalid email address",
		"invalid_value":              "Invalid value",
		"too_long":                   "Too long",
		"too_short":                  "Too short",
		"end_before_start":           "End is before start",
		"unauthorized":               "Authentication required",
		"invalid_credentials":        "Invalid credentials",
		"account_inactive":           "Account disabled",
		"forbidden":                  "Forbidden",
		"super_admin_protected":      "The super administrator cannot be modified",
		"not_found":                  "Resource not found",
		"invalid_id":                 "Invalid identifier",
		"invalid_json":               "Invalid request body",
		"invalid_form":               "Invalid form",
		"validation_failed":          "Validation failed",
		"email_already_exists":       "Email already in use",
		"conflict":                   "Conflicts with an existing resource",
		"db_error":                   "Database error",
		"internal_error":             "An internal error occurred",
		"two_factor_required":        "Two-factor code required",
		"invalid_totp":               "Invalid two-factor code",
		"two_factor_not_setup":       "Two-factor authentication is not set up",
		"upload_not_allowed":         "Uploading documents is not allowed",
		"appointment_not_allowed":    "Appointment requests are not allowed",
		"file_required":              "File required",
		"file_too_large":             "File too large",
		"integration_not_configured": "Integration not configured",
		"integration_not_connected":  "Integration not connected",
		"invalid_state":              "Invalid state parameter",
		"sync_failed":                "Synchronisation failed",
		"queue_full":                 "Sync queue is full",
		"already_processed":          "Request already processed",
		"client_has_dossiers":        "This client still owns dossiers",
		"invalid_password":           "Current password is incorrect",
		"date_in_past":               "The date is in the past",
	},
}

// T translates code into lang, falling back to French and then to the code itself.
func T(lang, code string) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := catalog[Default][code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks "en" or "fr" from an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if tag == "" {
			continue
		}
		base := strings.SplitN(tag, "-", 2)[0]
		if _, ok := catalog[base]; ok {
			return base
		}
	}
	return Default
}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// LangFromContext returns the request language or Default.
func LangFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return Default
}
