package main

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/httpx"
	"github.com/diewo77/portail-cabinet/internal/app"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	db      *gorm.DB
	log     *zap.Logger
	c       *app.Components
	handler http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(c *app.Components) *App {
	a := &App{
		mux: http.NewServeMux(),
		db:  c.DB,
		log: c.Log,
		c:   c,
	}
	a.setupRoutes()
	// Outermost first: recovery sees panics from every layer below it.
	a.handler = chain(a.mux,
		withRecovery(a.log),
		withRequestID(a.log),
		withAccessLog(a.log),
		withPreferences,
		auth.Middleware,
	)
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	h := a.c.Handlers
	g := a.c.Guard

	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("POST /api/admin/login", h.Auth.AdminLogin)
	a.mux.HandleFunc("POST /api/client/login", h.Auth.ClientLogin)
	a.mux.HandleFunc("POST /api/auth/2fa/verify", h.Auth.VerifyTwoFactor)
	a.mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	a.mux.HandleFunc("GET /api/auth/me", h.Auth.Me)
	a.mux.HandleFunc("GET /api/onedrive/callback", h.Integrations.OneDriveCallback)
	a.mux.HandleFunc("GET /api/google/callback", h.Integrations.GoogleCallback)

	// ─────────────────────────────────────────────────────────────────────────
	// Either realm, full session
	// ─────────────────────────────────────────────────────────────────────────
	anyRealm := func(pattern string, fn http.HandlerFunc) { a.mux.Handle(pattern, auth.RequireAny(fn)) }
	anyRealm("POST /api/auth/2fa/setup", h.Auth.SetupTwoFactor)
	anyRealm("POST /api/auth/2fa/enable", h.Auth.EnableTwoFactor)
	anyRealm("POST /api/auth/2fa/disable", h.Auth.DisableTwoFactor)
	anyRealm("PUT /api/auth/password", h.Auth.ChangePassword)

	// ─────────────────────────────────────────────────────────────────────────
	// Staff routes
	// ─────────────────────────────────────────────────────────────────────────
	admin := func(pattern string, fn http.HandlerFunc) { a.mux.Handle(pattern, g.RequireAdmin()(fn)) }

	admin("GET /api/dashboard", h.Dashboard.Show)
	admin("GET /api/activity", h.Dashboard.Activity)

	admin("GET /api/dossiers", h.Dossiers.List)
	admin("POST /api/dossiers", h.Dossiers.Create)
	admin("GET /api/dossiers/{id}", h.Dossiers.Get)
	admin("PUT /api/dossiers/{id}", h.Dossiers.Update)
	admin("DELETE /api/dossiers/{id}", h.Dossiers.Delete)
	admin("PATCH /api/dossiers/{id}/status", h.Dossiers.ChangeStatus)
	admin("GET /api/dossiers/{id}/timeline", h.Dossiers.Timeline)
	admin("POST /api/dossiers/{id}/onedrive/sync", h.Dossiers.SyncOneDrive)

	admin("GET /api/dossiers/{id}/documents", h.Documents.List)
	admin("POST /api/dossiers/{id}/documents", h.Documents.Upload)
	admin("PUT /api/documents/{id}", h.Documents.Update)
	admin("DELETE /api/documents/{id}", h.Documents.Delete)
	admin("GET /api/documents/{id}/download", h.Documents.Download)

	admin("GET /api/events", h.Events.List)
	admin("POST /api/events", h.Events.Create)
	admin("GET /api/events/{id}", h.Events.Get)
	admin("PUT /api/events/{id}", h.Events.Update)
	admin("DELETE /api/events/{id}", h.Events.Delete)

	admin("GET /api/dossiers/{id}/notes", h.Notes.List)
	admin("POST /api/dossiers/{id}/notes", h.Notes.Create)
	admin("PUT /api/notes/{id}", h.Notes.Update)
	admin("POST /api/notes/{id}/pin", h.Notes.TogglePin)
	admin("DELETE /api/notes/{id}", h.Notes.Delete)

	admin("GET /api/tasks", h.Tasks.List)
	admin("GET /api/dossiers/{id}/tasks", h.Tasks.List)
	admin("POST /api/dossiers/{id}/tasks", h.Tasks.Create)
	admin("GET /api/tasks/{id}", h.Tasks.Get)
	admin("PUT /api/tasks/{id}", h.Tasks.Update)
	admin("POST /api/tasks/{id}/complete", h.Tasks.Complete)
	admin("POST /api/tasks/{id}/reopen", h.Tasks.Reopen)
	admin("DELETE /api/tasks/{id}", h.Tasks.Delete)

	admin("GET /api/clients", h.Clients.List)
	admin("POST /api/clients", h.Clients.Create)
	admin("GET /api/clients/{id}", h.Clients.Get)
	admin("PUT /api/clients/{id}", h.Clients.Update)
	admin("DELETE /api/clients/{id}", h.Clients.Delete)
	admin("POST /api/clients/{id}/toggle-status", h.Clients.ToggleStatus)
	admin("POST /api/clients/{id}/reset-password", h.Clients.ResetPassword)

	admin("GET /api/favorites", h.Favorites.List)
	admin("POST /api/favorites/toggle", h.Favorites.Toggle)

	admin("GET /api/appointment-requests", h.Appointments.List)
	admin("GET /api/appointment-requests/{id}", h.Appointments.Get)
	admin("POST /api/appointment-requests/{id}/accept", h.Appointments.Accept)
	admin("POST /api/appointment-requests/{id}/refuse", h.Appointments.Refuse)

	// Integrations: {service} is onedrive or google.
	admin("GET /api/integrations/health", h.Integrations.Health)
	admin("GET /api/integrations/sync-logs", h.Integrations.SyncLogs)
	admin("GET /api/integrations/google/calendars", h.Integrations.Calendars)
	admin("GET /api/integrations/{service}/status", h.Integrations.Status)
	admin("GET /api/integrations/{service}/connect", h.Integrations.Connect)
	admin("POST /api/integrations/{service}/disconnect", h.Integrations.Disconnect)
	admin("POST /api/integrations/{service}/sync", h.Integrations.Sync)
	admin("PUT /api/integrations/{service}/settings", h.Integrations.Settings)

	// ─────────────────────────────────────────────────────────────────────────
	// Super admin routes
	// ─────────────────────────────────────────────────────────────────────────
	super := func(pattern string, fn http.HandlerFunc) { a.mux.Handle(pattern, g.RequireSuperAdmin()(fn)) }
	super("GET /api/admins", h.Admins.List)
	super("POST /api/admins", h.Admins.Create)
	super("GET /api/admins/{id}", h.Admins.Get)
	super("PUT /api/admins/{id}", h.Admins.Update)
	super("DELETE /api/admins/{id}", h.Admins.Delete)
	super("POST /api/admins/{id}/toggle-status", h.Admins.ToggleStatus)
	super("POST /api/admins/{id}/reset-password", h.Admins.ResetPassword)

	// ─────────────────────────────────────────────────────────────────────────
	// Client portal
	// ─────────────────────────────────────────────────────────────────────────
	client := func(pattern string, fn http.HandlerFunc) { a.mux.Handle(pattern, g.RequireClient()(fn)) }
	client("GET /api/client/dossiers", h.Portal.Dossiers)
	client("GET /api/client/dossiers/{id}", h.Portal.Dossier)
	client("GET /api/client/dossiers/{id}/documents", h.Portal.Documents)
	client("POST /api/client/dossiers/{id}/documents", h.Portal.Upload)
	client("GET /api/client/documents/{id}/download", h.Portal.Download)
	client("GET /api/client/events", h.Portal.Events)
	client("GET /api/client/appointment-requests", h.Portal.Appointments)
	client("POST /api/client/appointment-requests", h.Portal.RequestAppointment)
	client("GET /api/client/profile", h.Portal.Profile)
	client("PUT /api/client/profile", h.Portal.UpdateProfile)
}

// health answers the load balancer probe: the process is up and the database answers.
func (a *App) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		a.log.Warn("health check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": a.c.Integrations.Queue.Depth(),
	})
}
