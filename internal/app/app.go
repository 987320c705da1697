// Package app assembles the services, integrations and handlers shared by the
// HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/config"
	"github.com/diewo77/portail-cabinet/internal/folders"
	"github.com/diewo77/portail-cabinet/internal/gcalendar"
	"github.com/diewo77/portail-cabinet/internal/handlers"
	"github.com/diewo77/portail-cabinet/internal/health"
	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/onedrive"
	"github.com/diewo77/portail-cabinet/internal/policy"
	"github.com/diewo77/portail-cabinet/internal/retry"
	"github.com/diewo77/portail-cabinet/internal/services"
	"github.com/diewo77/portail-cabinet/internal/storage"
	"github.com/diewo77/portail-cabinet/internal/syncer"
)

// AccountCacheTTL bounds how long a disabled account keeps an open session.
const AccountCacheTTL = 30 * time.Second

// Services are the domain services.
type Services struct {
	Auth         *services.AuthService
	Admins       *services.AdminService
	Clients      *services.ClientService
	Dossiers     *services.DossierService
	Documents    *services.DocumentService
	Events       *services.EventService
	Notes        *services.NoteService
	Tasks        *services.TaskService
	Favorites    *services.FavoriteService
	Appointments *services.AppointmentService
	Dashboard    *services.DashboardService
}

// Integrations holds the OneDrive and Google Calendar plumbing.
type Integrations struct {
	OneDriveAuth *oauth.Service
	GoogleAuth   *oauth.Service
	Drive        *onedrive.Client
	Calendar     *gcalendar.Client
	Folders      *folders.Mapper
	Documents    *syncer.DocumentSync
	Events       *syncer.CalendarSync
	Queue        *syncer.Queue
	History      *syncer.History
	Health       *health.Service
}

// Handlers are the HTTP handlers mounted by cmd/server.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Admins       *handlers.AdminHandler
	Clients      *handlers.ClientHandler
	Dossiers     *handlers.DossierHandler
	Documents    *handlers.DocumentHandler
	Events       *handlers.EventHandler
	Notes        *handlers.NoteHandler
	Tasks        *handlers.TaskHandler
	Favorites    *handlers.FavoriteHandler
	Appointments *handlers.AppointmentHandler
	Dashboard    *handlers.DashboardHandler
	Portal       *handlers.PortalHandler
	Integrations *handlers.IntegrationHandler
}

type Components struct {
	Config       *config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Activity     *activity.Logger
	Timeline     *activity.Timeline
	Store        *storage.Store
	Guard        *policy.Guard
	Services     Services
	Integrations Integrations
	Handlers     Handlers
}

// Build wires every component over an open database. It installs the session
// secret and verifier of the auth package.
func Build(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Components, error) {
	store, err := storage.New(cfg.App.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	c := &Components{
		Config:   cfg,
		DB:       db,
		Log:      log,
		Activity: activity.NewLogger(db, log.Named("activity")),
		Timeline: activity.NewTimeline(db),
		Store:    store,
	}
	c.buildIntegrations()
	c.buildServices()

	c.Guard = policy.NewGuard(c.Services.Auth, AccountCacheTTL)
	auth.SetSecret(cfg.Session.Secret)
	auth.SetVerifier(c.Guard.Verify)

	c.buildHandlers()
	return c, nil
}

func (c *Components) buildIntegrations() {
	cfg, log := c.Config, c.Log
	tokens := oauth.NewGormStore(c.DB)
	in := &c.Integrations

	in.OneDriveAuth = oauth.NewService(oauth.Microsoft(cfg.OneDrive.Tenant, cfg.OneDrive.GraphBaseURL), oauth.Credentials{
		ClientID:     cfg.OneDrive.ClientID,
		ClientSecret: cfg.OneDrive.ClientSecret,
		RedirectURI:  cfg.OneDrive.RedirectURI,
	}, tokens, log)
	in.GoogleAuth = oauth.NewService(oauth.Google(), oauth.Credentials{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURI:  cfg.Google.RedirectURI,
	}, tokens, log)

	apiRetry := retry.Options{
		MaxRetries: retry.DefaultMaxRetries,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying provider call", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		},
	}
	in.Drive = onedrive.NewClient(onedrive.Options{
		BaseURL:       cfg.OneDrive.GraphBaseURL,
		TokenProvider: in.OneDriveAuth.TokenProvider(),
		Retry:         apiRetry,
	})
	in.Calendar = gcalendar.NewClient(gcalendar.Options{
		BaseURL:       cfg.Google.CalendarBaseURL,
		TokenProvider: in.GoogleAuth.TokenProvider(),
		Retry:         apiRetry,
	})

	syncLog := log.Named("sync")
	in.Folders = folders.NewMapper(c.DB, in.Drive, cfg.OneDrive.RootFolder, syncLog)
	in.Documents = syncer.NewDocumentSync(c.DB, in.Drive, in.Folders, c.Store, c.Activity, syncLog)
	in.Events = syncer.NewCalendarSync(c.DB, in.Calendar, in.GoogleAuth, syncer.CalendarOptions{
		TimeZone:   cfg.Google.Timezone,
		PastDays:   cfg.Sync.PastDays,
		FutureDays: cfg.Sync.FutureDays,
	}, c.Activity, syncLog)
	in.History = syncer.NewHistory(c.DB)

	in.Queue = syncer.NewQueue(cfg.Sync.QueueSize, retry.Options{MaxRetries: retry.DefaultMaxRetries}, syncLog.Named("queue"))
	in.Documents.Register(in.Queue)
	in.Events.Register(in.Queue)

	in.Health = health.NewService(cfg.Sync.HealthCacheTTL, log.Named("health"),
		health.NewChecker(in.OneDriveAuth, health.OneDriveProbe(in.Drive), c.DB),
		health.NewChecker(in.GoogleAuth, health.GoogleCalendarProbe(in.Calendar), c.DB),
	)
}

func (c *Components) buildServices() {
	db, act, log := c.DB, c.Activity, c.Log
	dispatch := syncer.NewEnqueuer(c.Integrations.Queue, c.Integrations.OneDriveAuth, c.Integrations.GoogleAuth, log)
	events := services.NewEventService(db, act, dispatch)

	c.Services = Services{
		Auth:         services.NewAuthService(db),
		Admins:       services.NewAdminService(db, act),
		Clients:      services.NewClientService(db, act),
		Dossiers:     services.NewDossierService(db, act, dispatch, c.Store, log),
		Documents:    services.NewDocumentService(db, c.Store, c.Integrations.Drive, act, dispatch, c.maxUpload(), log),
		Events:       events,
		Notes:        services.NewNoteService(db, act),
		Tasks:        services.NewTaskService(db, act),
		Favorites:    services.NewFavoriteService(db),
		Appointments: services.NewAppointmentService(db, events, act),
		Dashboard:    services.NewDashboardService(db, c.Timeline),
	}
}

func (c *Components) maxUpload() int64 {
	return int64(c.Config.App.MaxUploadMB) << 20
}

func (c *Components) buildHandlers() {
	s, in, g := c.Services, c.Integrations, c.Guard
	c.Handlers = Handlers{
		Auth:         handlers.NewAuthHandler(s.Auth, g),
		Admins:       handlers.NewAdminHandler(s.Admins, g),
		Clients:      handlers.NewClientHandler(s.Clients, g),
		Dossiers:     handlers.NewDossierHandler(s.Dossiers, c.Timeline, in.Documents),
		Documents:    handlers.NewDocumentHandler(s.Documents, c.maxUpload()),
		Events:       handlers.NewEventHandler(s.Events),
		Notes:        handlers.NewNoteHandler(s.Notes),
		Tasks:        handlers.NewTaskHandler(s.Tasks),
		Favorites:    handlers.NewFavoriteHandler(s.Favorites),
		Appointments: handlers.NewAppointmentHandler(s.Appointments),
		Dashboard:    handlers.NewDashboardHandler(s.Dashboard, c.Timeline),
		Portal: handlers.NewPortalHandler(handlers.PortalServices{
			Dossiers:     s.Dossiers,
			Documents:    s.Documents,
			Events:       s.Events,
			Appointments: s.Appointments,
			Clients:      s.Clients,
		}, g, g, c.maxUpload()),
		Integrations: handlers.NewIntegrationHandler(handlers.IntegrationDeps{
			OneDrive:  handlers.Integration{OAuth: in.OneDriveAuth, Sync: in.Documents},
			Google:    handlers.Integration{OAuth: in.GoogleAuth, Sync: in.Events},
			Calendars: in.Calendar,
			States:    oauth.NewStateSigner(c.Config.Session.Secret),
			History:   in.History,
			Health:    in.Health,
			Activity:  c.Activity,
			AppURL:    c.Config.App.URL,
			Log:       c.Log.Named("integrations"),
		}),
	}
}

// RunWorkers drains the sync queue until ctx is cancelled.
func (c *Components) RunWorkers(ctx context.Context) error {
	return c.Integrations.Queue.Run(ctx, c.Config.Sync.Workers)
}
