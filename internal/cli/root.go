// Package cli implements the portail command line: out-of-band synchronisation
// runs and the integration health report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/diewo77/portail-cabinet/internal/app"
	"github.com/diewo77/portail-cabinet/internal/config"
	"github.com/diewo77/portail-cabinet/internal/db"
	"github.com/diewo77/portail-cabinet/internal/health"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Connection is the OAuth side of an integration. *oauth.Service implements it.
type Connection interface {
	IsConfigured() bool
	Record(ctx context.Context) (*models.OAuthToken, error)
}

// Syncer runs a full synchronisation pass.
type Syncer interface {
	FullSync(ctx context.Context, mode string) (*models.SyncLog, error)
}

// Target is one synchronisable integration.
type Target struct {
	Name string
	Conn Connection
	Sync Syncer
}

// Reporter is satisfied by *health.Service.
type Reporter interface {
	Report(ctx context.Context, force bool) health.Report
}

// Runtime is what the commands operate on.
type Runtime struct {
	Calendar  Target
	Documents Target
	Health    Reporter
	Close     func()
}

// Opener builds the runtime for one command invocation.
type Opener func(ctx context.Context) (*Runtime, error)

// ExitError carries the process exit status of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func exitf(format string, args ...any) error {
	return &ExitError{Code: 1, Err: fmt.Errorf(format, args...)}
}

// ExitCode maps a command error to a process status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// NewRootCommand assembles the command tree around open.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "portail",
		Short:         "Portail cabinet maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSyncCommand("calendar-sync", "Synchronise events with Google Calendar", open, func(rt *Runtime) Target { return rt.Calendar }),
		newSyncCommand("documents-sync", "Synchronise documents with OneDrive", open, func(rt *Runtime) Target { return rt.Documents }),
		newHealthCommand(open),
	)
	return root
}

func withRuntime(cmd *cobra.Command, open Opener, fn func(ctx context.Context, rt *Runtime, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(ctx, rt, cmd.OutOrStdout())
}

// DefaultOpener connects to the database configured in the environment.
// Logs go to stderr so that stdout stays machine readable.
func DefaultOpener(ctx context.Context) (*Runtime, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	lc := logging.ConfigFromEnv()
	lc.Stderr = true
	logger, err := logging.Init(lc)
	if err != nil {
		return nil, err
	}
	conn, err := db.Connect(cfg.Database, false, logger)
	if err != nil {
		return nil, err
	}
	c, err := app.Build(cfg, conn, logger)
	if err != nil {
		return nil, err
	}
	in := c.Integrations
	return &Runtime{
		Calendar:  Target{Name: models.ServiceGoogleCalendar, Conn: in.GoogleAuth, Sync: in.Events},
		Documents: Target{Name: models.ServiceOneDrive, Conn: in.OneDriveAuth, Sync: in.Documents},
		Health:    in.Health,
		Close: func() {
			_ = logger.Sync()
			if sqlDB, err := conn.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}
