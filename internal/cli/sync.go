package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/syncer"
)

const defaultMaxLines = 20

func newSyncCommand(use, short string, open Opener, pick func(*Runtime) Target) *cobra.Command {
	var (
		mode     string
		maxLines int
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != models.SyncModeManual && mode != models.SyncModeAuto {
				return fmt.Errorf("--mode must be %q or %q", models.SyncModeManual, models.SyncModeAuto)
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime, out io.Writer) error {
				return RunSync(ctx, out, pick(rt), mode, maxLines)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", models.SyncModeManual, "mode recorded in the sync log (manual|auto)")
	cmd.Flags().IntVar(&maxLines, "max-lines", defaultMaxLines, "detail lines to print")
	return cmd
}

// RunSync checks that t is usable, runs it and prints a summary. A run whose
// status is error exits 1.
func RunSync(ctx context.Context, out io.Writer, t Target, mode string, maxLines int) error {
	if t.Conn == nil || t.Sync == nil || !t.Conn.IsConfigured() {
		return exitf("%s: integration not configured", t.Name)
	}
	rec, err := t.Conn.Record(ctx)
	if err != nil {
		return exitf("%s: %v", t.Name, err)
	}
	if rec == nil {
		return exitf("%s: integration not connected", t.Name)
	}

	fmt.Fprintf(out, "%s sync (%s) as %s\n", t.Name, mode, accountOf(rec))
	l, err := t.Sync.FullSync(ctx, mode)
	if err != nil {
		return exitf("%s: %v", t.Name, err)
	}
	PrintSyncLog(out, l, maxLines)
	if l.Status == syncer.StatusError {
		return exitf("%s: synchronisation failed", t.Name)
	}
	return nil
}

func accountOf(rec *models.OAuthToken) string {
	switch {
	case rec.AccountEmail != "":
		return rec.AccountEmail
	case rec.AccountName != "":
		return rec.AccountName
	}
	return "unknown account"
}

// PrintSyncLog writes the counters and at most maxLines detail lines.
func PrintSyncLog(out io.Writer, l *models.SyncLog, maxLines int) {
	fmt.Fprintf(out, "status:   %s\n", l.Status)
	fmt.Fprintf(out, "created:  %d\n", l.Created)
	fmt.Fprintf(out, "updated:  %d\n", l.Updated)
	fmt.Fprintf(out, "deleted:  %d\n", l.Deleted)
	fmt.Fprintf(out, "errors:   %d\n", l.Errors)
	fmt.Fprintf(out, "duration: %s\n", time.Duration(l.DurationMs)*time.Millisecond)

	lines := syncer.DetailLines(l)
	if len(lines) == 0 {
		return
	}
	if maxLines < 0 {
		maxLines = 0
	}
	shown := min(len(lines), maxLines)
	fmt.Fprintln(out, "details:")
	for _, line := range lines[:shown] {
		fmt.Fprintf(out, "  - %s\n", line)
	}
	if rest := len(lines) - shown; rest > 0 {
		fmt.Fprintf(out, "  … and %d more\n", rest)
	}
}

func newHealthCommand(open Opener) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the integration health report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime, out io.Writer) error {
				report := rt.Health.Report(ctx, true)
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if strict && !report.Healthy {
					return exitf("integrations unhealthy")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 1 when an integration is unhealthy")
	return cmd
}
