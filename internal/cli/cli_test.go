package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/diewo77/portail-cabinet/internal/health"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/syncer"
)

type fakeConn struct {
	configured bool
	rec        *models.OAuthToken
}

func (f fakeConn) IsConfigured() bool { return f.configured }

func (f fakeConn) Record(context.Context) (*models.OAuthToken, error) { return f.rec, nil }

type fakeSync struct {
	log   *models.SyncLog
	calls int
	mode  string
}

func (f *fakeSync) FullSync(_ context.Context, mode string) (*models.SyncLog, error) {
	f.calls++
	f.mode = mode
	return f.log, nil
}

type fakeReporter struct{ report health.Report }

func (f fakeReporter) Report(context.Context, bool) health.Report { return f.report }

func syncLog(status string, details int) *models.SyncLog {
	lines := make([]any, details)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return &models.SyncLog{
		Type: models.ServiceGoogleCalendar, Status: status, Created: 2, Updated: 1, Errors: 0,
		Details: datatypes.JSONMap{"lines": lines},
	}
}

func run(t *testing.T, rt *Runtime, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (*Runtime, error) { return rt, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func connected() fakeConn {
	return fakeConn{configured: true, rec: &models.OAuthToken{AccountEmail: "cabinet@example.com"}}
}

func TestCalendarSyncTruncatesDetails(t *testing.T) {
	s := &fakeSync{log: syncLog(syncer.StatusSuccess, 25)}
	rt := &Runtime{Calendar: Target{Name: "google_calendar", Conn: connected(), Sync: s}}

	out, err := run(t, rt, "calendar-sync", "--max-lines", "3")
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, models.SyncModeManual, s.mode)
	assert.Contains(t, out, "cabinet@example.com")
	assert.Contains(t, out, "line 3")
	assert.NotContains(t, out, "line 4")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "… and 22 more"), out)
}

func TestSyncDefaultShowsTwentyLines(t *testing.T) {
	var buf bytes.Buffer
	PrintSyncLog(&buf, syncLog(syncer.StatusPartial, 21), defaultMaxLines)
	assert.Contains(t, buf.String(), "line 20")
	assert.Contains(t, buf.String(), "… and 1 more")

	buf.Reset()
	PrintSyncLog(&buf, syncLog(syncer.StatusSuccess, 2), defaultMaxLines)
	assert.NotContains(t, buf.String(), "more")
}

func TestSyncExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   int
	}{
		{"not configured", Target{Name: "onedrive", Conn: fakeConn{}, Sync: &fakeSync{}}, 1},
		{"not connected", Target{Name: "onedrive", Conn: fakeConn{configured: true}, Sync: &fakeSync{}}, 1},
		{"run failed", Target{Name: "onedrive", Conn: connected(), Sync: &fakeSync{log: syncLog(syncer.StatusError, 0)}}, 1},
		{"partial", Target{Name: "onedrive", Conn: connected(), Sync: &fakeSync{log: syncLog(syncer.StatusPartial, 0)}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, &Runtime{Documents: tt.target}, "documents-sync")
			assert.Equal(t, tt.want, ExitCode(err))
		})
	}
}

func TestSyncRejectsUnknownMode(t *testing.T) {
	s := &fakeSync{log: syncLog(syncer.StatusSuccess, 0)}
	_, err := run(t, &Runtime{Calendar: Target{Conn: connected(), Sync: s}}, "calendar-sync", "--mode", "nightly")
	require.Error(t, err)
	assert.Zero(t, s.calls)
}

func TestHealthPrintsJSON(t *testing.T) {
	rt := &Runtime{Health: fakeReporter{report: health.Report{
		Healthy:      false,
		Integrations: []health.Integration{{Service: "onedrive", Error: "not configured"}},
	}}}

	out, err := run(t, rt, "health")
	require.NoError(t, err)
	var got health.Report
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Integrations, 1)
	assert.Equal(t, "onedrive", got.Integrations[0].Service)

	_, err = run(t, rt, "health", "--strict")
	assert.Equal(t, 1, ExitCode(err))
}
