package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/diewo77/portail-cabinet/internal/models"
)

func TestRunStatus(t *testing.T) {
	cases := []struct {
		name              string
		successes, errors int
		want              string
	}{
		{"empty", 0, 0, StatusSuccess},
		{"clean", 3, 0, StatusSuccess},
		{"mixed", 2, 1, StatusPartial},
		{"all failed", 0, 2, StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRun(models.ServiceOneDrive, models.SyncModeManual, time.Now())
			r.Successes, r.Errors = tc.successes, tc.errors
			assert.Equal(t, tc.want, r.Status())
		})
	}
}

func TestRunLogKeepsDetails(t *testing.T) {
	start := time.Now()
	r := newRun(models.ServiceGoogleCalendar, "bogus", start)
	assert.Equal(t, models.SyncModeManual, r.Mode)
	r.Created = 2
	r.fail("Événement %q : %s", "Audience", "boom")
	for i := 0; i < maxDetails+10; i++ {
		r.detail("line %d", i)
	}
	l := r.log(start.Add(1500 * time.Millisecond))
	assert.Equal(t, int64(1500), l.DurationMs)
	assert.Equal(t, StatusError, l.Status)
	lines := DetailLines(l)
	assert.Len(t, lines, maxDetails)
	assert.Equal(t, `Événement "Audience" : boom`, lines[0])
	assert.Contains(t, l.Message, "2 créé(s)")
}

func TestResultErr(t *testing.T) {
	assert.NoError(t, ok().Err())
	assert.NoError(t, skipped().Err())
	assert.EqualError(t, Result{Error: "x"}.Err(), "x")
}
