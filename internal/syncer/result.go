// Package syncer mirrors dossiers, documents and events to OneDrive and
// Google Calendar, either one item at a time from the job queue or as a full
// reconciliation run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Result is the outcome of one single-item sync. Integration failures are
// reported here rather than returned, so batches keep going.
type Result struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

func ok() Result { return Result{Success: true} }

func skipped() Result { return Result{Success: true, Skipped: true} }

func failed(err error) Result { return Result{Error: err.Error(), err: err} }

// Err returns the underlying error of a failed result, nil otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Error)
}

// maxDetails caps the detail lines persisted with a run.
const maxDetails = 200

// Run accumulates the counters of one full synchronization.
type Run struct {
	Service string
	Mode    string

	Created   int
	Updated   int
	Deleted   int
	Errors    int
	Successes int
	Details   []string

	started time.Time
}

func newRun(service, mode string, now time.Time) *Run {
	if mode != models.SyncModeAuto {
		mode = models.SyncModeManual
	}
	return &Run{Service: service, Mode: mode, started: now}
}

func (r *Run) succeed() { r.Successes++ }

func (r *Run) fail(format string, args ...any) {
	r.Errors++
	r.detail(format, args...)
}

func (r *Run) detail(format string, args ...any) {
	if len(r.Details) < maxDetails {
		r.Details = append(r.Details, fmt.Sprintf(format, args...))
	}
}

// Status is success without errors, partial with both successes and errors,
// error when nothing succeeded.
func (r *Run) Status() string {
	switch {
	case r.Errors == 0:
		return StatusSuccess
	case r.Successes > 0:
		return StatusPartial
	default:
		return StatusError
	}
}

func (r *Run) message() string {
	return fmt.Sprintf("%d créé(s), %d mis à jour, %d supprimé(s), %d erreur(s)", r.Created, r.Updated, r.Deleted, r.Errors)
}

func (r *Run) log(now time.Time) *models.SyncLog {
	details := make([]any, len(r.Details))
	for i, d := range r.Details {
		details[i] = d
	}
	return &models.SyncLog{
		Type:       r.Service,
		Mode:       r.Mode,
		Status:     r.Status(),
		Created:    r.Created,
		Updated:    r.Updated,
		Deleted:    r.Deleted,
		Errors:     r.Errors,
		Message:    r.message(),
		DurationMs: now.Sub(r.started).Milliseconds(),
		Details:    map[string]any{"lines": details, "successes": r.Successes},
	}
}

// History stores and lists sync runs.
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History { return &History{db: db} }

func (h *History) Record(ctx context.Context, l *models.SyncLog) error {
	return h.db.WithContext(ctx).Create(l).Error
}

// List returns the latest runs, newest first. An empty service lists every type.
func (h *History) List(ctx context.Context, service string, limit int) ([]models.SyncLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := h.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if service != "" {
		q = q.Where("type = ?", service)
	}
	var out []models.SyncLog
	return out, q.Find(&out).Error
}

func finishRun(ctx context.Context, h *History, act *activity.Logger, log *zap.Logger, run *Run, now time.Time) (*models.SyncLog, error) {
	entry := run.log(now)
	if err := h.Record(ctx, entry); err != nil {
		return entry, err
	}
	act.SyncCompleted(ctx, entry)
	log.Info("sync finished",
		zap.String("service", entry.Type),
		zap.String("mode", entry.Mode),
		zap.String("status", entry.Status),
		zap.Int("created", entry.Created),
		zap.Int("updated", entry.Updated),
		zap.Int("deleted", entry.Deleted),
		zap.Int("errors", entry.Errors),
		zap.Int64("duration_ms", entry.DurationMs))
	return entry, nil
}

// DetailLines extracts the detail lines stored with a run.
func DetailLines(l *models.SyncLog) []string {
	raw, _ := l.Details["lines"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
