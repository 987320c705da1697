package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

// Kind names a job type.
type Kind string

const (
	KindDocumentUpload Kind = "document.upload"
	KindDocumentDelete Kind = "document.delete"
	KindDocumentRename Kind = "document.rename"
	KindDossierFolders Kind = "dossier.folders"
	KindEventPush      Kind = "event.push"
	KindEventDelete    Kind = "event.delete"
)

// Job is one unit of integration work. Delete jobs carry the remote id since
// the local row is already gone when they run.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	DocumentID uint      `json:"document_id,omitempty"`
	DossierID  uint      `json:"dossier_id,omitempty"`
	EventID    uint      `json:"event_id,omitempty"`
	RemoteID   string    `json:"remote_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (j Job) String() string {
	return fmt.Sprintf("%s#%s", j.Kind, j.ID)
}

// Handler performs one job. Errors are retried unless marked retry.Permanent
// or classified as non retryable.
type Handler func(ctx context.Context, job Job) error

// Queue is a bounded in-memory job queue drained by worker goroutines.
type Queue struct {
	ch       chan Job
	handlers map[Kind]Handler
	retry    retry.Options
	log      *zap.Logger
}

func NewQueue(capacity int, opts retry.Options, log *zap.Logger) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{
		ch:       make(chan Job, capacity),
		handlers: map[Kind]Handler{},
		retry:    opts,
		log:      logging.OrNop(log),
	}
}

// Handle registers the handler of a job kind. Call before Run.
func (q *Queue) Handle(kind Kind, h Handler) { q.handlers[kind] = h }

// TryEnqueue adds a job without blocking. It returns false when the queue is
// full or the kind has no handler.
func (q *Queue) TryEnqueue(job Job) bool {
	if q == nil {
		return false
	}
	if _, ok := q.handlers[job.Kind]; !ok {
		q.log.Warn("sync job without handler", zap.String("kind", string(job.Kind)))
		return false
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return true
	default:
		q.log.Warn("sync queue full, job dropped", zap.Stringer("job", job))
		return false
	}
}

// Dequeue waits for the next job or ctx cancellation.
func (q *Queue) Dequeue(ctx context.Context) (Job, bool) {
	select {
	case job := <-q.ch:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	}
}

func (q *Queue) Depth() int    { return len(q.ch) }
func (q *Queue) Capacity() int { return cap(q.ch) }

// Run starts workers and blocks until ctx is cancelled and every worker has
// returned. A job in flight sees the cancelled context; jobs still queued are
// dropped.
func (q *Queue) Run(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				job, ok := q.Dequeue(ctx)
				if !ok {
					return nil
				}
				q.Process(ctx, job)
			}
		})
	}
	err := g.Wait()
	if n := q.Depth(); n > 0 {
		q.log.Warn("sync queue stopped with pending jobs", zap.Int("pending", n))
	}
	return err
}

// Process runs one job with retries and logs the outcome.
func (q *Queue) Process(ctx context.Context, job Job) error {
	h, ok := q.handlers[job.Kind]
	if !ok {
		return fmt.Errorf("no handler for %s", job.Kind)
	}
	log := q.log.With(zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
	opts := q.retry
	opts.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Info("sync job retry", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}
	start := time.Now()
	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		err := h(ctx, job)
		if errors.Is(err, oauth.ErrNotConnected) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	}, opts)
	if err != nil {
		log.Error("sync job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	log.Debug("sync job done", zap.Duration("took", time.Since(start)))
	return nil
}
