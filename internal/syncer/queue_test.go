package syncer

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

func fastRetry() retry.Options {
	return retry.Options{MaxRetries: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
}

func TestTryEnqueue(t *testing.T) {
	q := NewQueue(1, fastRetry(), zap.NewNop())
	assert.False(t, q.TryEnqueue(Job{Kind: KindEventPush}), "no handler")

	q.Handle(KindEventPush, func(context.Context, Job) error { return nil })
	assert.True(t, q.TryEnqueue(Job{Kind: KindEventPush, EventID: 1}))
	assert.False(t, q.TryEnqueue(Job{Kind: KindEventPush, EventID: 2}), "full")
	assert.Equal(t, 1, q.Depth())
	assert.Equal(t, 1, q.Capacity())

	job, ok := q.Dequeue(context.Background())
	require.True(t, ok)
	assert.NotEmpty(t, job.ID)
	assert.False(t, job.EnqueuedAt.IsZero())
	assert.Equal(t, uint(1), job.EventID)
}

func TestProcessRetries(t *testing.T) {
	q := NewQueue(1, fastRetry(), zap.NewNop())
	calls := 0
	q.Handle(KindDocumentUpload, func(context.Context, Job) error {
		calls++
		if calls < 3 {
			return &retry.HTTPError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, q.Process(context.Background(), Job{Kind: KindDocumentUpload}))
	assert.Equal(t, 3, calls)
}

func TestProcessDoesNotRetryDisconnected(t *testing.T) {
	q := NewQueue(1, fastRetry(), zap.NewNop())
	calls := 0
	q.Handle(KindEventPush, func(context.Context, Job) error {
		calls++
		return oauth.ErrNotConnected
	})
	err := q.Process(context.Background(), Job{Kind: KindEventPush})
	assert.ErrorIs(t, err, oauth.ErrNotConnected)
	assert.Equal(t, 1, calls)
}

func TestProcessGivesUpAfterMaxRetries(t *testing.T) {
	q := NewQueue(1, fastRetry(), zap.NewNop())
	calls := 0
	boom := errors.New("network down")
	q.Handle(KindEventDelete, func(context.Context, Job) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, q.Process(context.Background(), Job{Kind: KindEventDelete}), boom)
	assert.Equal(t, 4, calls)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	q := NewQueue(8, fastRetry(), zap.NewNop())
	var done atomic.Int32
	q.Handle(KindDossierFolders, func(context.Context, Job) error {
		done.Add(1)
		return nil
	})
	for i := 0; i < 5; i++ {
		require.True(t, q.TryEnqueue(Job{Kind: KindDossierFolders, DossierID: uint(i)}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- q.Run(ctx, 2) }()

	assert.Eventually(t, func() bool { return done.Load() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

type mode bool

func (m mode) AutoSync(context.Context) bool { return bool(m) }

func TestEnqueuerHonoursSyncMode(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(16, fastRetry(), zap.NewNop())
	for _, k := range []Kind{KindDocumentUpload, KindDocumentDelete, KindDocumentRename, KindDossierFolders, KindEventPush, KindEventDelete} {
		q.Handle(k, func(context.Context, Job) error { return nil })
	}

	manual := NewEnqueuer(q, mode(false), mode(false), nil)
	manual.DocumentUploaded(ctx, &sampleDocument)
	manual.EventSaved(ctx, &sampleEvent)
	assert.Equal(t, 0, q.Depth())

	e := NewEnqueuer(q, mode(true), mode(true), nil)
	e.DocumentUploaded(ctx, &sampleDocument)
	e.DocumentDeleted(ctx, &sampleDocument) // no remote id yet
	e.EventSaved(ctx, &sampleEvent)
	e.EventDeleted(ctx, &sampleEvent) // never pushed
	assert.Equal(t, 2, q.Depth())

	j, _ := q.Dequeue(ctx)
	assert.Equal(t, KindDocumentUpload, j.Kind)
	j, _ = q.Dequeue(ctx)
	assert.Equal(t, KindEventPush, j.Kind)

	// nil sources mean the integration is not wired
	none := NewEnqueuer(q, nil, nil, nil)
	none.DossierSaved(ctx, &sampleDossier)
	assert.Equal(t, 0, q.Depth())
}

var (
	sampleDossier  = models.Dossier{ID: 3}
	sampleDocument = models.Document{ID: 1, DossierID: 3, FilePath: "dossiers/3/a.pdf"}
	sampleEvent    = models.Evenement{ID: 2, SyncGoogle: true}
)
