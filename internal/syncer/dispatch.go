package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Dispatcher hands integration work off after a domain write. Implementations
// never block and never fail the caller.
type Dispatcher interface {
	DossierSaved(ctx context.Context, d *models.Dossier)
	DocumentUploaded(ctx context.Context, doc *models.Document)
	DocumentRenamed(ctx context.Context, doc *models.Document)
	DocumentDeleted(ctx context.Context, doc *models.Document)
	EventSaved(ctx context.Context, ev *models.Evenement)
	EventDeleted(ctx context.Context, ev *models.Evenement)
}

// ModeSource tells whether an integration is connected in automatic mode.
// *oauth.Service implements it.
type ModeSource interface {
	AutoSync(ctx context.Context) bool
}

// Enqueuer is the Dispatcher backed by the job queue. Jobs are only queued
// for integrations connected in auto mode; manual mode waits for a full sync.
type Enqueuer struct {
	queue    *Queue
	onedrive ModeSource
	google   ModeSource
	log      *zap.Logger
}

// NewEnqueuer accepts nil sources for integrations that are not wired.
func NewEnqueuer(q *Queue, onedrive, google ModeSource, log *zap.Logger) *Enqueuer {
	return &Enqueuer{queue: q, onedrive: onedrive, google: google, log: logging.OrNop(log)}
}

func auto(ctx context.Context, src ModeSource) bool {
	return src != nil && src.AutoSync(ctx)
}

func (e *Enqueuer) push(job Job) {
	if !e.queue.TryEnqueue(job) {
		e.log.Warn("sync job not queued", zap.String("kind", string(job.Kind)))
	}
}

func (e *Enqueuer) DossierSaved(ctx context.Context, d *models.Dossier) {
	if auto(ctx, e.onedrive) {
		e.push(Job{Kind: KindDossierFolders, DossierID: d.ID})
	}
}

func (e *Enqueuer) DocumentUploaded(ctx context.Context, doc *models.Document) {
	if doc.FilePath != "" && auto(ctx, e.onedrive) {
		e.push(Job{Kind: KindDocumentUpload, DocumentID: doc.ID, DossierID: doc.DossierID})
	}
}

func (e *Enqueuer) DocumentRenamed(ctx context.Context, doc *models.Document) {
	if doc.OneDriveFileID != "" && auto(ctx, e.onedrive) {
		e.push(Job{Kind: KindDocumentRename, DocumentID: doc.ID, DossierID: doc.DossierID, RemoteID: doc.OneDriveFileID})
	}
}

func (e *Enqueuer) DocumentDeleted(ctx context.Context, doc *models.Document) {
	if doc.OneDriveFileID != "" && auto(ctx, e.onedrive) {
		e.push(Job{Kind: KindDocumentDelete, DocumentID: doc.ID, DossierID: doc.DossierID, RemoteID: doc.OneDriveFileID})
	}
}

func (e *Enqueuer) EventSaved(ctx context.Context, ev *models.Evenement) {
	if ev.SyncGoogle && auto(ctx, e.google) {
		e.push(Job{Kind: KindEventPush, EventID: ev.ID})
	}
}

func (e *Enqueuer) EventDeleted(ctx context.Context, ev *models.Evenement) {
	if ev.GoogleEventID != "" && auto(ctx, e.google) {
		e.push(Job{Kind: KindEventDelete, EventID: ev.ID, RemoteID: ev.GoogleEventID})
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) DossierSaved(context.Context, *models.Dossier)      {}
func (Nop) DocumentUploaded(context.Context, *models.Document) {}
func (Nop) DocumentRenamed(context.Context, *models.Document)  {}
func (Nop) DocumentDeleted(context.Context, *models.Document)  {}
func (Nop) EventSaved(context.Context, *models.Evenement)      {}
func (Nop) EventDeleted(context.Context, *models.Evenement)    {}
