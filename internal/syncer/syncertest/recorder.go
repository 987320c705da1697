// Package syncertest provides a recording dispatcher for tests of the
// services that notify the sync layer.
package syncertest

import (
	"context"

	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/syncer"
)

var _ syncer.Dispatcher = (*Recorder)(nil)

// Recorder is a syncer.Dispatcher that keeps every notification as the job
// the queue would have received.
type Recorder struct {
	Jobs []syncer.Job
}

func (r *Recorder) DossierSaved(_ context.Context, d *models.Dossier) {
	r.Jobs = append(r.Jobs, syncer.Job{Kind: syncer.KindDossierFolders, DossierID: d.ID})
}

func (r *Recorder) DocumentUploaded(_ context.Context, doc *models.Document) {
	r.Jobs = append(r.Jobs, syncer.Job{Kind: syncer.KindDocumentUpload, DocumentID: doc.ID, DossierID: doc.DossierID})
}

func (r *Recorder) DocumentRenamed(_ context.Context, doc *models.Document) {
	r.Jobs = append(r.Jobs, syncer.Job{Kind: syncer.KindDocumentRename, DocumentID: doc.ID, RemoteID: doc.OneDriveFileID})
}

func (r *Recorder) DocumentDeleted(_ context.Context, doc *models.Document) {
	r.Jobs = append(r.Jobs, syncer.Job{Kind: syncer.KindDocumentDelete, DocumentID: doc.ID, RemoteID: doc.OneDriveFileID})
}

func (r *Recorder) EventSaved(_ context.Context, ev *models.Evenement) {
	r.Jobs = append(r.Jobs, syncer.Job{Kind: syncer.KindEventPush, EventID: ev.ID})
}

func (r *Recorder) EventDeleted(_ context.Context, ev *models.Evenement) {
	r.Jobs = append(r.Jobs, syncer.Job{Kind: syncer.KindEventDelete, EventID: ev.ID, RemoteID: ev.GoogleEventID})
}

// Kinds lists the recorded job kinds in order.
func (r *Recorder) Kinds() []syncer.Kind {
	out := make([]syncer.Kind, len(r.Jobs))
	for i, j := range r.Jobs {
		out[i] = j.Kind
	}
	return out
}
