// Package activity writes the audit trail and reads it back as a dossier timeline.
package activity

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/models"
)

// Actor types.
const (
	ActorAdmin  = "admin"
	ActorClient = "client"
	ActorSystem = "system"
)

// Resource types.
const (
	ResourceDossier     = "dossier"
	ResourceDocument    = "document"
	ResourceEvent       = "event"
	ResourceNote        = "note"
	ResourceTask        = "task"
	ResourceClient      = "client"
	ResourceAdmin       = "admin"
	ResourceAppointment = "appointment"
	ResourceIntegration = "integration"
)

type Actor struct {
	ID   *uint
	Type string
	Name string
}

func System() Actor { return Actor{Type: ActorSystem, Name: "Système"} }

func AdminActor(a *models.Admin) Actor {
	if a == nil {
		return System()
	}
	id := a.ID
	return Actor{ID: &id, Type: ActorAdmin, Name: a.Name}
}

func ClientActor(c *models.Client) Actor {
	if c == nil {
		return System()
	}
	id := c.ID
	return Actor{ID: &id, Type: ActorClient, Name: c.DisplayName()}
}

// Entry is one row to append.
type Entry struct {
	Actor        Actor
	Action       string
	ResourceType string
	ResourceID   uint
	DossierID    *uint
	Metadata     map[string]any
}

// Logger appends activity rows. Write failures are logged, never returned:
// the audit trail must not break the request that produced it.
type Logger struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLogger(db *gorm.DB, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{db: db, log: log}
}

// Log appends one entry. A nil Logger drops it.
func (l *Logger) Log(ctx context.Context, e Entry) *models.ActivityLog {
	if l == nil {
		return nil
	}
	if e.Actor.Type == "" {
		e.Actor = System()
	}
	row := &models.ActivityLog{
		ActorID:      e.Actor.ID,
		ActorType:    e.Actor.Type,
		ActorName:    e.Actor.Name,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		DossierID:    e.DossierID,
	}
	if e.ResourceType == ResourceDossier && row.DossierID == nil {
		id := e.ResourceID
		row.DossierID = &id
	}
	if len(e.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(e.Metadata)
	}
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		l.log.Error("activity log write failed", zap.String("action", e.Action), zap.Error(err))
		return nil
	}
	return row
}

func ptr(id uint) *uint { return &id }

func (l *Logger) DossierCreated(ctx context.Context, a Actor, d *models.Dossier) {
	l.Log(ctx, Entry{Actor: a, Action: "dossier.created", ResourceType: ResourceDossier, ResourceID: d.ID,
		Metadata: map[string]any{"reference": d.Reference, "intitule": d.Intitule}})
}

func (l *Logger) DossierUpdated(ctx context.Context, a Actor, d *models.Dossier, fields []string) {
	l.Log(ctx, Entry{Actor: a, Action: "dossier.updated", ResourceType: ResourceDossier, ResourceID: d.ID,
		Metadata: map[string]any{"reference": d.Reference, "fields": strings.Join(fields, ",")}})
}

func (l *Logger) DossierStatusChanged(ctx context.Context, a Actor, d *models.Dossier, from, to models.DossierStatus) {
	l.Log(ctx, Entry{Actor: a, Action: "dossier.status_changed", ResourceType: ResourceDossier, ResourceID: d.ID,
		Metadata: map[string]any{"reference": d.Reference, "from": string(from), "to": string(to)}})
}

func (l *Logger) DossierDeleted(ctx context.Context, a Actor, d *models.Dossier) {
	l.Log(ctx, Entry{Actor: a, Action: "dossier.deleted", ResourceType: ResourceDossier, ResourceID: d.ID,
		Metadata: map[string]any{"reference": d.Reference}})
}

func (l *Logger) DossierFoldersSynced(ctx context.Context, dossierID uint, path string) {
	l.Log(ctx, Entry{Actor: System(), Action: "dossier.onedrive_folders", ResourceType: ResourceDossier, ResourceID: dossierID,
		Metadata: map[string]any{"path": path}})
}

func documentEntry(a Actor, action string, doc *models.Document) Entry {
	return Entry{Actor: a, Action: action, ResourceType: ResourceDocument, ResourceID: doc.ID, DossierID: ptr(doc.DossierID),
		Metadata: map[string]any{"nom": doc.Nom, "location": string(doc.Location)}}
}

func (l *Logger) DocumentUploaded(ctx context.Context, a Actor, doc *models.Document) {
	l.Log(ctx, documentEntry(a, "document.uploaded", doc))
}

func (l *Logger) DocumentUpdated(ctx context.Context, a Actor, doc *models.Document) {
	l.Log(ctx, documentEntry(a, "document.updated", doc))
}

func (l *Logger) DocumentDeleted(ctx context.Context, a Actor, doc *models.Document) {
	l.Log(ctx, documentEntry(a, "document.deleted", doc))
}

func (l *Logger) DocumentSynced(ctx context.Context, doc *models.Document) {
	l.Log(ctx, documentEntry(System(), "document.synced_onedrive", doc))
}

func (l *Logger) DocumentImported(ctx context.Context, doc *models.Document) {
	l.Log(ctx, documentEntry(System(), "document.imported_onedrive", doc))
}

func eventEntry(a Actor, action string, ev *models.Evenement) Entry {
	return Entry{Actor: a, Action: action, ResourceType: ResourceEvent, ResourceID: ev.ID, DossierID: ev.DossierID,
		Metadata: map[string]any{"titre": ev.Titre, "date_debut": ev.DateDebut}}
}

func (l *Logger) EventCreated(ctx context.Context, a Actor, ev *models.Evenement) {
	l.Log(ctx, eventEntry(a, "event.created", ev))
}

func (l *Logger) EventUpdated(ctx context.Context, a Actor, ev *models.Evenement) {
	l.Log(ctx, eventEntry(a, "event.updated", ev))
}

func (l *Logger) EventDeleted(ctx context.Context, a Actor, ev *models.Evenement) {
	l.Log(ctx, eventEntry(a, "event.deleted", ev))
}

func (l *Logger) EventSynced(ctx context.Context, ev *models.Evenement) {
	l.Log(ctx, eventEntry(System(), "event.google_synced", ev))
}

func (l *Logger) EventImported(ctx context.Context, ev *models.Evenement) {
	l.Log(ctx, eventEntry(System(), "event.google_imported", ev))
}

func noteEntry(a Actor, action string, n *models.Note) Entry {
	return Entry{Actor: a, Action: action, ResourceType: ResourceNote, ResourceID: n.ID, DossierID: ptr(n.DossierID),
		Metadata: map[string]any{"titre": n.Titre}}
}

func (l *Logger) NoteCreated(ctx context.Context, a Actor, n *models.Note) {
	l.Log(ctx, noteEntry(a, "note.created", n))
}

func (l *Logger) NoteUpdated(ctx context.Context, a Actor, n *models.Note) {
	l.Log(ctx, noteEntry(a, "note.updated", n))
}

func (l *Logger) NoteDeleted(ctx context.Context, a Actor, n *models.Note) {
	l.Log(ctx, noteEntry(a, "note.deleted", n))
}

func (l *Logger) NotePinned(ctx context.Context, a Actor, n *models.Note) {
	action := "note.unpinned"
	if n.Pinned {
		action = "note.pinned"
	}
	l.Log(ctx, noteEntry(a, action, n))
}

func taskEntry(a Actor, action string, t *models.Task) Entry {
	return Entry{Actor: a, Action: action, ResourceType: ResourceTask, ResourceID: t.ID, DossierID: ptr(t.DossierID),
		Metadata: map[string]any{"titre": t.Titre, "status": string(t.Status), "priority": string(t.Priority)}}
}

func (l *Logger) TaskCreated(ctx context.Context, a Actor, t *models.Task) {
	l.Log(ctx, taskEntry(a, "task.created", t))
}

func (l *Logger) TaskUpdated(ctx context.Context, a Actor, t *models.Task) {
	l.Log(ctx, taskEntry(a, "task.updated", t))
}

func (l *Logger) TaskCompleted(ctx context.Context, a Actor, t *models.Task) {
	l.Log(ctx, taskEntry(a, "task.completed", t))
}

func (l *Logger) TaskReopened(ctx context.Context, a Actor, t *models.Task) {
	l.Log(ctx, taskEntry(a, "task.reopened", t))
}

func (l *Logger) TaskDeleted(ctx context.Context, a Actor, t *models.Task) {
	l.Log(ctx, taskEntry(a, "task.deleted", t))
}

func appointmentEntry(a Actor, action string, r *models.AppointmentRequest) Entry {
	return Entry{Actor: a, Action: action, ResourceType: ResourceAppointment, ResourceID: r.ID, DossierID: r.DossierID,
		Metadata: map[string]any{"objet": r.Objet, "status": string(r.Status)}}
}

func (l *Logger) AppointmentRequested(ctx context.Context, a Actor, r *models.AppointmentRequest) {
	l.Log(ctx, appointmentEntry(a, "appointment.requested", r))
}

func (l *Logger) AppointmentAccepted(ctx context.Context, a Actor, r *models.AppointmentRequest) {
	l.Log(ctx, appointmentEntry(a, "appointment.accepted", r))
}

func (l *Logger) AppointmentRefused(ctx context.Context, a Actor, r *models.AppointmentRequest) {
	l.Log(ctx, appointmentEntry(a, "appointment.refused", r))
}

func (l *Logger) ClientCreated(ctx context.Context, a Actor, c *models.Client) {
	l.Log(ctx, Entry{Actor: a, Action: "client.created", ResourceType: ResourceClient, ResourceID: c.ID,
		Metadata: map[string]any{"nom": c.DisplayName()}})
}

func (l *Logger) ClientUpdated(ctx context.Context, a Actor, c *models.Client, action string) {
	l.Log(ctx, Entry{Actor: a, Action: "client." + action, ResourceType: ResourceClient, ResourceID: c.ID,
		Metadata: map[string]any{"nom": c.DisplayName()}})
}

func (l *Logger) AdminChanged(ctx context.Context, a Actor, target *models.Admin, action string) {
	l.Log(ctx, Entry{Actor: a, Action: "admin." + action, ResourceType: ResourceAdmin, ResourceID: target.ID,
		Metadata: map[string]any{"nom": target.Name, "email": target.Email}})
}

// integrationPrefix gives OneDrive and Google actions their own namespace.
func integrationPrefix(service string) string {
	if service == models.ServiceGoogleCalendar {
		return "google"
	}
	return service
}

func (l *Logger) IntegrationConnected(ctx context.Context, a Actor, service, account string) {
	l.Log(ctx, Entry{Actor: a, Action: integrationPrefix(service) + ".connected", ResourceType: ResourceIntegration,
		Metadata: map[string]any{"service": service, "account": account}})
}

func (l *Logger) IntegrationDisconnected(ctx context.Context, a Actor, service string) {
	l.Log(ctx, Entry{Actor: a, Action: integrationPrefix(service) + ".disconnected", ResourceType: ResourceIntegration,
		Metadata: map[string]any{"service": service}})
}

func (l *Logger) SyncCompleted(ctx context.Context, s *models.SyncLog) {
	l.Log(ctx, Entry{Actor: System(), Action: integrationPrefix(s.Type) + ".sync", ResourceType: ResourceIntegration, ResourceID: s.ID,
		Metadata: map[string]any{
			"status": s.Status, "mode": s.Mode,
			"created": s.Created, "updated": s.Updated, "deleted": s.Deleted, "errors": s.Errors,
		}})
}
