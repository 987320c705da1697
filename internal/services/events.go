package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/syncer"
	"github.com/diewo77/portail-cabinet/validation"
)

// EventInput is the editable part of an agenda entry.
type EventInput struct {
	DossierID      *uint     `json:"dossier_id"`
	Titre          string    `json:"titre"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	DateDebut      time.Time `json:"date_debut"`
	DateFin        time.Time `json:"date_fin"`
	JourneeEntiere bool      `json:"journee_entiere"`
	Lieu           string    `json:"lieu"`
	Adresse        string    `json:"adresse"`
	CodePostal     string    `json:"code_postal"`
	Ville          string    `json:"ville"`
	VisibleClient  bool      `json:"visible_client"`
	SyncGoogle     *bool     `json:"sync_google"`
}

func (in *EventInput) validate() error {
	v := make(validation.Violations)
	in.Titre = strings.TrimSpace(in.Titre)
	validation.Required("titre", in.Titre, v)
	validation.MaxLen("titre", in.Titre, 255, v)
	if in.Type == "" {
		in.Type = "rdv"
	}
	validation.OneOf("type", in.Type, models.EventTypes, v)
	if in.DateDebut.IsZero() {
		v["date_debut"] = "required"
	}
	if in.JourneeEntiere {
		in.DateDebut = startOfDay(in.DateDebut)
		if !in.DateFin.IsZero() {
			in.DateFin = startOfDay(in.DateFin)
		}
	}
	if in.DateFin.IsZero() {
		in.DateFin = in.DateDebut
		if !in.JourneeEntiere {
			in.DateFin = in.DateDebut.Add(time.Hour)
		}
	}
	validation.TimeRange("date_fin", in.DateDebut, in.DateFin, v)
	validation.MaxLen("lieu", in.Lieu, 255, v)
	validation.MaxLen("adresse", in.Adresse, 500, v)
	return invalid(v)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (in *EventInput) apply(ev *models.Evenement) {
	ev.DossierID = in.DossierID
	ev.Titre, ev.Description, ev.Type = in.Titre, in.Description, in.Type
	ev.DateDebut, ev.DateFin, ev.JourneeEntiere = in.DateDebut, in.DateFin, in.JourneeEntiere
	ev.Lieu, ev.Adresse = strings.TrimSpace(in.Lieu), strings.TrimSpace(in.Adresse)
	ev.CodePostal, ev.Ville = strings.TrimSpace(in.CodePostal), strings.TrimSpace(in.Ville)
	ev.VisibleClient = in.VisibleClient
	setBool(&ev.SyncGoogle, in.SyncGoogle)
}

// EventFilter narrows List. A zero range lists everything.
type EventFilter struct {
	From      time.Time
	To        time.Time
	DossierID uint
	Type      string
	// ClientID restricts to visible entries of the client's dossiers.
	ClientID uint
}

type EventService struct {
	db       *gorm.DB
	activity *activity.Logger
	sync     syncer.Dispatcher
}

func NewEventService(db *gorm.DB, act *activity.Logger, sync syncer.Dispatcher) *EventService {
	if sync == nil {
		sync = syncer.Nop{}
	}
	return &EventService{db: db, activity: act, sync: sync}
}

// List returns entries overlapping [From, To), ordered by start.
func (s *EventService) List(ctx context.Context, f EventFilter) ([]models.Evenement, error) {
	q := s.db.WithContext(ctx).Model(&models.Evenement{})
	if !f.From.IsZero() {
		q = q.Where("date_fin >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date_debut < ?", f.To)
	}
	if f.DossierID != 0 {
		q = q.Where("dossier_id = ?", f.DossierID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ClientID != 0 {
		q = q.Where("visible_client = ? AND dossier_id IN (?)", true,
			s.db.Model(&models.Dossier{}).Select("id").Where("client_id = ?", f.ClientID))
	}
	var out []models.Evenement
	return out, q.Preload("Dossier").Order("date_debut ASC, id ASC").Find(&out).Error
}

func (s *EventService) Get(ctx context.Context, id uint) (*models.Evenement, error) {
	var ev models.Evenement
	if err := s.db.WithContext(ctx).Preload("Dossier").First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *EventService) checkDossier(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return invalid(validation.Violations{"dossier_id": "invalid_value"})
	}
	return nil
}

// Create stores the entry and hands the Google copy to the dispatcher. New
// entries are mirrored unless sync_google is explicitly false.
func (s *EventService) Create(ctx context.Context, actor activity.Actor, in EventInput) (*models.Evenement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkDossier(ctx, in.DossierID); err != nil {
		return nil, err
	}
	ev := models.Evenement{SyncGoogle: true, CreatedByID: actor.ID}
	in.apply(&ev)
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.activity.EventCreated(ctx, actor, &ev)
	s.sync.EventSaved(ctx, &ev)
	return &ev, nil
}

// Update rewrites the entry. Turning sync_google off removes the Google copy.
func (s *EventService) Update(ctx context.Context, actor activity.Actor, id uint, in EventInput) (*models.Evenement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkDossier(ctx, in.DossierID); err != nil {
		return nil, err
	}
	wasSynced := ev.SyncGoogle
	in.apply(ev)
	ev.Dossier = nil
	unlinked := wasSynced && !ev.SyncGoogle && ev.GoogleEventID != ""
	remote := *ev
	if unlinked {
		ev.GoogleEventID = ""
		ev.GoogleLastSync = nil
	}
	if err := s.db.WithContext(ctx).Omit("Dossier").Save(ev).Error; err != nil {
		return nil, err
	}
	s.activity.EventUpdated(ctx, actor, ev)
	if unlinked {
		s.sync.EventDeleted(ctx, &remote)
	} else {
		s.sync.EventSaved(ctx, ev)
	}
	return ev, nil
}

func (s *EventService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AppointmentRequest{}).Where("evenement_id = ?", id).Update("evenement_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Evenement{}, id).Error
	})
	if err != nil {
		return err
	}
	s.activity.EventDeleted(ctx, actor, ev)
	s.sync.EventDeleted(ctx, ev)
	return nil
}
