package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/validation"
)

// AppointmentInput is what a client submits from the portal.
type AppointmentInput struct {
	DossierID     *uint      `json:"dossier_id"`
	Objet         string     `json:"objet"`
	Message       string     `json:"message"`
	DateSouhaitee *time.Time `json:"date_souhaitee"`
	Modalite      string     `json:"modalite"`
}

// AcceptInput schedules the meeting of an accepted request.
type AcceptInput struct {
	DateDebut     time.Time `json:"date_debut"`
	DateFin       time.Time `json:"date_fin"`
	Lieu          string    `json:"lieu"`
	Reponse       string    `json:"reponse"`
	VisibleClient *bool     `json:"visible_client"`
}

type AppointmentService struct {
	db       *gorm.DB
	events   *EventService
	activity *activity.Logger
	now      func() time.Time
}

func NewAppointmentService(db *gorm.DB, events *EventService, act *activity.Logger) *AppointmentService {
	return &AppointmentService{db: db, events: events, activity: act, now: time.Now}
}

// Create records a request from the client. The dossier, when given, must be
// one of the client's.
func (s *AppointmentService) Create(ctx context.Context, c *models.Client, in AppointmentInput) (*models.AppointmentRequest, error) {
	if !c.CanRequestAppointment {
		return nil, ErrAppointmentNotAllowed
	}
	v := make(validation.Violations)
	in.Objet = strings.TrimSpace(in.Objet)
	validation.Required("objet", in.Objet, v)
	validation.MaxLen("objet", in.Objet, 255, v)
	validation.MaxLen("message", in.Message, 5000, v)
	if in.Modalite != "" {
		validation.OneOf("modalite", in.Modalite, models.AppointmentModalites, v)
	}
	if in.DateSouhaitee != nil && in.DateSouhaitee.Before(s.now()) {
		v["date_souhaitee"] = "date_in_past"
	}
	if err := invalid(v); err != nil {
		return nil, err
	}
	if in.DossierID != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Dossier{}).
			Where("id = ? AND client_id = ?", *in.DossierID, c.ID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, invalid(validation.Violations{"dossier_id": "invalid_value"})
		}
	}
	r := models.AppointmentRequest{
		ClientID:      c.ID,
		DossierID:     in.DossierID,
		Objet:         in.Objet,
		Message:       in.Message,
		DateSouhaitee: in.DateSouhaitee,
		Modalite:      in.Modalite,
		Status:        models.AppointmentEnAttente,
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, err
	}
	s.activity.AppointmentRequested(ctx, activity.ClientActor(c), &r)
	return &r, nil
}

// ListForClient returns the client's own requests, newest first.
func (s *AppointmentService) ListForClient(ctx context.Context, clientID uint) ([]models.AppointmentRequest, error) {
	var out []models.AppointmentRequest
	err := s.db.WithContext(ctx).Preload("Dossier").Where("client_id = ?", clientID).
		Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// List returns one page of requests, pending first.
func (s *AppointmentService) List(ctx context.Context, status string, f ListFilter) ([]models.AppointmentRequest, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.AppointmentRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.AppointmentRequest
	err := q.Preload("Client").Preload("Dossier").
		Order(clause.Expr{SQL: "CASE WHEN status = ? THEN 0 ELSE 1 END", Vars: []any{models.AppointmentEnAttente}}).
		Order("created_at DESC").
		Offset(f.Offset).Limit(f.limit()).
		Find(&out).Error
	return out, total, err
}

func (s *AppointmentService) Get(ctx context.Context, id uint) (*models.AppointmentRequest, error) {
	var r models.AppointmentRequest
	if err := s.db.WithContext(ctx).Preload("Client").Preload("Dossier").First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *AppointmentService) pending(ctx context.Context, id uint) (*models.AppointmentRequest, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.AppointmentEnAttente {
		return nil, ErrAlreadyProcessed
	}
	return r, nil
}

// mark moves a pending request to its final status. The conditional update
// makes a concurrent second answer fail with ErrAlreadyProcessed.
func (s *AppointmentService) mark(tx *gorm.DB, r *models.AppointmentRequest) error {
	res := tx.Model(&models.AppointmentRequest{}).
		Where("id = ? AND status = ?", r.ID, models.AppointmentEnAttente).
		Updates(map[string]any{
			"status":        r.Status,
			"reponse_admin": r.ReponseAdmin,
			"traite_par_id": r.TraiteParID,
			"traite_le":     r.TraiteLe,
			"evenement_id":  r.EvenementID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// Accept schedules the meeting as an agenda entry visible to the client and
// closes the request.
func (s *AppointmentService) Accept(ctx context.Context, actor activity.Actor, id uint, in AcceptInput) (*models.AppointmentRequest, *models.Evenement, error) {
	r, err := s.pending(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if in.DateDebut.IsZero() && r.DateSouhaitee != nil {
		in.DateDebut = *r.DateSouhaitee
	}
	visible := true
	if in.VisibleClient != nil {
		visible = *in.VisibleClient
	}
	lieu := in.Lieu
	if lieu == "" && r.Modalite != "" && r.Modalite != "cabinet" {
		lieu = r.Modalite
	}
	desc := r.Message
	if r.Client != nil {
		desc = strings.TrimSpace("Demande de " + r.Client.DisplayName() + "\n\n" + r.Message)
	}
	ev, err := s.events.Create(ctx, actor, EventInput{
		DossierID:     r.DossierID,
		Titre:         r.Objet,
		Description:   desc,
		Type:          "rdv",
		DateDebut:     in.DateDebut,
		DateFin:       in.DateFin,
		Lieu:          lieu,
		VisibleClient: visible,
	})
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	r.Status = models.AppointmentAcceptee
	r.ReponseAdmin = in.Reponse
	r.TraiteParID = actor.ID
	r.TraiteLe = &now
	r.EvenementID = &ev.ID
	if err := s.mark(s.db.WithContext(ctx), r); err != nil {
		// The entry was created for a request someone else answered first.
		if delErr := s.events.Delete(ctx, actor, ev.ID); delErr != nil {
			return nil, nil, delErr
		}
		return nil, nil, err
	}
	s.activity.AppointmentAccepted(ctx, actor, r)
	return r, ev, nil
}

// Refuse closes the request with an optional answer for the client.
func (s *AppointmentService) Refuse(ctx context.Context, actor activity.Actor, id uint, reponse string) (*models.AppointmentRequest, error) {
	r, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	r.Status = models.AppointmentRefusee
	r.ReponseAdmin = strings.TrimSpace(reponse)
	r.TraiteParID = actor.ID
	r.TraiteLe = &now
	if err := s.mark(s.db.WithContext(ctx), r); err != nil {
		return nil, err
	}
	s.activity.AppointmentRefused(ctx, actor, r)
	return r, nil
}

// PendingCount feeds the dashboard badge.
func (s *AppointmentService) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AppointmentRequest{}).
		Where("status = ?", models.AppointmentEnAttente).Count(&n).Error
	return n, err
}
