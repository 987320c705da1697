package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/validation"
)

type NoteInput struct {
	Titre   string `json:"titre"`
	Contenu string `json:"contenu"`
	Pinned  *bool  `json:"pinned"`
}

func (in *NoteInput) validate() error {
	v := make(validation.Violations)
	in.Titre = strings.TrimSpace(in.Titre)
	validation.MaxLen("titre", in.Titre, 255, v)
	validation.Required("contenu", in.Contenu, v)
	return invalid(v)
}

type NoteService struct {
	db       *gorm.DB
	activity *activity.Logger
}

func NewNoteService(db *gorm.DB, act *activity.Logger) *NoteService {
	return &NoteService{db: db, activity: act}
}

// List returns pinned notes first, then newest first.
func (s *NoteService) List(ctx context.Context, dossierID uint) ([]models.Note, error) {
	var out []models.Note
	err := s.db.WithContext(ctx).Preload("Admin").Where("dossier_id = ?", dossierID).
		Order("pinned DESC, created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *NoteService) Get(ctx context.Context, id uint) (*models.Note, error) {
	var n models.Note
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NoteService) Create(ctx context.Context, actor activity.Actor, dossierID uint, in NoteInput) (*models.Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ?", dossierID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	n := models.Note{DossierID: dossierID, AdminID: actor.ID, Titre: in.Titre, Contenu: in.Contenu}
	setBool(&n.Pinned, in.Pinned)
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}
	s.activity.NoteCreated(ctx, actor, &n)
	return &n, nil
}

func (s *NoteService) Update(ctx context.Context, actor activity.Actor, id uint, in NoteInput) (*models.Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Titre, n.Contenu = in.Titre, in.Contenu
	setBool(&n.Pinned, in.Pinned)
	if err := s.db.WithContext(ctx).Model(n).Updates(map[string]any{
		"titre": n.Titre, "contenu": n.Contenu, "pinned": n.Pinned,
	}).Error; err != nil {
		return nil, err
	}
	s.activity.NoteUpdated(ctx, actor, n)
	return n, nil
}

// TogglePin flips the pinned flag.
func (s *NoteService) TogglePin(ctx context.Context, actor activity.Actor, id uint) (*models.Note, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Pinned = !n.Pinned
	if err := s.db.WithContext(ctx).Model(n).Update("pinned", n.Pinned).Error; err != nil {
		return nil, err
	}
	s.activity.NotePinned(ctx, actor, n)
	return n, nil
}

func (s *NoteService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Note{}, id).Error; err != nil {
		return err
	}
	s.activity.NoteDeleted(ctx, actor, n)
	return nil
}
