package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/syncer"
	"github.com/diewo77/portail-cabinet/validation"
)

// DossierInput is the editable part of a dossier.
type DossierInput struct {
	Intitule         string               `json:"intitule"`
	Description      string               `json:"description"`
	Type             string               `json:"type"`
	Status           models.DossierStatus `json:"status"`
	DateOuverture    *time.Time           `json:"date_ouverture"`
	DatePrescription *time.Time           `json:"date_prescription"`
	ClientID         uint                 `json:"client_id"`
	AdminID          *uint                `json:"admin_id"`
}

func (in *DossierInput) validate() error {
	v := make(validation.Violations)
	in.Intitule = strings.TrimSpace(in.Intitule)
	validation.Required("intitule", in.Intitule, v)
	validation.MaxLen("intitule", in.Intitule, 255, v)
	validation.OneOf("status", string(in.Status), models.DossierStatuses, v)
	if in.ClientID == 0 {
		v["client_id"] = "required"
	}
	return invalid(v)
}

// ListFilter is shared by the paginated list operations.
type ListFilter struct {
	Search string
	Status string
	Offset int
	Limit  int
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 100 {
		return 20
	}
	return f.Limit
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// DossierFilter narrows List.
type DossierFilter struct {
	ListFilter
	ClientID uint
	AdminID  uint
}

// BlobStore holds the local copy of documents. *storage.Store implements it.
type BlobStore interface {
	Put(key string, data []byte) error
	Delete(key string) error
}

type DossierService struct {
	db       *gorm.DB
	activity *activity.Logger
	sync     syncer.Dispatcher
	blobs    BlobStore
	log      *zap.Logger
	now      func() time.Time
}

func NewDossierService(db *gorm.DB, act *activity.Logger, sync syncer.Dispatcher, blobs BlobStore, log *zap.Logger) *DossierService {
	if sync == nil {
		sync = syncer.Nop{}
	}
	return &DossierService{db: db, activity: act, sync: sync, blobs: blobs, log: logging.OrNop(log), now: time.Now}
}

const maxReferenceAttempts = 5

// Create assigns the next reference of the opening year, e.g. 2025-001-MAR.
// Concurrent creations racing on a sequence retry on the unique index.
func (s *DossierService) Create(ctx context.Context, actor activity.Actor, in DossierInput) (*models.Dossier, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, in.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid(validation.Violations{"client_id": "invalid_value"})
		}
		return nil, err
	}
	opened := s.now()
	if in.DateOuverture != nil && !in.DateOuverture.IsZero() {
		opened = *in.DateOuverture
	}
	status := in.Status
	if status == "" {
		status = models.DossierOuvert
	}
	d := models.Dossier{
		Intitule:         in.Intitule,
		Description:      in.Description,
		Type:             in.Type,
		Status:           status,
		DateOuverture:    opened,
		DatePrescription: in.DatePrescription,
		ClientID:         client.ID,
		AdminID:          in.AdminID,
	}
	if d.IsClosed() {
		closed := s.now()
		d.DateCloture = &closed
	}
	prefix := ClientPrefix(prefixSource(&client))
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			seq, err := nextSequence(ctx, tx, opened.Year())
			if err != nil {
				return err
			}
			d.ID = 0
			d.Reference = FormatReference(opened.Year(), seq, prefix)
			return tx.Create(&d).Error
		})
		if !isDuplicate(err) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create dossier: %w", err)
	}
	d.Client = &client
	s.activity.DossierCreated(ctx, actor, &d)
	s.sync.DossierSaved(ctx, &d)
	return &d, nil
}

func (s *DossierService) Get(ctx context.Context, id uint) (*models.Dossier, error) {
	var d models.Dossier
	if err := s.db.WithContext(ctx).Preload("Client").Preload("Admin").First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetForClient hides dossiers of other clients behind ErrNotFound.
func (s *DossierService) GetForClient(ctx context.Context, clientID, id uint) (*models.Dossier, error) {
	var d models.Dossier
	if err := s.db.WithContext(ctx).Preload("Admin").Where("client_id = ?", clientID).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DossierService) List(ctx context.Context, f DossierFilter) ([]models.Dossier, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Dossier{})
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.AdminID != 0 {
		q = q.Where("admin_id = ?", f.AdminID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		q = q.Where(`(LOWER(reference) LIKE ? ESCAPE '\' OR LOWER(intitule) LIKE ? ESCAPE '\' OR client_id IN (SELECT id FROM clients WHERE LOWER(nom) LIKE ? ESCAPE '\' OR LOWER(raison_sociale) LIKE ? ESCAPE '\'))`, p, p, p, p)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Dossier
	err := q.Preload("Client").Order("created_at DESC, id DESC").Limit(f.limit()).Offset(f.Offset).Find(&out).Error
	return out, total, err
}

// Update changes the editable fields; the reference never changes.
func (s *DossierService) Update(ctx context.Context, actor activity.Actor, id uint, in DossierInput) (*models.Dossier, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.ClientID != d.ClientID {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", in.ClientID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, invalid(validation.Violations{"client_id": "invalid_value"})
		}
	}
	var changed []string
	set := func(field string, differs bool) {
		if differs {
			changed = append(changed, field)
		}
	}
	set("intitule", d.Intitule != in.Intitule)
	set("description", d.Description != in.Description)
	set("type", d.Type != in.Type)
	set("client_id", d.ClientID != in.ClientID)
	set("admin_id", !sameID(d.AdminID, in.AdminID))
	set("date_prescription", !sameTime(d.DatePrescription, in.DatePrescription))

	d.Intitule, d.Description, d.Type = in.Intitule, in.Description, in.Type
	d.DatePrescription = in.DatePrescription
	if in.DateOuverture != nil && !in.DateOuverture.IsZero() && !in.DateOuverture.Equal(d.DateOuverture) {
		d.DateOuverture = *in.DateOuverture
		changed = append(changed, "date_ouverture")
	}
	if in.ClientID != d.ClientID {
		d.ClientID = in.ClientID
		d.Client = nil
	}
	d.AdminID = in.AdminID
	d.Admin = nil
	from := d.Status
	if in.Status != "" && in.Status != d.Status {
		s.applyStatus(d, in.Status)
	}
	if err := s.db.WithContext(ctx).Omit("Client", "Admin", "Documents", "Notes", "Tasks").Save(d).Error; err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		s.activity.DossierUpdated(ctx, actor, d, changed)
	}
	if from != d.Status {
		s.activity.DossierStatusChanged(ctx, actor, d, from, d.Status)
	}
	if len(changed) > 0 {
		// intitulé or client changes move the OneDrive folder path
		s.sync.DossierSaved(ctx, d)
	}
	return d, nil
}

// ChangeStatus moves a dossier through its lifecycle.
func (s *DossierService) ChangeStatus(ctx context.Context, actor activity.Actor, id uint, status models.DossierStatus) (*models.Dossier, error) {
	v := make(validation.Violations)
	validation.Required("status", string(status), v)
	validation.OneOf("status", string(status), models.DossierStatuses, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := d.Status
	if from == status {
		return d, nil
	}
	s.applyStatus(d, status)
	if err := s.db.WithContext(ctx).Model(d).Updates(map[string]any{
		"status":       d.Status,
		"date_cloture": d.DateCloture,
	}).Error; err != nil {
		return nil, err
	}
	s.activity.DossierStatusChanged(ctx, actor, d, from, status)
	return d, nil
}

// applyStatus sets date_cloture when closing and clears it when reopening.
func (s *DossierService) applyStatus(d *models.Dossier, status models.DossierStatus) {
	d.Status = status
	if d.IsClosed() {
		if d.DateCloture == nil {
			now := s.now()
			d.DateCloture = &now
		}
		return
	}
	d.DateCloture = nil
}

// Delete removes the dossier with everything it owns. Remote copies are
// removed through the dispatcher.
func (s *DossierService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var docs []models.Document
	var events []models.Evenement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dossier_id = ?", id).Find(&docs).Error; err != nil {
			return err
		}
		if err := tx.Where("dossier_id = ?", id).Find(&events).Error; err != nil {
			return err
		}
		for _, m := range []any{&models.Document{}, &models.Note{}, &models.Task{}, &models.Evenement{}} {
			if err := tx.Where("dossier_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.AppointmentRequest{}).Where("dossier_id = ?", id).Update("dossier_id", nil).Error; err != nil {
			return err
		}
		if err := forget(tx, FavoriteDossier, id); err != nil {
			return err
		}
		return tx.Delete(&models.Dossier{}, id).Error
	})
	if err != nil {
		return err
	}
	for i := range docs {
		if docs[i].FilePath != "" && s.blobs != nil {
			if err := s.blobs.Delete(docs[i].FilePath); err != nil {
				s.log.Warn("local document not removed", zap.String("key", docs[i].FilePath), zap.Error(err))
			}
		}
		s.sync.DocumentDeleted(ctx, &docs[i])
	}
	for i := range events {
		s.sync.EventDeleted(ctx, &events[i])
	}
	s.activity.DossierDeleted(ctx, actor, d)
	return nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
