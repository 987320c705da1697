package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/validation"
)

// ClientInput is the staff-editable part of a client. Nil permission and
// notification fields keep their current value (or the default on create).
type ClientInput struct {
	Civilite      string `json:"civilite"`
	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	RaisonSociale string `json:"raison_sociale"`
	Email         string `json:"email"`
	Telephone     string `json:"telephone"`
	Adresse       string `json:"adresse"`
	CodePostal    string `json:"code_postal"`
	Ville         string `json:"ville"`
	Password      string `json:"password"`
	ResponsableID *uint  `json:"responsable_id"`

	IsActive              *bool `json:"is_active"`
	CanUpload             *bool `json:"can_upload"`
	CanRequestAppointment *bool `json:"can_request_appointment"`
	CanViewSensitiveDocs  *bool `json:"can_view_sensitive_docs"`

	NotifyDocuments    *bool `json:"notify_documents"`
	NotifyEvents       *bool `json:"notify_events"`
	NotifyAppointments *bool `json:"notify_appointments"`
}

var civilites = []string{"M.", "Mme", "Me", "Société"}

func (in *ClientInput) validate() error {
	v := make(validation.Violations)
	in.Nom = strings.TrimSpace(in.Nom)
	in.Prenom = strings.TrimSpace(in.Prenom)
	in.RaisonSociale = strings.TrimSpace(in.RaisonSociale)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	validation.Required("nom", in.Nom, v)
	validation.MaxLen("nom", in.Nom, 255, v)
	validation.MaxLen("prenom", in.Prenom, 255, v)
	validation.MaxLen("raison_sociale", in.RaisonSociale, 255, v)
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.OneOf("civilite", in.Civilite, civilites, v)
	validation.MaxLen("telephone", in.Telephone, 50, v)
	validation.MaxLen("code_postal", in.CodePostal, 20, v)
	validation.MinLen("password", in.Password, MinPasswordLength, v)
	return invalid(v)
}

func (in *ClientInput) apply(c *models.Client) {
	c.Civilite, c.Nom, c.Prenom, c.RaisonSociale = in.Civilite, in.Nom, in.Prenom, in.RaisonSociale
	c.Email, c.Telephone = in.Email, strings.TrimSpace(in.Telephone)
	c.Adresse, c.CodePostal, c.Ville = strings.TrimSpace(in.Adresse), strings.TrimSpace(in.CodePostal), strings.TrimSpace(in.Ville)
	c.ResponsableID = in.ResponsableID
	setBool(&c.IsActive, in.IsActive)
	setBool(&c.CanUpload, in.CanUpload)
	setBool(&c.CanRequestAppointment, in.CanRequestAppointment)
	setBool(&c.CanViewSensitiveDocs, in.CanViewSensitiveDocs)
	setBool(&c.NotifyDocuments, in.NotifyDocuments)
	setBool(&c.NotifyEvents, in.NotifyEvents)
	setBool(&c.NotifyAppointments, in.NotifyAppointments)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// ClientSummary adds the dossier count to a client row.
type ClientSummary struct {
	models.Client
	DossiersCount int64 `json:"dossiers_count"`
}

type ClientService struct {
	db       *gorm.DB
	activity *activity.Logger
}

func NewClientService(db *gorm.DB, act *activity.Logger) *ClientService {
	return &ClientService{db: db, activity: act}
}

// ClientFilter narrows List. Status is "active" or "inactive".
type ClientFilter struct {
	ListFilter
	ResponsableID uint
}

func (s *ClientService) List(ctx context.Context, f ClientFilter) ([]ClientSummary, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Client{})
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		q = q.Where(`(LOWER(nom) LIKE ? ESCAPE '\' OR LOWER(prenom) LIKE ? ESCAPE '\' OR LOWER(raison_sociale) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, p, p, p, p)
	}
	switch f.Status {
	case "active":
		q = q.Where("is_active = ?", true)
	case "inactive":
		q = q.Where("is_active = ?", false)
	}
	if f.ResponsableID != 0 {
		q = q.Where("responsable_id = ?", f.ResponsableID)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Client
	if err := q.Preload("Responsable").Order("nom ASC, prenom ASC, id ASC").Limit(f.limit()).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	counts := map[uint]int64{}
	if len(rows) > 0 {
		ids := make([]uint, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		var agg []struct {
			ClientID uint
			N        int64
		}
		if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Select("client_id, COUNT(*) AS n").
			Where("client_id IN ?", ids).Group("client_id").Scan(&agg).Error; err != nil {
			return nil, 0, err
		}
		for _, a := range agg {
			counts[a.ClientID] = a.N
		}
	}
	out := make([]ClientSummary, len(rows))
	for i := range rows {
		out[i] = ClientSummary{Client: rows[i], DossiersCount: counts[rows[i].ID]}
	}
	return out, total, nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).Preload("Responsable").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) checkResponsable(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return invalid(validation.Violations{"responsable_id": "invalid_value"})
	}
	return nil
}

// Create stores a new client. Without a password a temporary one is
// generated and returned so staff can hand it over.
func (s *ClientService) Create(ctx context.Context, actor activity.Actor, in ClientInput) (*models.Client, string, error) {
	if err := in.validate(); err != nil {
		return nil, "", err
	}
	if err := s.checkResponsable(ctx, in.ResponsableID); err != nil {
		return nil, "", err
	}
	c := models.Client{
		IsActive:           true,
		NotifyDocuments:    true,
		NotifyEvents:       true,
		NotifyAppointments: true,
	}
	in.apply(&c)
	temp := ""
	pw := in.Password
	if pw == "" {
		var err error
		if temp, err = TemporaryPassword(); err != nil {
			return nil, "", err
		}
		pw = temp
	}
	hash, err := hashPassword(pw)
	if err != nil {
		return nil, "", err
	}
	c.Password = hash
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		if isDuplicate(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create client: %w", err)
	}
	s.activity.ClientCreated(ctx, actor, &c)
	return &c, temp, nil
}

func (s *ClientService) Update(ctx context.Context, actor activity.Actor, id uint, in ClientInput) (*models.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkResponsable(ctx, in.ResponsableID); err != nil {
		return nil, err
	}
	in.apply(c)
	if in.Password != "" {
		if c.Password, err = hashPassword(in.Password); err != nil {
			return nil, err
		}
	}
	c.Responsable = nil
	if err := s.db.WithContext(ctx).Omit("Responsable").Save(c).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.activity.ClientUpdated(ctx, actor, c, "updated")
	return c, nil
}

// Delete refuses while the client still owns dossiers.
func (s *ClientService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Where("client_id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrClientHasDossiers
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.AppointmentRequest{}).Error; err != nil {
			return err
		}
		if err := forget(tx, FavoriteClient, id); err != nil {
			return err
		}
		return tx.Delete(&models.Client{}, id).Error
	})
	if err != nil {
		return err
	}
	s.activity.ClientUpdated(ctx, actor, c, "deleted")
	return nil
}

func (s *ClientService) ToggleStatus(ctx context.Context, actor activity.Actor, id uint) (*models.Client, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.IsActive = !c.IsActive
	if err := s.db.WithContext(ctx).Model(c).Update("is_active", c.IsActive).Error; err != nil {
		return nil, err
	}
	action := "deactivated"
	if c.IsActive {
		action = "activated"
	}
	s.activity.ClientUpdated(ctx, actor, c, action)
	return c, nil
}

// ResetPassword stores a new random password, disables 2FA so the client
// can log back in, and returns the password once.
func (s *ClientService) ResetPassword(ctx context.Context, actor activity.Actor, id uint) (string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	pw, err := TemporaryPassword()
	if err != nil {
		return "", err
	}
	hash, err := hashPassword(pw)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(c).Updates(map[string]any{
		"password":           hash,
		"two_factor_enabled": false,
		"two_factor_secret":  "",
	}).Error; err != nil {
		return "", err
	}
	s.activity.ClientUpdated(ctx, actor, c, "password_reset")
	return pw, nil
}

// ProfileInput is what a client edits from the portal.
type ProfileInput struct {
	Telephone          *string `json:"telephone"`
	Adresse            *string `json:"adresse"`
	CodePostal         *string `json:"code_postal"`
	Ville              *string `json:"ville"`
	NotifyDocuments    *bool   `json:"notify_documents"`
	NotifyEvents       *bool   `json:"notify_events"`
	NotifyAppointments *bool   `json:"notify_appointments"`
}

// UpdateProfile applies the client's own contact details and notification preferences.
func (s *ClientService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*models.Client, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := make(validation.Violations)
	setString := func(field string, dst *string, val *string, max int) {
		if val == nil {
			return
		}
		t := strings.TrimSpace(*val)
		validation.MaxLen(field, t, max, v)
		*dst = t
	}
	setString("telephone", &c.Telephone, in.Telephone, 50)
	setString("adresse", &c.Adresse, in.Adresse, 500)
	setString("code_postal", &c.CodePostal, in.CodePostal, 20)
	setString("ville", &c.Ville, in.Ville, 100)
	if err := invalid(v); err != nil {
		return nil, err
	}
	setBool(&c.NotifyDocuments, in.NotifyDocuments)
	setBool(&c.NotifyEvents, in.NotifyEvents)
	setBool(&c.NotifyAppointments, in.NotifyAppointments)
	if err := s.db.WithContext(ctx).Model(c).Updates(map[string]any{
		"telephone":           c.Telephone,
		"adresse":             c.Adresse,
		"code_postal":         c.CodePostal,
		"ville":               c.Ville,
		"notify_documents":    c.NotifyDocuments,
		"notify_events":       c.NotifyEvents,
		"notify_appointments": c.NotifyAppointments,
	}).Error; err != nil {
		return nil, err
	}
	s.activity.ClientUpdated(ctx, activity.ClientActor(c), c, "profile_updated")
	return c, nil
}
