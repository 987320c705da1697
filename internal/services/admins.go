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

// AdminInput is the editable part of a staff account. Role only accepts
// "admin": the super admin exists through the seed alone.
type AdminInput struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     models.AdminRole `json:"role"`
	IsActive *bool            `json:"is_active"`
}

func (in *AdminInput) validate(creating bool) error {
	v := make(validation.Violations)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	if creating {
		validation.Required("password", in.Password, v)
	}
	validation.MinLen("password", in.Password, MinPasswordLength, v)
	validation.OneOf("role", string(in.Role), []string{string(models.RoleAdmin), string(models.RoleSuperAdmin)}, v)
	return invalid(v)
}

// AdminService manages staff accounts. Every mutation refuses to touch a
// super admin and refuses to grant the role.
type AdminService struct {
	db       *gorm.DB
	activity *activity.Logger
}

func NewAdminService(db *gorm.DB, act *activity.Logger) *AdminService {
	return &AdminService{db: db, activity: act}
}

func (s *AdminService) List(ctx context.Context, f ListFilter) ([]models.Admin, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Admin{})
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, p, p)
	}
	switch f.Status {
	case "active":
		q = q.Where("is_active = ?", true)
	case "inactive":
		q = q.Where("is_active = ?", false)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Admin
	err := q.Order("name ASC, id ASC").Limit(f.limit()).Offset(f.Offset).Find(&out).Error
	return out, total, err
}

func (s *AdminService) Get(ctx context.Context, id uint) (*models.Admin, error) {
	var a models.Admin
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// mutable loads a target an admin may change.
func (s *AdminService) mutable(ctx context.Context, id uint) (*models.Admin, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsSuperAdmin() {
		return nil, ErrSuperAdminProtected
	}
	return a, nil
}

func (s *AdminService) emailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ? AND id <> ?", email, exceptID).Count(&n).Error
	return n > 0, err
}

func (s *AdminService) Create(ctx context.Context, actor activity.Actor, in AdminInput) (*models.Admin, error) {
	if in.Role == models.RoleSuperAdmin {
		return nil, ErrSuperAdminProtected
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}
	if taken, err := s.emailTaken(ctx, in.Email, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	a := models.Admin{Name: in.Name, Email: in.Email, Password: hash, Role: models.RoleAdmin, IsActive: true}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	s.activity.AdminChanged(ctx, actor, &a, "created")
	return &a, nil
}

func (s *AdminService) Update(ctx context.Context, actor activity.Actor, id uint, in AdminInput) (*models.Admin, error) {
	a, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Role == models.RoleSuperAdmin {
		return nil, ErrSuperAdminProtected
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}
	if taken, err := s.emailTaken(ctx, in.Email, a.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	updates := map[string]any{"name": in.Name, "email": in.Email}
	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hash
	}
	if in.IsActive != nil {
		if !*in.IsActive && actor.ID != nil && *actor.ID == a.ID {
			return nil, ErrForbidden
		}
		updates["is_active"] = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Model(a).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.activity.AdminChanged(ctx, actor, a, "updated")
	return s.Get(ctx, id)
}

// Delete removes a staff account. Nobody deletes their own account.
func (s *AdminService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	a, err := s.mutable(ctx, id)
	if err != nil {
		return err
	}
	if actor.ID != nil && *actor.ID == a.ID {
		return ErrForbidden
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("admin_id = ?", a.ID).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Admin{}, a.ID).Error
	})
	if err != nil {
		return err
	}
	s.activity.AdminChanged(ctx, actor, a, "deleted")
	return nil
}

// ToggleStatus flips is_active and returns the updated account.
func (s *AdminService) ToggleStatus(ctx context.Context, actor activity.Actor, id uint) (*models.Admin, error) {
	a, err := s.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != nil && *actor.ID == a.ID {
		return nil, ErrForbidden
	}
	a.IsActive = !a.IsActive
	if err := s.db.WithContext(ctx).Model(a).Update("is_active", a.IsActive).Error; err != nil {
		return nil, err
	}
	action := "deactivated"
	if a.IsActive {
		action = "activated"
	}
	s.activity.AdminChanged(ctx, actor, a, action)
	return a, nil
}

// ResetPassword stores a new random password and returns it once.
func (s *AdminService) ResetPassword(ctx context.Context, actor activity.Actor, id uint) (string, error) {
	a, err := s.mutable(ctx, id)
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
	if err := s.db.WithContext(ctx).Model(a).Update("password", hash).Error; err != nil {
		return "", err
	}
	s.activity.AdminChanged(ctx, actor, a, "password_reset")
	return pw, nil
}
