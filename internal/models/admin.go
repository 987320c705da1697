package models

import "time"

// AdminRole distinguishes regular staff from the seeded super admin.
type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "super_admin"
)

// Admin is a member of the firm's staff.
type Admin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string    `gorm:"size:255;not null" json:"name"`
	Email    string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string    `gorm:"size:255;not null" json:"-"` // Hashed, never exposed in JSON
	Role     AdminRole `gorm:"size:20;not null;default:'admin'" json:"role"`
	IsActive bool      `gorm:"not null" json:"is_active"`

	TwoFactorSecret  string `gorm:"size:64" json:"-"`
	TwoFactorEnabled bool   `gorm:"not null" json:"two_factor_enabled"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// IsSuperAdmin reports the protected role.
func (a *Admin) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }
