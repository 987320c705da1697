package models

import (
	"strings"
	"time"
)

// Client is a customer of the firm with access to the client portal.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Civilite      string `gorm:"size:20" json:"civilite,omitempty"`
	Nom           string `gorm:"size:255;not null" json:"nom"`
	Prenom        string `gorm:"size:255" json:"prenom,omitempty"`
	RaisonSociale string `gorm:"size:255" json:"raison_sociale,omitempty"`
	Email         string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Telephone     string `gorm:"size:50" json:"telephone,omitempty"`
	Adresse       string `gorm:"size:500" json:"adresse,omitempty"`
	CodePostal    string `gorm:"size:20" json:"code_postal,omitempty"`
	Ville         string `gorm:"size:100" json:"ville,omitempty"`

	Password string `gorm:"size:255;not null" json:"-"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	TwoFactorSecret  string `gorm:"size:64" json:"-"`
	TwoFactorEnabled bool   `gorm:"not null" json:"two_factor_enabled"`

	// Permissions
	CanUpload             bool `gorm:"not null" json:"can_upload"`
	CanRequestAppointment bool `gorm:"not null" json:"can_request_appointment"`
	CanViewSensitiveDocs  bool `gorm:"not null" json:"can_view_sensitive_docs"`

	ResponsableID *uint  `gorm:"index" json:"responsable_id,omitempty"`
	Responsable   *Admin `gorm:"foreignKey:ResponsableID;constraint:OnDelete:SET NULL" json:"responsable,omitempty"`

	// Notification preferences
	NotifyDocuments    bool `gorm:"not null" json:"notify_documents"`
	NotifyEvents       bool `gorm:"not null" json:"notify_events"`
	NotifyAppointments bool `gorm:"not null" json:"notify_appointments"`

	OneDriveFolderID string `gorm:"column:onedrive_folder_id;size:255" json:"onedrive_folder_id,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// DisplayName is the company name for legal persons, "Nom Prénom" otherwise.
func (c *Client) DisplayName() string {
	if s := strings.TrimSpace(c.RaisonSociale); s != "" {
		return s
	}
	return strings.TrimSpace(c.Nom + " " + c.Prenom)
}
