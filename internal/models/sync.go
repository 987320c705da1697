package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ServiceOneDrive       = "onedrive"
	ServiceGoogleCalendar = "google_calendar"
)

const (
	SyncModeAuto   = "auto"
	SyncModeManual = "manual"
)

// SyncLog records one synchronization run.
type SyncLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Type       string `gorm:"size:30;not null;index" json:"type"`
	Mode       string `gorm:"size:10;not null" json:"mode"`
	Status     string `gorm:"size:10;not null" json:"status"` // "success", "partial" ou "error"
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
	Errors     int    `json:"errors"`
	Message    string `gorm:"size:1000" json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`

	Details datatypes.JSONMap `json:"details,omitempty"`
}

// OAuthToken stores the credentials of one connected integration.
type OAuthToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Service      string    `gorm:"size:30;uniqueIndex;not null" json:"service"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	TokenType    string    `gorm:"size:20" json:"-"`
	Expiry       time.Time `json:"expiry"`

	AccountEmail string `gorm:"size:255" json:"account_email,omitempty"`
	AccountName  string `gorm:"size:255" json:"account_name,omitempty"`

	// SelectedResourceID is the Google calendar id; unused for OneDrive.
	SelectedResourceID string `gorm:"size:255" json:"selected_resource_id,omitempty"`
	SyncMode           string `gorm:"size:10;not null;default:'auto'" json:"sync_mode"`
	ConnectedByID      *uint  `json:"connected_by_id,omitempty"`
}

func (OAuthToken) TableName() string { return "oauth_tokens" }
