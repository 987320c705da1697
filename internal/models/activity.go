package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is an append-only audit row.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ActorID   *uint  `json:"actor_id,omitempty"`
	ActorType string `gorm:"size:20;not null" json:"actor_type"` // "admin", "client" ou "system"
	ActorName string `gorm:"size:255" json:"actor_name,omitempty"`

	Action       string `gorm:"size:100;not null;index" json:"action"`
	ResourceType string `gorm:"size:50;not null;index:idx_activity_resource" json:"resource_type"`
	ResourceID   uint   `gorm:"index:idx_activity_resource" json:"resource_id"`
	// DossierID is filled at write time for every resource owned by a dossier.
	DossierID *uint `gorm:"index" json:"dossier_id,omitempty"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}
