package models

import (
	"strings"
	"time"
)

// Evenement is an agenda entry, optionally linked to a dossier and mirrored to Google Calendar.
type Evenement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DossierID *uint    `gorm:"index" json:"dossier_id,omitempty"`
	Dossier   *Dossier `gorm:"foreignKey:DossierID;constraint:OnDelete:CASCADE" json:"dossier,omitempty"`

	Titre          string    `gorm:"size:255;not null" json:"titre"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Type           string    `gorm:"size:50;not null;default:'rdv'" json:"type"`
	DateDebut      time.Time `gorm:"not null;index" json:"date_debut"`
	DateFin        time.Time `gorm:"not null" json:"date_fin"`
	JourneeEntiere bool      `gorm:"not null" json:"journee_entiere"`

	Lieu       string `gorm:"size:255" json:"lieu,omitempty"`
	Adresse    string `gorm:"size:500" json:"adresse,omitempty"`
	CodePostal string `gorm:"size:20" json:"code_postal,omitempty"`
	Ville      string `gorm:"size:100" json:"ville,omitempty"`

	VisibleClient bool  `gorm:"not null" json:"visible_client"`
	CreatedByID   *uint `json:"created_by_id,omitempty"`

	SyncGoogle     bool       `gorm:"not null" json:"sync_google"`
	GoogleEventID  string     `gorm:"size:255;index" json:"google_event_id,omitempty"`
	GoogleLastSync *time.Time `json:"google_last_sync,omitempty"`
}

// EventTypes lists the accepted agenda entry kinds.
var EventTypes = []string{"rdv", "audience", "echeance", "reunion", "autre"}

// Location joins the non-empty address parts into one line.
func (e *Evenement) Location() string {
	var parts []string
	for _, p := range []string{e.Lieu, e.Adresse, strings.TrimSpace(e.CodePostal + " " + e.Ville)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// NeedsPush reports a local change not yet mirrored remotely.
func (e *Evenement) NeedsPush() bool {
	if !e.SyncGoogle {
		return false
	}
	return e.GoogleEventID == "" || e.GoogleLastSync == nil || e.UpdatedAt.After(*e.GoogleLastSync)
}
