package models

import "time"

type AppointmentStatus string

const (
	AppointmentEnAttente AppointmentStatus = "en_attente"
	AppointmentAcceptee  AppointmentStatus = "acceptee"
	AppointmentRefusee   AppointmentStatus = "refusee"
)

// AppointmentRequest is a meeting request submitted from the client portal.
type AppointmentRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID  uint     `gorm:"index;not null" json:"client_id"`
	Client    *Client  `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"client,omitempty"`
	DossierID *uint    `gorm:"index" json:"dossier_id,omitempty"`
	Dossier   *Dossier `gorm:"foreignKey:DossierID;constraint:OnDelete:SET NULL" json:"dossier,omitempty"`

	Objet         string     `gorm:"size:255;not null" json:"objet"`
	Message       string     `gorm:"type:text" json:"message,omitempty"`
	DateSouhaitee *time.Time `json:"date_souhaitee,omitempty"`
	Modalite      string     `gorm:"size:20" json:"modalite,omitempty"` // "cabinet", "visio" ou "telephone"

	Status       AppointmentStatus `gorm:"size:20;not null;default:'en_attente'" json:"status"`
	ReponseAdmin string            `gorm:"type:text" json:"reponse_admin,omitempty"`
	TraiteParID  *uint             `json:"traite_par_id,omitempty"`
	TraiteLe     *time.Time        `json:"traite_le,omitempty"`
	EvenementID  *uint             `json:"evenement_id,omitempty"`
}

var AppointmentModalites = []string{"cabinet", "visio", "telephone"}

// OwnerID is the requesting client.
func (r *AppointmentRequest) OwnerID() uint { return r.ClientID }
