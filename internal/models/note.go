package models

import "time"

// Note is an internal memo on a dossier.
type Note struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DossierID uint   `gorm:"index;not null" json:"dossier_id"`
	AdminID   *uint  `gorm:"index" json:"admin_id,omitempty"`
	Admin     *Admin `gorm:"foreignKey:AdminID;constraint:OnDelete:SET NULL" json:"admin,omitempty"`

	Titre   string `gorm:"size:255" json:"titre,omitempty"`
	Contenu string `gorm:"type:text;not null" json:"contenu"`
	Pinned  bool   `gorm:"not null" json:"pinned"`
}
