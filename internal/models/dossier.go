package models

import "time"

// DossierStatus is the lifecycle of a matter.
type DossierStatus string

const (
	DossierOuvert    DossierStatus = "ouvert"
	DossierEnCours   DossierStatus = "en_cours"
	DossierEnAttente DossierStatus = "en_attente"
	DossierAudience  DossierStatus = "audience"
	DossierClos      DossierStatus = "clos"
	DossierArchive   DossierStatus = "archive"
)

// DossierStatuses lists the accepted status values.
var DossierStatuses = []string{
	string(DossierOuvert), string(DossierEnCours), string(DossierEnAttente),
	string(DossierAudience), string(DossierClos), string(DossierArchive),
}

// Dossier is a legal case handled by the firm.
type Dossier struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Reference is YEAR-SEQ-PREFIX, assigned once at creation.
	Reference   string        `gorm:"size:50;uniqueIndex;not null" json:"reference"`
	Intitule    string        `gorm:"size:255;not null" json:"intitule"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Type        string        `gorm:"size:100" json:"type,omitempty"`
	Status      DossierStatus `gorm:"size:20;not null;default:'ouvert'" json:"status"`

	DateOuverture    time.Time  `gorm:"not null" json:"date_ouverture"`
	DateCloture      *time.Time `json:"date_cloture,omitempty"`
	DatePrescription *time.Time `json:"date_prescription,omitempty"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	AdminID  *uint   `gorm:"index" json:"admin_id,omitempty"`
	Admin    *Admin  `gorm:"foreignKey:AdminID;constraint:OnDelete:SET NULL" json:"admin,omitempty"`

	// OneDrive mapping
	OneDriveFolderID        string     `gorm:"column:onedrive_folder_id;size:255" json:"onedrive_folder_id,omitempty"`
	OneDriveCabinetFolderID string     `gorm:"column:onedrive_cabinet_folder_id;size:255" json:"onedrive_cabinet_folder_id,omitempty"`
	OneDriveClientFolderID  string     `gorm:"column:onedrive_client_folder_id;size:255" json:"onedrive_client_folder_id,omitempty"`
	OneDriveFolderPath      string     `gorm:"column:onedrive_folder_path;size:1024" json:"onedrive_folder_path,omitempty"`
	OneDriveLastSync        *time.Time `gorm:"column:onedrive_last_sync" json:"onedrive_last_sync,omitempty"`

	Documents []Document `gorm:"constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Notes     []Note     `gorm:"constraint:OnDelete:CASCADE" json:"notes,omitempty"`
	Tasks     []Task     `gorm:"constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
}

// IsClosed reports a terminal status.
func (d *Dossier) IsClosed() bool {
	return d.Status == DossierClos || d.Status == DossierArchive
}

// OwnerID is the client the dossier belongs to.
func (d *Dossier) OwnerID() uint { return d.ClientID }
