package models

import "time"

// DocumentLocation mirrors the two OneDrive subfolders of a dossier.
type DocumentLocation string

const (
	LocationCabinet DocumentLocation = "cabinet"
	LocationClient  DocumentLocation = "client"
)

// SyncStatus tracks the OneDrive copy of a document.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
	SyncNone    SyncStatus = "none"
)

// Document is a file attached to a dossier.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DossierID uint     `gorm:"index;not null" json:"dossier_id"`
	Dossier   *Dossier `gorm:"foreignKey:DossierID" json:"dossier,omitempty"`

	Nom         string           `gorm:"size:255;not null" json:"nom"`
	Description string           `gorm:"type:text" json:"description,omitempty"`
	MimeType    string           `gorm:"size:255" json:"mime_type,omitempty"`
	Taille      int64            `json:"taille"`
	Location    DocumentLocation `gorm:"size:20;not null;default:'cabinet'" json:"location"`

	VisibleClient bool `gorm:"not null" json:"visible_client"`
	Sensible      bool `gorm:"not null" json:"sensible"`

	// FilePath is the key of the local copy in the document store; empty for
	// files imported from OneDrive.
	FilePath string `gorm:"size:1024" json:"-"`

	OneDriveFileID      string     `gorm:"column:onedrive_file_id;size:255;index" json:"onedrive_file_id,omitempty"`
	OneDriveWebURL      string     `gorm:"column:onedrive_web_url;size:1024" json:"onedrive_web_url,omitempty"`
	OneDriveDownloadURL string     `gorm:"column:onedrive_download_url;size:2048" json:"-"`
	OneDriveLastSync    *time.Time `gorm:"column:onedrive_last_sync" json:"onedrive_last_sync,omitempty"`
	SyncStatus          SyncStatus `gorm:"size:20;not null;default:'none'" json:"sync_status"`
	SyncError           string     `gorm:"size:1000" json:"sync_error,omitempty"`

	UploadedByID   *uint  `json:"uploaded_by_id,omitempty"`
	UploadedByType string `gorm:"size:20" json:"uploaded_by_type,omitempty"` // "admin", "client" ou "onedrive"
}

// VisibleTo reports whether a client with the given permission may see the document.
func (d *Document) VisibleTo(canViewSensitive bool) bool {
	if !d.VisibleClient && d.Location != LocationClient {
		return false
	}
	return !d.Sensible || canViewSensitive
}
