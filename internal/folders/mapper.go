// Package folders maps dossiers onto the OneDrive folder tree
// /{root}/Clients/{client}/{REF - intitulé}/{CABINET|CLIENT}.
package folders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/onedrive"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

const (
	ClientsFolder = "Clients"
	CabinetFolder = "CABINET"
	ClientFolder  = "CLIENT"
)

// Drive is the subset of the Graph client the mapper needs.
type Drive interface {
	GetItem(ctx context.Context, id string) (*onedrive.Item, error)
	CreateFolder(ctx context.Context, parentID, name string) (*onedrive.Item, error)
	Move(ctx context.Context, id, parentID, name string) (*onedrive.Item, error)
}

// DossierFolders are the remote ids of one dossier's folders.
type DossierFolders struct {
	FolderID  string
	CabinetID string
	ClientID  string
	Path      string
}

// For returns the subfolder id matching a document location.
func (f DossierFolders) For(loc models.DocumentLocation) string {
	if loc == models.LocationClient {
		return f.ClientID
	}
	return f.CabinetID
}

type Mapper struct {
	db    *gorm.DB
	drive Drive
	root  string
	log   *zap.Logger
	now   func() time.Time
}

func NewMapper(db *gorm.DB, drive Drive, rootFolder string, log *zap.Logger) *Mapper {
	if rootFolder == "" {
		rootFolder = "Portail Cabinet"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mapper{db: db, drive: drive, root: SanitizeName(rootFolder), log: log, now: time.Now}
}

// DossierFolderName is "REF - intitulé", sanitized.
func DossierFolderName(d *models.Dossier) string {
	return SanitizeName(d.Reference + " - " + d.Intitule)
}

// DossierPath is the drive path of a dossier folder.
func (m *Mapper) DossierPath(c *models.Client, d *models.Dossier) string {
	return "/" + m.root + "/" + ClientsFolder + "/" + SanitizeName(c.DisplayName()) + "/" + DossierFolderName(d)
}

// EnsureFolder returns the subfolder id for location, reusing the cached id
// while it still resolves remotely and rebuilding the chain otherwise. A
// reused dossier folder is moved first if its path is out of date.
func (m *Mapper) EnsureFolder(ctx context.Context, dossierID uint, loc models.DocumentLocation) (string, error) {
	d, err := m.loadDossier(ctx, dossierID)
	if err != nil {
		return "", err
	}
	cached := DossierFolders{CabinetID: d.OneDriveCabinetFolderID, ClientID: d.OneDriveClientFolderID}.For(loc)
	if cached != "" {
		ok, err := m.resolvable(ctx, cached)
		if err != nil {
			return "", err
		}
		if ok {
			if err := m.relocate(ctx, d); err != nil {
				return "", err
			}
			return cached, nil
		}
		m.log.Info("cached folder missing remotely, rebuilding", zap.Uint("dossier_id", dossierID), zap.String("folder_id", cached))
	}
	f, err := m.build(ctx, d)
	if err != nil {
		return "", err
	}
	return f.For(loc), nil
}

// EnsureDossierFolders creates (or finds) the dossier folder and both subfolders.
func (m *Mapper) EnsureDossierFolders(ctx context.Context, dossierID uint) (DossierFolders, error) {
	d, err := m.loadDossier(ctx, dossierID)
	if err != nil {
		return DossierFolders{}, err
	}
	if d.OneDriveCabinetFolderID != "" && d.OneDriveClientFolderID != "" {
		okCab, err := m.resolvable(ctx, d.OneDriveCabinetFolderID)
		if err != nil {
			return DossierFolders{}, err
		}
		okCli, err := m.resolvable(ctx, d.OneDriveClientFolderID)
		if err != nil {
			return DossierFolders{}, err
		}
		if okCab && okCli {
			if err := m.relocate(ctx, d); err != nil {
				return DossierFolders{}, err
			}
			return DossierFolders{
				FolderID:  d.OneDriveFolderID,
				CabinetID: d.OneDriveCabinetFolderID,
				ClientID:  d.OneDriveClientFolderID,
				Path:      d.OneDriveFolderPath,
			}, nil
		}
	}
	return m.build(ctx, d)
}

// relocate renames and reparents the dossier folder when its client or
// intitulé changed since the path was stored. Subfolder and file ids are kept.
func (m *Mapper) relocate(ctx context.Context, d *models.Dossier) error {
	want := m.DossierPath(d.Client, d)
	if d.OneDriveFolderID == "" || d.OneDriveFolderPath == want {
		return nil
	}
	parentID, err := m.clientFolder(ctx, d.Client)
	if err != nil {
		return err
	}
	if _, err := m.drive.Move(ctx, d.OneDriveFolderID, parentID, DossierFolderName(d)); err != nil {
		return fmt.Errorf("move dossier folder: %w", err)
	}
	err = m.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ?", d.ID).UpdateColumns(map[string]any{
		"onedrive_folder_path": want,
		"onedrive_last_sync":   m.now(),
	}).Error
	if err != nil {
		return err
	}
	m.log.Info("dossier folder moved", zap.Uint("dossier_id", d.ID), zap.String("from", d.OneDriveFolderPath), zap.String("to", want))
	d.OneDriveFolderPath = want
	return nil
}

func (m *Mapper) loadDossier(ctx context.Context, id uint) (*models.Dossier, error) {
	var d models.Dossier
	if err := m.db.WithContext(ctx).Preload("Client").First(&d, id).Error; err != nil {
		return nil, fmt.Errorf("load dossier %d: %w", id, err)
	}
	if d.Client == nil {
		return nil, fmt.Errorf("dossier %d has no client", id)
	}
	return &d, nil
}

func (m *Mapper) resolvable(ctx context.Context, id string) (bool, error) {
	it, err := m.drive.GetItem(ctx, id)
	if retry.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return it.IsFolder(), nil
}

func (m *Mapper) build(ctx context.Context, d *models.Dossier) (DossierFolders, error) {
	clientFolderID, err := m.clientFolder(ctx, d.Client)
	if err != nil {
		return DossierFolders{}, err
	}
	dossierFolder, err := m.drive.CreateFolder(ctx, clientFolderID, DossierFolderName(d))
	if err != nil {
		return DossierFolders{}, fmt.Errorf("create dossier folder: %w", err)
	}
	cab, err := m.drive.CreateFolder(ctx, dossierFolder.ID, CabinetFolder)
	if err != nil {
		return DossierFolders{}, fmt.Errorf("create %s folder: %w", CabinetFolder, err)
	}
	cli, err := m.drive.CreateFolder(ctx, dossierFolder.ID, ClientFolder)
	if err != nil {
		return DossierFolders{}, fmt.Errorf("create %s folder: %w", ClientFolder, err)
	}
	f := DossierFolders{
		FolderID:  dossierFolder.ID,
		CabinetID: cab.ID,
		ClientID:  cli.ID,
		Path:      m.DossierPath(d.Client, d),
	}
	now := m.now()
	err = m.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ?", d.ID).UpdateColumns(map[string]any{
		"onedrive_folder_id":         f.FolderID,
		"onedrive_cabinet_folder_id": f.CabinetID,
		"onedrive_client_folder_id":  f.ClientID,
		"onedrive_folder_path":       f.Path,
		"onedrive_last_sync":         now,
	}).Error
	if err != nil {
		return DossierFolders{}, err
	}
	return f, nil
}

// clientFolder reuses the client's cached folder or walks root → Clients → client.
func (m *Mapper) clientFolder(ctx context.Context, c *models.Client) (string, error) {
	if c.OneDriveFolderID != "" {
		ok, err := m.resolvable(ctx, c.OneDriveFolderID)
		if err != nil {
			return "", err
		}
		if ok {
			return c.OneDriveFolderID, nil
		}
	}
	root, err := m.drive.CreateFolder(ctx, "", m.root)
	if err != nil {
		return "", fmt.Errorf("create root folder: %w", err)
	}
	clients, err := m.drive.CreateFolder(ctx, root.ID, ClientsFolder)
	if err != nil {
		return "", fmt.Errorf("create clients folder: %w", err)
	}
	folder, err := m.drive.CreateFolder(ctx, clients.ID, SanitizeName(c.DisplayName()))
	if err != nil {
		return "", fmt.Errorf("create client folder: %w", err)
	}
	if err := m.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", c.ID).
		UpdateColumn("onedrive_folder_id", folder.ID).Error; err != nil {
		return "", err
	}
	c.OneDriveFolderID = folder.ID
	return folder.ID, nil
}
