package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/folders"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/onedrive"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

// Drive is the part of the OneDrive client document sync uses.
type Drive interface {
	folders.Drive
	ListChildren(ctx context.Context, folderID string) ([]onedrive.Item, error)
	Upload(ctx context.Context, parentID, name string, content []byte, mimeType string) (*onedrive.Item, error)
	Rename(ctx context.Context, id, name string) (*onedrive.Item, error)
	Delete(ctx context.Context, id string) error
}

// Blobs reads the local copy of uploaded documents. *storage.Store implements it.
type Blobs interface {
	Get(key string) ([]byte, error)
}

// DocumentSync mirrors documents to the dossier folders on OneDrive.
type DocumentSync struct {
	db       *gorm.DB
	drive    Drive
	mapper   *folders.Mapper
	blobs    Blobs
	activity *activity.Logger
	history  *History
	log      *zap.Logger
	now      func() time.Time
}

func NewDocumentSync(db *gorm.DB, drive Drive, mapper *folders.Mapper, blobs Blobs, act *activity.Logger, log *zap.Logger) *DocumentSync {
	return &DocumentSync{
		db:       db,
		drive:    drive,
		mapper:   mapper,
		blobs:    blobs,
		activity: act,
		history:  NewHistory(db),
		log:      logging.OrNop(log),
		now:      time.Now,
	}
}

func (s *DocumentSync) loadDocument(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DocumentSync) markError(ctx context.Context, doc *models.Document, err error) {
	msg := err.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	if uerr := s.db.WithContext(ctx).Model(doc).UpdateColumns(map[string]any{
		"sync_status": models.SyncError,
		"sync_error":  msg,
	}).Error; uerr != nil {
		s.log.Warn("document sync status not saved", zap.Uint("document_id", doc.ID), zap.Error(uerr))
	}
}

func (s *DocumentSync) linkItem(ctx context.Context, doc *models.Document, it *onedrive.Item) error {
	now := s.now()
	cols := map[string]any{
		"onedrive_file_id":      it.ID,
		"onedrive_web_url":      it.WebURL,
		"onedrive_download_url": it.DownloadURL,
		"onedrive_last_sync":    now,
		"sync_status":           models.SyncSynced,
		"sync_error":            "",
	}
	if err := s.db.WithContext(ctx).Model(doc).UpdateColumns(cols).Error; err != nil {
		return err
	}
	doc.OneDriveFileID = it.ID
	doc.OneDriveWebURL = it.WebURL
	doc.OneDriveDownloadURL = it.DownloadURL
	doc.OneDriveLastSync = &now
	doc.SyncStatus = models.SyncSynced
	doc.SyncError = ""
	return nil
}

// UploadDocument pushes the local copy of a document into its dossier folder.
func (s *DocumentSync) UploadDocument(ctx context.Context, documentID uint) Result {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return failed(err)
	}
	if doc.FilePath == "" || doc.OneDriveFileID != "" {
		return skipped()
	}
	res := s.upload(ctx, doc)
	if res.Success && !res.Skipped {
		s.activity.DocumentSynced(ctx, doc)
	}
	return res
}

func (s *DocumentSync) upload(ctx context.Context, doc *models.Document) Result {
	content, err := s.blobs.Get(doc.FilePath)
	if err != nil {
		err = retry.Permanent(fmt.Errorf("read local copy: %w", err))
		s.markError(ctx, doc, err)
		return failed(err)
	}
	folderID, err := s.mapper.EnsureFolder(ctx, doc.DossierID, doc.Location)
	if err != nil {
		s.markError(ctx, doc, err)
		return failed(err)
	}
	it, err := s.drive.Upload(ctx, folderID, folders.SanitizeName(doc.Nom), content, doc.MimeType)
	if err != nil {
		s.markError(ctx, doc, err)
		return failed(err)
	}
	if err := s.linkItem(ctx, doc, it); err != nil {
		return failed(err)
	}
	return ok()
}

// RenameDocument applies the local name to the remote file.
func (s *DocumentSync) RenameDocument(ctx context.Context, documentID uint) Result {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return failed(err)
	}
	if doc.OneDriveFileID == "" {
		return skipped()
	}
	it, err := s.drive.Rename(ctx, doc.OneDriveFileID, folders.SanitizeName(doc.Nom))
	if err != nil {
		if retry.IsNotFound(err) {
			s.unlink(ctx, doc)
			return skipped()
		}
		s.markError(ctx, doc, err)
		return failed(err)
	}
	if err := s.linkItem(ctx, doc, it); err != nil {
		return failed(err)
	}
	return ok()
}

// DeleteDocument removes a remote file; a file already gone counts as done.
func (s *DocumentSync) DeleteDocument(ctx context.Context, fileID string) Result {
	if fileID == "" {
		return skipped()
	}
	if err := s.drive.Delete(ctx, fileID); err != nil {
		return failed(err)
	}
	return ok()
}

// SyncDossierFolders creates or repairs both folders of a dossier.
func (s *DocumentSync) SyncDossierFolders(ctx context.Context, dossierID uint) Result {
	f, err := s.mapper.EnsureDossierFolders(ctx, dossierID)
	if err != nil {
		return failed(err)
	}
	s.activity.DossierFoldersSynced(ctx, dossierID, f.Path)
	return ok()
}

func (s *DocumentSync) unlink(ctx context.Context, doc *models.Document) {
	err := s.db.WithContext(ctx).Model(doc).UpdateColumns(map[string]any{
		"onedrive_file_id":      "",
		"onedrive_web_url":      "",
		"onedrive_download_url": "",
		"sync_status":           models.SyncNone,
		"sync_error":            "",
	}).Error
	if err != nil {
		s.log.Warn("document unlink failed", zap.Uint("document_id", doc.ID), zap.Error(err))
	}
	doc.OneDriveFileID = ""
	doc.SyncStatus = models.SyncNone
}

// FullSync reconciles every dossier with OneDrive and records the run.
//
// Per dossier: folders are ensured, pending local documents are uploaded,
// files found in the CABINET and CLIENT folders are matched by id (name,
// size and location drift is copied back), unknown files are imported, and
// known files missing remotely lose their OneDrive reference.
func (s *DocumentSync) FullSync(ctx context.Context, mode string) (*models.SyncLog, error) {
	run := newRun(models.ServiceOneDrive, mode, s.now())
	var dossiers []models.Dossier
	if err := s.db.WithContext(ctx).Order("id").Find(&dossiers).Error; err != nil {
		return nil, err
	}
	for i := range dossiers {
		if err := ctx.Err(); err != nil {
			run.fail("sync interrompue : %v", err)
			break
		}
		s.syncDossier(ctx, run, &dossiers[i])
	}
	return finishRun(ctx, s.history, s.activity, s.log, run, s.now())
}

func (s *DocumentSync) syncDossier(ctx context.Context, run *Run, d *models.Dossier) {
	f, err := s.mapper.EnsureDossierFolders(ctx, d.ID)
	if err != nil {
		run.fail("Dossier %s : dossiers OneDrive : %v", d.Reference, err)
		return
	}
	run.succeed()

	var docs []models.Document
	if err := s.db.WithContext(ctx).Where("dossier_id = ?", d.ID).Order("id").Find(&docs).Error; err != nil {
		run.fail("Dossier %s : %v", d.Reference, err)
		return
	}
	known := map[string]*models.Document{}
	for i := range docs {
		doc := &docs[i]
		if doc.OneDriveFileID != "" {
			known[doc.OneDriveFileID] = doc
			continue
		}
		if doc.FilePath == "" || (doc.SyncStatus != models.SyncPending && doc.SyncStatus != models.SyncError) {
			continue
		}
		if res := s.upload(ctx, doc); !res.Success {
			run.fail("Document %q : %s", doc.Nom, res.Error)
			continue
		}
		run.Created++
		run.succeed()
		s.activity.DocumentSynced(ctx, doc)
		// just uploaded, it shows up in the listing below
		known[doc.OneDriveFileID] = doc
	}

	seen := map[string]bool{}
	listed := true
	for _, loc := range []models.DocumentLocation{models.LocationCabinet, models.LocationClient} {
		items, err := s.drive.ListChildren(ctx, f.For(loc))
		if err != nil {
			listed = false
			run.fail("Dossier %s : lecture %s : %v", d.Reference, loc, err)
			continue
		}
		for i := range items {
			it := &items[i]
			if it.IsFolder() {
				continue
			}
			seen[it.ID] = true
			if doc, ok := known[it.ID]; ok {
				s.applyDrift(ctx, run, doc, it, loc)
				continue
			}
			s.importItem(ctx, run, d, it, loc)
		}
	}
	if !listed {
		return
	}
	for id, doc := range known {
		if seen[id] {
			continue
		}
		// moved elsewhere in the drive is still a valid reference
		if _, err := s.drive.GetItem(ctx, id); err == nil {
			continue
		} else if !retry.IsNotFound(err) {
			run.fail("Document %q : %v", doc.Nom, err)
			continue
		}
		s.unlink(ctx, doc)
		run.Deleted++
		run.succeed()
		run.detail("Document %q absent de OneDrive, lien supprimé", doc.Nom)
	}
}

func (s *DocumentSync) applyDrift(ctx context.Context, run *Run, doc *models.Document, it *onedrive.Item, loc models.DocumentLocation) {
	cols := map[string]any{}
	if it.Name != doc.Nom && it.Name != folders.SanitizeName(doc.Nom) {
		cols["nom"] = it.Name
	}
	if it.Size != doc.Taille {
		cols["taille"] = it.Size
	}
	if loc != doc.Location {
		cols["location"] = loc
		if loc == models.LocationClient {
			cols["visible_client"] = true
		}
	}
	if len(cols) == 0 {
		return
	}
	cols["onedrive_web_url"] = it.WebURL
	cols["onedrive_last_sync"] = s.now()
	if err := s.db.WithContext(ctx).Model(doc).UpdateColumns(cols).Error; err != nil {
		run.fail("Document %q : %v", doc.Nom, err)
		return
	}
	run.Updated++
	run.succeed()
	s.activity.DocumentSynced(ctx, doc)
}

func (s *DocumentSync) importItem(ctx context.Context, run *Run, d *models.Dossier, it *onedrive.Item, loc models.DocumentLocation) {
	// the same file id may already be linked to another dossier
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Document{}).Where("onedrive_file_id = ?", it.ID).Count(&count).Error; err != nil {
		run.fail("Fichier %q : %v", it.Name, err)
		return
	}
	if count > 0 {
		return
	}
	now := s.now()
	doc := models.Document{
		DossierID:           d.ID,
		Nom:                 it.Name,
		MimeType:            it.MimeType(),
		Taille:              it.Size,
		Location:            loc,
		VisibleClient:       loc == models.LocationClient,
		OneDriveFileID:      it.ID,
		OneDriveWebURL:      it.WebURL,
		OneDriveDownloadURL: it.DownloadURL,
		OneDriveLastSync:    &now,
		SyncStatus:          models.SyncSynced,
		UploadedByType:      "onedrive",
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		run.fail("Fichier %q : %v", it.Name, err)
		return
	}
	run.Created++
	run.succeed()
	s.activity.DocumentImported(ctx, &doc)
}

// Register wires the document job kinds into q.
func (s *DocumentSync) Register(q *Queue) {
	q.Handle(KindDocumentUpload, func(ctx context.Context, j Job) error {
		return permanentIfGone(s.UploadDocument(ctx, j.DocumentID).Err())
	})
	q.Handle(KindDocumentRename, func(ctx context.Context, j Job) error {
		return permanentIfGone(s.RenameDocument(ctx, j.DocumentID).Err())
	})
	q.Handle(KindDocumentDelete, func(ctx context.Context, j Job) error {
		return s.DeleteDocument(ctx, j.RemoteID).Err()
	})
	q.Handle(KindDossierFolders, func(ctx context.Context, j Job) error {
		return permanentIfGone(s.SyncDossierFolders(ctx, j.DossierID).Err())
	})
}

// permanentIfGone stops retries once the local row no longer exists.
func permanentIfGone(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return retry.Permanent(err)
	}
	return err
}
