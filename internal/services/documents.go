package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/storage"
	"github.com/diewo77/portail-cabinet/internal/syncer"
	"github.com/diewo77/portail-cabinet/validation"
)

// DocumentBlobs stores document bytes. *storage.Store implements it.
type DocumentBlobs interface {
	BlobStore
	Open(key string) (io.ReadSeekCloser, error)
}

// RemoteLinks resolves a short-lived download link of a OneDrive file.
// *onedrive.Client implements it.
type RemoteLinks interface {
	DownloadURL(ctx context.Context, id string) (string, error)
}

// Upload is one incoming file.
type Upload struct {
	Filename      string
	MimeType      string
	Data          []byte
	Description   string
	Location      models.DocumentLocation
	VisibleClient bool
	Sensible      bool
}

// DocumentPatch changes the metadata of a document. Nil keeps the value.
type DocumentPatch struct {
	Nom           *string `json:"nom"`
	Description   *string `json:"description"`
	VisibleClient *bool   `json:"visible_client"`
	Sensible      *bool   `json:"sensible"`
}

// Download is either a local reader or a remote link.
type Download struct {
	Name        string
	MimeType    string
	Size        int64
	Body        io.ReadSeekCloser
	RedirectURL string
}

type DocumentService struct {
	db       *gorm.DB
	blobs    DocumentBlobs
	remote   RemoteLinks
	activity *activity.Logger
	sync     syncer.Dispatcher
	maxSize  int64
	log      *zap.Logger
}

// NewDocumentService accepts a nil remote when OneDrive is not wired.
// maxSize of zero means no limit.
func NewDocumentService(db *gorm.DB, blobs DocumentBlobs, remote RemoteLinks, act *activity.Logger, sync syncer.Dispatcher, maxSize int64, log *zap.Logger) *DocumentService {
	if sync == nil {
		sync = syncer.Nop{}
	}
	return &DocumentService{db: db, blobs: blobs, remote: remote, activity: act, sync: sync, maxSize: maxSize, log: logging.OrNop(log)}
}

// List returns every document of a dossier, newest first.
func (s *DocumentService) List(ctx context.Context, dossierID uint, location string) ([]models.Document, error) {
	q := s.db.WithContext(ctx).Where("dossier_id = ?", dossierID)
	if location != "" {
		q = q.Where("location = ?", location)
	}
	var out []models.Document
	return out, q.Order("created_at DESC, id DESC").Find(&out).Error
}

// ListForClient keeps the documents the client may see.
func (s *DocumentService) ListForClient(ctx context.Context, c *models.Client, dossierID uint) ([]models.Document, error) {
	all, err := s.List(ctx, dossierID, "")
	if err != nil {
		return nil, err
	}
	out := make([]models.Document, 0, len(all))
	for _, d := range all {
		if d.VisibleTo(c.CanViewSensitiveDocs) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *DocumentService) Get(ctx context.Context, id uint) (*models.Document, error) {
	var d models.Document
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetForClient hides documents of other clients and documents the client may
// not see behind ErrNotFound.
func (s *DocumentService) GetForClient(ctx context.Context, c *models.Client, id uint) (*models.Document, error) {
	var d models.Document
	err := s.db.WithContext(ctx).
		Where("id = ? AND dossier_id IN (?)", id, s.db.Model(&models.Dossier{}).Select("id").Where("client_id = ?", c.ID)).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	if !d.VisibleTo(c.CanViewSensitiveDocs) {
		return nil, ErrNotFound
	}
	return &d, nil
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Upload stores the bytes locally, records the document and hands the
// OneDrive copy to the dispatcher.
func (s *DocumentService) Upload(ctx context.Context, actor activity.Actor, dossierID uint, up Upload) (*models.Document, error) {
	up.Filename = cleanFilename(up.Filename)
	v := make(validation.Violations)
	validation.Required("file", up.Filename, v)
	validation.MaxLen("file", up.Filename, 255, v)
	if up.Location == "" {
		up.Location = models.LocationCabinet
	}
	validation.OneOf("location", string(up.Location), []string{string(models.LocationCabinet), string(models.LocationClient)}, v)
	if len(up.Data) == 0 {
		v["file"] = "file_required"
	}
	if err := invalid(v); err != nil {
		return nil, err
	}
	if s.maxSize > 0 && int64(len(up.Data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ?", dossierID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	if up.MimeType == "" || up.MimeType == "application/octet-stream" {
		if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(up.Filename))); t != "" {
			up.MimeType = t
		}
	}
	key := storage.DocumentKey(dossierID, up.Filename)
	if err := s.blobs.Put(key, up.Data); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	doc := models.Document{
		DossierID:      dossierID,
		Nom:            up.Filename,
		Description:    up.Description,
		MimeType:       up.MimeType,
		Taille:         int64(len(up.Data)),
		Location:       up.Location,
		VisibleClient:  up.VisibleClient || up.Location == models.LocationClient,
		Sensible:       up.Sensible,
		FilePath:       key,
		SyncStatus:     models.SyncNone,
		UploadedByID:   actor.ID,
		UploadedByType: actor.Type,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		if delErr := s.blobs.Delete(key); delErr != nil {
			s.log.Warn("orphan document blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.activity.DocumentUploaded(ctx, actor, &doc)
	s.sync.DocumentUploaded(ctx, &doc)
	return &doc, nil
}

// UploadForClient stores a file sent from the portal into the CLIENT folder.
func (s *DocumentService) UploadForClient(ctx context.Context, c *models.Client, dossierID uint, up Upload) (*models.Document, error) {
	if !c.CanUpload {
		return nil, ErrUploadNotAllowed
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Dossier{}).Where("id = ? AND client_id = ?", dossierID, c.ID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	up.Location = models.LocationClient
	up.VisibleClient = true
	up.Sensible = false
	return s.Upload(ctx, activity.ClientActor(c), dossierID, up)
}

func (s *DocumentService) Update(ctx context.Context, actor activity.Actor, id uint, p DocumentPatch) (*models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	renamed := false
	if p.Nom != nil {
		name := cleanFilename(*p.Nom)
		v := make(validation.Violations)
		validation.Required("nom", name, v)
		validation.MaxLen("nom", name, 255, v)
		if err := invalid(v); err != nil {
			return nil, err
		}
		renamed = name != doc.Nom
		doc.Nom = name
	}
	if p.Description != nil {
		doc.Description = *p.Description
	}
	setBool(&doc.VisibleClient, p.VisibleClient)
	setBool(&doc.Sensible, p.Sensible)
	if err := s.db.WithContext(ctx).Model(doc).Updates(map[string]any{
		"nom":            doc.Nom,
		"description":    doc.Description,
		"visible_client": doc.VisibleClient,
		"sensible":       doc.Sensible,
	}).Error; err != nil {
		return nil, err
	}
	s.activity.DocumentUpdated(ctx, actor, doc)
	if renamed {
		s.sync.DocumentRenamed(ctx, doc)
	}
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, actor activity.Actor, id uint) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Document{}, doc.ID).Error; err != nil {
		return err
	}
	if doc.FilePath != "" {
		if err := s.blobs.Delete(doc.FilePath); err != nil {
			s.log.Warn("local document not removed", zap.String("key", doc.FilePath), zap.Error(err))
		}
	}
	s.activity.DocumentDeleted(ctx, actor, doc)
	s.sync.DocumentDeleted(ctx, doc)
	return nil
}

// Open returns the local copy, or a OneDrive download link for files only
// present remotely.
func (s *DocumentService) Open(ctx context.Context, doc *models.Document) (*Download, error) {
	out := &Download{Name: doc.Nom, MimeType: doc.MimeType, Size: doc.Taille}
	if doc.FilePath != "" {
		body, err := s.blobs.Open(doc.FilePath)
		if err == nil {
			out.Body = body
			return out, nil
		}
		if doc.OneDriveFileID == "" {
			return nil, fmt.Errorf("open document %d: %w", doc.ID, err)
		}
		s.log.Warn("local copy missing, falling back to OneDrive", zap.Uint("document_id", doc.ID), zap.Error(err))
	}
	if doc.OneDriveFileID == "" || s.remote == nil {
		return nil, ErrNotFound
	}
	link, err := s.remote.DownloadURL(ctx, doc.OneDriveFileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("onedrive download link: %w", err)
	}
	out.RedirectURL = link
	return out, nil
}
