package syncer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/db/dbtest"
	"github.com/diewo77/portail-cabinet/internal/folders"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/onedrive/onedrivetest"
	"github.com/diewo77/portail-cabinet/internal/retry"
	"github.com/diewo77/portail-cabinet/internal/storage"
)

type docFixture struct {
	db      *gorm.DB
	drive   *onedrivetest.Drive
	blobs   *storage.Store
	sync    *DocumentSync
	dossier *models.Dossier
}

func newDocFixture(t *testing.T) *docFixture {
	t.Helper()
	db := dbtest.New(t)
	c := models.Client{Nom: "Martin", Prenom: "Jeanne", Email: "jeanne@example.fr", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&c).Error)
	d := models.Dossier{Reference: "2025-001-MAR", Intitule: "Bail commercial", ClientID: c.ID, Status: models.DossierOuvert, DateOuverture: time.Now()}
	require.NoError(t, db.Create(&d).Error)

	blobs, err := storage.New(t.TempDir())
	require.NoError(t, err)
	drive := onedrivetest.New()
	mapper := folders.NewMapper(db, drive, "Portail Cabinet", zap.NewNop())
	s := NewDocumentSync(db, drive, mapper, blobs, activity.NewLogger(db, zap.NewNop()), zap.NewNop())
	return &docFixture{db: db, drive: drive, blobs: blobs, sync: s, dossier: &d}
}

func (f *docFixture) localDocument(t *testing.T, name string, loc models.DocumentLocation) *models.Document {
	t.Helper()
	key := storage.DocumentKey(f.dossier.ID, name)
	require.NoError(t, f.blobs.Put(key, []byte("contenu de "+name)))
	doc := models.Document{DossierID: f.dossier.ID, Nom: name, MimeType: "application/pdf", Taille: int64(len("contenu de " + name)),
		Location: loc, FilePath: key, SyncStatus: models.SyncPending}
	require.NoError(t, f.db.Create(&doc).Error)
	return &doc
}

func (f *docFixture) reload(t *testing.T, doc *models.Document) models.Document {
	t.Helper()
	var got models.Document
	require.NoError(t, f.db.First(&got, doc.ID).Error)
	return got
}

func TestUploadDocument(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	doc := f.localDocument(t, "Bail: signé.pdf", models.LocationCabinet)

	res := f.sync.UploadDocument(ctx, doc.ID)
	require.True(t, res.Success, res.Error)
	assert.False(t, res.Skipped)

	got := f.reload(t, doc)
	assert.Equal(t, models.SyncSynced, got.SyncStatus)
	require.NotEmpty(t, got.OneDriveFileID)
	assert.NotEmpty(t, got.OneDriveWebURL)
	assert.NotNil(t, got.OneDriveLastSync)
	assert.Equal(t, "contenu de Bail: signé.pdf", string(f.drive.Content[got.OneDriveFileID]))

	it, err := f.drive.GetItem(ctx, got.OneDriveFileID)
	require.NoError(t, err)
	assert.Equal(t, "Bail signé.pdf", it.Name)

	var d models.Dossier
	require.NoError(t, f.db.First(&d, f.dossier.ID).Error)
	assert.Equal(t, d.OneDriveCabinetFolderID, it.ParentReference.ID)

	// second call is a no-op
	res = f.sync.UploadDocument(ctx, doc.ID)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, f.drive.Calls["Upload"])
}

func TestUploadFailureMarksDocument(t *testing.T) {
	f := newDocFixture(t)
	doc := f.localDocument(t, "acte.pdf", models.LocationClient)
	f.drive.FailOn["Upload"] = &retry.HTTPError{StatusCode: http.StatusInsufficientStorage, Body: "quotaLimitReached"}

	res := f.sync.UploadDocument(context.Background(), doc.ID)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "507")

	got := f.reload(t, doc)
	assert.Equal(t, models.SyncError, got.SyncStatus)
	assert.NotEmpty(t, got.SyncError)
	assert.Empty(t, got.OneDriveFileID)
}

func TestRenameAndDeleteDocument(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	doc := f.localDocument(t, "brouillon.pdf", models.LocationCabinet)
	require.True(t, f.sync.UploadDocument(ctx, doc.ID).Success)

	require.NoError(t, f.db.Model(doc).Update("nom", "conclusions.pdf").Error)
	require.True(t, f.sync.RenameDocument(ctx, doc.ID).Success)
	fileID := f.reload(t, doc).OneDriveFileID
	it, err := f.drive.GetItem(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, "conclusions.pdf", it.Name)

	require.True(t, f.sync.DeleteDocument(ctx, fileID).Success)
	assert.False(t, f.drive.Has(fileID))
	assert.True(t, f.sync.DeleteDocument(ctx, "").Skipped)
}

func TestFullSyncIsIdempotent(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	f.localDocument(t, "assignation.pdf", models.LocationCabinet)

	df, err := f.sync.mapper.EnsureDossierFolders(ctx, f.dossier.ID)
	require.NoError(t, err)
	f.drive.PutFile(df.ClientID, "pièce client.pdf", 1234)

	first, err := f.sync.FullSync(ctx, models.SyncModeManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, 2, first.Created, "one upload, one import")
	assert.Equal(t, 0, first.Errors)

	var imported models.Document
	require.NoError(t, f.db.Where("uploaded_by_type = ?", "onedrive").First(&imported).Error)
	assert.Equal(t, "pièce client.pdf", imported.Nom)
	assert.Equal(t, models.LocationClient, imported.Location)
	assert.True(t, imported.VisibleClient)
	assert.Equal(t, int64(1234), imported.Taille)

	second, err := f.sync.FullSync(ctx, models.SyncModeManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Deleted)

	var count int64
	f.db.Model(&models.Document{}).Count(&count)
	assert.Equal(t, int64(2), count)

	var runs int64
	f.db.Model(&models.SyncLog{}).Where("type = ?", models.ServiceOneDrive).Count(&runs)
	assert.Equal(t, int64(2), runs)
}

func TestFullSyncAppliesRemoteChanges(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	renamed := f.localDocument(t, "v1.pdf", models.LocationCabinet)
	removed := f.localDocument(t, "obsolete.pdf", models.LocationCabinet)
	_, err := f.sync.FullSync(ctx, models.SyncModeAuto)
	require.NoError(t, err)

	f.drive.SetName(f.reload(t, renamed).OneDriveFileID, "v2.pdf")
	f.drive.Remove(f.reload(t, removed).OneDriveFileID)

	run, err := f.sync.FullSync(ctx, models.SyncModeAuto)
	require.NoError(t, err)
	assert.Equal(t, models.SyncModeAuto, run.Mode)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 1, run.Deleted)
	assert.Equal(t, 0, run.Created, "a file removed remotely is not uploaded again")

	assert.Equal(t, "v2.pdf", f.reload(t, renamed).Nom)
	gone := f.reload(t, removed)
	assert.Empty(t, gone.OneDriveFileID)
	assert.Equal(t, models.SyncNone, gone.SyncStatus)
}

func TestFullSyncContinuesPastFailures(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	other := models.Dossier{Reference: "2025-002-MAR", Intitule: "Divorce", ClientID: f.dossier.ClientID, DateOuverture: time.Now()}
	require.NoError(t, f.db.Create(&other).Error)
	f.localDocument(t, "a.pdf", models.LocationCabinet)
	f.drive.FailOn["Upload"] = &retry.HTTPError{StatusCode: http.StatusBadGateway}

	run, err := f.sync.FullSync(ctx, models.SyncModeManual)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, run.Status)
	assert.Equal(t, 1, run.Errors)
	lines := DetailLines(run)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "a.pdf")

	// both dossiers still got their folders
	var got models.Dossier
	require.NoError(t, f.db.First(&got, other.ID).Error)
	assert.NotEmpty(t, got.OneDriveCabinetFolderID)
}

func TestDocumentJobsThroughQueue(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	q := NewQueue(4, fastRetry(), zap.NewNop())
	f.sync.Register(q)

	doc := f.localDocument(t, "note.pdf", models.LocationCabinet)
	require.NoError(t, q.Process(ctx, Job{Kind: KindDocumentUpload, DocumentID: doc.ID}))
	assert.NotEmpty(t, f.reload(t, doc).OneDriveFileID)

	err := q.Process(ctx, Job{Kind: KindDocumentUpload, DocumentID: 999})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, q.Process(ctx, Job{Kind: KindDossierFolders, DossierID: f.dossier.ID}))
	var logs int64
	f.db.Model(&models.ActivityLog{}).Where("action = ?", "dossier.onedrive_folders").Count(&logs)
	assert.Equal(t, int64(1), logs)
}
