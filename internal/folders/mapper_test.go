package folders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/db/dbtest"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/onedrive/onedrivetest"
)

func seedDossier(t *testing.T, db *gorm.DB) *models.Dossier {
	t.Helper()
	c := models.Client{Nom: "Martin", Prenom: "Jeanne", Email: "jeanne@example.fr", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&c).Error)
	d := models.Dossier{Reference: "2025-001-MAR", Intitule: "Succession: Martin", ClientID: c.ID, Status: models.DossierOuvert, DateOuverture: time.Now()}
	require.NoError(t, db.Create(&d).Error)
	return &d
}

func TestEnsureFolderBuildsChain(t *testing.T) {
	db := dbtest.New(t)
	d := seedDossier(t, db)
	drive := onedrivetest.New()
	m := NewMapper(db, drive, "Portail Cabinet", zap.NewNop())

	id, err := m.EnsureFolder(context.Background(), d.ID, models.LocationClient)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var got models.Dossier
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, id, got.OneDriveClientFolderID)
	assert.NotEmpty(t, got.OneDriveCabinetFolderID)
	assert.Equal(t, "/Portail Cabinet/Clients/Martin Jeanne/2025-001-MAR - Succession Martin", got.OneDriveFolderPath)
	assert.NotNil(t, got.OneDriveLastSync)

	var c models.Client
	require.NoError(t, db.First(&c, d.ClientID).Error)
	assert.NotEmpty(t, c.OneDriveFolderID)

	// root, Clients, client, dossier, CABINET, CLIENT
	assert.Equal(t, 6, drive.Count())
}

func TestEnsureFolderReusesCache(t *testing.T) {
	db := dbtest.New(t)
	d := seedDossier(t, db)
	drive := onedrivetest.New()
	m := NewMapper(db, drive, "", nil)

	first, err := m.EnsureFolder(context.Background(), d.ID, models.LocationCabinet)
	require.NoError(t, err)
	creates := drive.Calls["CreateFolder"]

	second, err := m.EnsureFolder(context.Background(), d.ID, models.LocationCabinet)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, creates, drive.Calls["CreateFolder"], "no folder created for a cached id")
}

func TestEnsureFolderSelfHeals(t *testing.T) {
	db := dbtest.New(t)
	d := seedDossier(t, db)
	drive := onedrivetest.New()
	m := NewMapper(db, drive, "", nil)

	first, err := m.EnsureFolder(context.Background(), d.ID, models.LocationCabinet)
	require.NoError(t, err)
	drive.Remove(first)

	healed, err := m.EnsureFolder(context.Background(), d.ID, models.LocationCabinet)
	require.NoError(t, err)
	assert.NotEqual(t, first, healed)
	assert.True(t, drive.Has(healed))
	assert.Equal(t, 6, drive.Count())
}

func TestEnsureDossierFolders(t *testing.T) {
	db := dbtest.New(t)
	d := seedDossier(t, db)
	drive := onedrivetest.New()
	m := NewMapper(db, drive, "", nil)

	f, err := m.EnsureDossierFolders(context.Background(), d.ID)
	require.NoError(t, err)
	assert.NotEqual(t, f.CabinetID, f.ClientID)
	assert.Equal(t, f.ClientID, f.For(models.LocationClient))

	again, err := m.EnsureDossierFolders(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestEnsureDossierFoldersFollowsRename(t *testing.T) {
	db := dbtest.New(t)
	d := seedDossier(t, db)
	drive := onedrivetest.New()
	m := NewMapper(db, drive, "", nil)
	ctx := context.Background()

	f, err := m.EnsureDossierFolders(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Dossier{}).Where("id = ?", d.ID).Update("intitule", "Divorce").Error)

	moved, err := m.EnsureDossierFolders(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, f.FolderID, moved.FolderID)
	assert.Equal(t, f.CabinetID, moved.CabinetID)
	assert.Equal(t, "/Portail Cabinet/Clients/Martin Jeanne/2025-001-MAR - Divorce", moved.Path)

	it, err := drive.GetItem(ctx, f.FolderID)
	require.NoError(t, err)
	assert.Equal(t, "2025-001-MAR - Divorce", it.Name)

	var got models.Dossier
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, moved.Path, got.OneDriveFolderPath)

	_, err = m.EnsureDossierFolders(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, drive.Calls["Move"])
}

func TestEnsureFolderFollowsClientChange(t *testing.T) {
	db := dbtest.New(t)
	d := seedDossier(t, db)
	drive := onedrivetest.New()
	m := NewMapper(db, drive, "", nil)
	ctx := context.Background()

	cabinet, err := m.EnsureFolder(ctx, d.ID, models.LocationCabinet)
	require.NoError(t, err)
	var before models.Dossier
	require.NoError(t, db.First(&before, d.ID).Error)

	other := models.Client{Nom: "Durand", Prenom: "Paul", Email: "paul@example.fr", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Model(&models.Dossier{}).Where("id = ?", d.ID).Update("client_id", other.ID).Error)

	again, err := m.EnsureFolder(ctx, d.ID, models.LocationCabinet)
	require.NoError(t, err)
	assert.Equal(t, cabinet, again)

	var after models.Dossier
	require.NoError(t, db.First(&after, d.ID).Error)
	require.NoError(t, db.First(&other, other.ID).Error)
	assert.Equal(t, "/Portail Cabinet/Clients/Durand Paul/2025-001-MAR - Succession Martin", after.OneDriveFolderPath)
	assert.Equal(t, other.OneDriveFolderID, drive.Parent(before.OneDriveFolderID))
}
