package services

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/storage"
	"github.com/diewo77/portail-cabinet/internal/syncer"
	"github.com/diewo77/portail-cabinet/internal/syncer/syncertest"
)

type fakeLinks map[string]string

func (f fakeLinks) DownloadURL(_ context.Context, id string) (string, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return "", ErrNotFound
}

func TestDocumentUploadStoresAndDispatches(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	d := seedDossier(t, db, seedClient(t, db, "Martin", "martin@client.fr"), "2025-001-MAR")
	rec := &syncertest.Recorder{}
	svc := NewDocumentService(db, store, nil, act, rec, 1024, nil)

	doc, err := svc.Upload(ctx, activity.System(), d.ID, Upload{Filename: `C:\tmp\conclusions.pdf`, Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "conclusions.pdf", doc.Nom)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, models.LocationCabinet, doc.Location)
	assert.Equal(t, []syncer.Kind{syncer.KindDocumentUpload}, rec.Kinds())

	dl, err := svc.Open(ctx, doc)
	require.NoError(t, err)
	body, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	require.NoError(t, dl.Body.Close())
	assert.Equal(t, "%PDF-1.4", string(body))

	_, err = svc.Upload(ctx, activity.System(), d.ID, Upload{Filename: "big.bin", Data: make([]byte, 2048)})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	require.NoError(t, svc.Delete(ctx, activity.System(), doc.ID))
	assert.False(t, store.Exists(doc.FilePath))
}

func TestClientUploadAndVisibility(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	c := seedClient(t, db, "Martin", "martin@client.fr")
	d := seedDossier(t, db, c, "2025-001-MAR")
	svc := NewDocumentService(db, store, nil, act, nil, 0, nil)

	_, err = svc.UploadForClient(ctx, c, d.ID, Upload{Filename: "piece.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUploadNotAllowed)

	c.CanUpload = true
	doc, err := svc.UploadForClient(ctx, c, d.ID, Upload{Filename: "piece.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, models.LocationClient, doc.Location)
	assert.Equal(t, activity.ActorClient, doc.UploadedByType)

	hidden, err := svc.Upload(ctx, activity.System(), d.ID, Upload{Filename: "interne.pdf", Data: []byte("y")})
	require.NoError(t, err)
	sensitive, err := svc.Upload(ctx, activity.System(), d.ID, Upload{Filename: "secret.pdf", Data: []byte("z"), VisibleClient: true, Sensible: true})
	require.NoError(t, err)

	visible, err := svc.ListForClient(ctx, c, d.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, doc.ID, visible[0].ID)

	_, err = svc.GetForClient(ctx, c, hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetForClient(ctx, c, sensitive.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	c.CanViewSensitiveDocs = true
	_, err = svc.GetForClient(ctx, c, sensitive.ID)
	assert.NoError(t, err)

	other := seedClient(t, db, "Durand", "durand@client.fr")
	other.CanUpload = true
	_, err = svc.UploadForClient(ctx, other, d.ID, Upload{Filename: "intrus.pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentOpenFallsBackToOneDrive(t *testing.T) {
	db, act := setup(t)
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	svc := NewDocumentService(db, store, fakeLinks{"od-1": "https://onedrive.example/dl"}, act, nil, 0, nil)

	dl, err := svc.Open(context.Background(), &models.Document{ID: 1, Nom: "remote.pdf", OneDriveFileID: "od-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://onedrive.example/dl", dl.RedirectURL)

	_, err = svc.Open(context.Background(), &models.Document{ID: 2, Nom: "lost.pdf"})
	assert.ErrorIs(t, err, ErrNotFound)
}
