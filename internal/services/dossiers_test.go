package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/syncer"
	"github.com/diewo77/portail-cabinet/internal/syncer/syncertest"
)

func TestDossierReferencesFollowYearSequence(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	martin := seedClient(t, db, "Martin", "martin@client.fr")
	durand := seedClient(t, db, "Durand", "durand@client.fr")
	rec := &syncertest.Recorder{}
	svc := NewDossierService(db, act, rec, nil, nil)

	opened := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.Create(ctx, activity.System(), DossierInput{Intitule: "Bail", ClientID: martin.ID, DateOuverture: &opened})
	require.NoError(t, err)
	assert.Equal(t, "2025-001-MAR", first.Reference)

	second, err := svc.Create(ctx, activity.System(), DossierInput{Intitule: "Prud'hommes", ClientID: durand.ID, DateOuverture: &opened})
	require.NoError(t, err)
	assert.Equal(t, "2025-002-DUR", second.Reference)

	next := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	third, err := svc.Create(ctx, activity.System(), DossierInput{Intitule: "Divorce", ClientID: martin.ID, DateOuverture: &next})
	require.NoError(t, err)
	assert.Equal(t, "2026-001-MAR", third.Reference)

	assert.Equal(t, []syncer.Kind{syncer.KindDossierFolders, syncer.KindDossierFolders, syncer.KindDossierFolders}, rec.Kinds())
}

func TestDossierReferenceIsImmutable(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	c := seedClient(t, db, "Martin", "martin@client.fr")
	svc := NewDossierService(db, act, nil, nil, nil)

	d, err := svc.Create(ctx, activity.System(), DossierInput{Intitule: "Bail", ClientID: c.ID})
	require.NoError(t, err)
	updated, err := svc.Update(ctx, activity.System(), d.ID, DossierInput{Intitule: "Bail commercial", ClientID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, d.Reference, updated.Reference)
	assert.Equal(t, "Bail commercial", updated.Intitule)
}

func TestDossierClosingSetsDate(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	c := seedClient(t, db, "Martin", "martin@client.fr")
	svc := NewDossierService(db, act, nil, nil, nil)

	d, err := svc.Create(ctx, activity.System(), DossierInput{Intitule: "Bail", ClientID: c.ID})
	require.NoError(t, err)
	closed, err := svc.ChangeStatus(ctx, activity.System(), d.ID, models.DossierClos)
	require.NoError(t, err)
	assert.NotNil(t, closed.DateCloture)

	reopened, err := svc.ChangeStatus(ctx, activity.System(), d.ID, models.DossierEnCours)
	require.NoError(t, err)
	assert.Nil(t, reopened.DateCloture)

	items, total, err := activity.NewTimeline(db).ForDossier(ctx, d.ID, activity.Query{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 3)
}

func TestClientDeleteRefusedWhileDossiersRemain(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	c := seedClient(t, db, "Martin", "martin@client.fr")
	seedDossier(t, db, c, "2025-001-MAR")
	svc := NewClientService(db, act)

	assert.ErrorIs(t, svc.Delete(ctx, activity.System(), c.ID), ErrClientHasDossiers)
	_, err := svc.Get(ctx, c.ID)
	assert.NoError(t, err)
}

func TestClientCreateReturnsTemporaryPassword(t *testing.T) {
	db, act := setup(t)
	svc := NewClientService(db, act)
	c, temp, err := svc.Create(context.Background(), activity.System(), ClientInput{Nom: "Martin", Email: "martin@client.fr"})
	require.NoError(t, err)
	require.NotEmpty(t, temp)
	assert.True(t, checkPassword(c.Password, temp))
	assert.True(t, c.IsActive)

	_, _, err = svc.Create(context.Background(), activity.System(), ClientInput{Nom: "Autre", Email: "martin@client.fr"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}
