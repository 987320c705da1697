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

func TestEventCreateNormalisesAllDay(t *testing.T) {
	db, act := setup(t)
	rec := &syncertest.Recorder{}
	svc := NewEventService(db, act, rec)

	start := time.Date(2025, 5, 12, 14, 30, 0, 0, time.UTC)
	ev, err := svc.Create(context.Background(), activity.System(), EventInput{Titre: "Audience", Type: "audience", DateDebut: start, JourneeEntiere: true})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), ev.DateDebut)
	assert.Equal(t, ev.DateDebut, ev.DateFin)
	assert.True(t, ev.SyncGoogle)
	assert.Equal(t, []syncer.Kind{syncer.KindEventPush}, rec.Kinds())
}

func TestEventValidation(t *testing.T) {
	db, act := setup(t)
	svc := NewEventService(db, act, nil)
	start := time.Date(2025, 5, 12, 14, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), activity.System(), EventInput{Titre: "", Type: "fete", DateDebut: start, DateFin: start.Add(-time.Hour)})
	v, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v, "titre")
	assert.Contains(t, v, "type")
	assert.Contains(t, v, "date_fin")
}

func TestEventUnlinkRemovesGoogleCopy(t *testing.T) {
	db, act := setup(t)
	rec := &syncertest.Recorder{}
	svc := NewEventService(db, act, rec)
	ctx := context.Background()
	start := time.Date(2025, 5, 12, 14, 0, 0, 0, time.UTC)

	ev, err := svc.Create(ctx, activity.System(), EventInput{Titre: "RDV", DateDebut: start})
	require.NoError(t, err)
	require.NoError(t, db.Model(ev).Update("google_event_id", "g-1").Error)

	updated, err := svc.Update(ctx, activity.System(), ev.ID, EventInput{Titre: "RDV", DateDebut: start, SyncGoogle: boolPtr(false)})
	require.NoError(t, err)
	assert.Empty(t, updated.GoogleEventID)
	require.Len(t, rec.Jobs, 2)
	assert.Equal(t, syncer.KindEventDelete, rec.Jobs[1].Kind)
	assert.Equal(t, "g-1", rec.Jobs[1].RemoteID)
}

func TestEventListForClientShowsVisibleOnly(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	c := seedClient(t, db, "Martin", "martin@client.fr")
	other := seedClient(t, db, "Durand", "durand@client.fr")
	mine := seedDossier(t, db, c, "2025-001-MAR")
	theirs := seedDossier(t, db, other, "2025-002-DUR")
	svc := NewEventService(db, act, nil)
	start := time.Date(2025, 5, 12, 14, 0, 0, 0, time.UTC)

	for _, in := range []EventInput{
		{Titre: "visible", DossierID: &mine.ID, VisibleClient: true},
		{Titre: "interne", DossierID: &mine.ID},
		{Titre: "autre client", DossierID: &theirs.ID, VisibleClient: true},
	} {
		in.DateDebut = start
		_, err := svc.Create(ctx, activity.System(), in)
		require.NoError(t, err)
	}

	out, err := svc.List(ctx, EventFilter{ClientID: c.ID})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "visible", out[0].Titre)

	all, err := svc.List(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEventDeleteDetachesAppointment(t *testing.T) {
	db, act := setup(t)
	ctx := context.Background()
	c := seedClient(t, db, "Martin", "martin@client.fr")
	svc := NewEventService(db, act, nil)
	ev, err := svc.Create(ctx, activity.System(), EventInput{Titre: "RDV", DateDebut: time.Now()})
	require.NoError(t, err)
	req := models.AppointmentRequest{ClientID: c.ID, Objet: "x", Status: models.AppointmentAcceptee, EvenementID: &ev.ID}
	require.NoError(t, db.Create(&req).Error)

	require.NoError(t, svc.Delete(ctx, activity.System(), ev.ID))
	require.NoError(t, db.First(&req, req.ID).Error)
	assert.Nil(t, req.EvenementID)
}
