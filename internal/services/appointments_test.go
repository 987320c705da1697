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

func appointmentFixture(t *testing.T) (*AppointmentService, *syncertest.Recorder, *models.Client, *models.Admin, *models.Dossier) {
	t.Helper()
	db, act := setup(t)
	c := seedClient(t, db, "Martin", "martin@client.fr")
	require.NoError(t, db.Model(c).Update("can_request_appointment", true).Error)
	c.CanRequestAppointment = true
	admin := seedAdmin(t, db, "a@cabinet.fr", models.RoleAdmin)
	d := seedDossier(t, db, c, "2025-001-MAR")
	rec := &syncertest.Recorder{}
	svc := NewAppointmentService(db, NewEventService(db, act, rec), act)
	return svc, rec, c, admin, d
}

func TestAppointmentRequiresPermission(t *testing.T) {
	svc, _, c, _, _ := appointmentFixture(t)
	c.CanRequestAppointment = false
	_, err := svc.Create(context.Background(), c, AppointmentInput{Objet: "Point"})
	assert.ErrorIs(t, err, ErrAppointmentNotAllowed)
}

func TestAppointmentRejectsForeignDossier(t *testing.T) {
	svc, _, c, _, _ := appointmentFixture(t)
	other := seedClient(t, svc.db, "Durand", "durand@client.fr")
	theirs := seedDossier(t, svc.db, other, "2025-002-DUR")

	_, err := svc.Create(context.Background(), c, AppointmentInput{Objet: "Point", DossierID: &theirs.ID})
	v, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v, "dossier_id")
}

func TestAppointmentAcceptCreatesEvent(t *testing.T) {
	svc, rec, c, admin, d := appointmentFixture(t)
	ctx := context.Background()
	when := time.Now().Add(48 * time.Hour).Truncate(time.Minute)

	r, err := svc.Create(ctx, c, AppointmentInput{Objet: "Point d'étape", DossierID: &d.ID, DateSouhaitee: &when, Modalite: "visio"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentEnAttente, r.Status)

	mine, err := svc.ListForClient(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	accepted, ev, err := svc.Accept(ctx, activity.AdminActor(admin), r.ID, AcceptInput{Reponse: "Confirmé"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentAcceptee, accepted.Status)
	require.NotNil(t, accepted.EvenementID)
	assert.Equal(t, ev.ID, *accepted.EvenementID)
	assert.True(t, ev.DateDebut.Equal(when))
	assert.True(t, ev.VisibleClient)
	assert.Equal(t, "visio", ev.Lieu)
	assert.Equal(t, []syncer.Kind{syncer.KindEventPush}, rec.Kinds())

	_, _, err = svc.Accept(ctx, activity.AdminActor(admin), r.ID, AcceptInput{})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = svc.Refuse(ctx, activity.AdminActor(admin), r.ID, "non")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestAppointmentListPendingFirst(t *testing.T) {
	svc, _, c, admin, _ := appointmentFixture(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, c, AppointmentInput{Objet: "Premier"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, c, AppointmentInput{Objet: "Second"})
	require.NoError(t, err)
	_, err = svc.Refuse(ctx, activity.AdminActor(admin), first.ID, "")
	require.NoError(t, err)

	rows, total, err := svc.List(ctx, "", ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, models.AppointmentEnAttente, rows[0].Status)

	n, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
