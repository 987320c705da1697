package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/internal/activity"
	"github.com/diewo77/portail-cabinet/internal/gcalendar"
	"github.com/diewo77/portail-cabinet/internal/logging"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Calendar is the part of the Google Calendar client event sync uses.
type Calendar interface {
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]gcalendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*gcalendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, ev gcalendar.Event) (*gcalendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, ev gcalendar.Event) (*gcalendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Settings exposes the stored token record, for the selected calendar id.
// *oauth.Service implements it.
type Settings interface {
	Record(ctx context.Context) (*models.OAuthToken, error)
}

type CalendarOptions struct {
	TimeZone   string
	PastDays   int
	FutureDays int
}

// CalendarSync mirrors Evenement rows flagged sync_google to a Google calendar.
type CalendarSync struct {
	db       *gorm.DB
	cal      Calendar
	settings Settings
	opts     CalendarOptions
	activity *activity.Logger
	history  *History
	log      *zap.Logger
	now      func() time.Time
}

func NewCalendarSync(db *gorm.DB, cal Calendar, settings Settings, opts CalendarOptions, act *activity.Logger, log *zap.Logger) *CalendarSync {
	if opts.TimeZone == "" {
		opts.TimeZone = "Europe/Paris"
	}
	if opts.PastDays <= 0 {
		opts.PastDays = 30
	}
	if opts.FutureDays <= 0 {
		opts.FutureDays = 365
	}
	return &CalendarSync{
		db:       db,
		cal:      cal,
		settings: settings,
		opts:     opts,
		activity: act,
		history:  NewHistory(db),
		log:      logging.OrNop(log),
		now:      time.Now,
	}
}

func (s *CalendarSync) calendarID(ctx context.Context) string {
	if s.settings == nil {
		return "primary"
	}
	rec, err := s.settings.Record(ctx)
	if err != nil || rec == nil || rec.SelectedResourceID == "" {
		return "primary"
	}
	return rec.SelectedResourceID
}

// stamp is the sync time saved with an event: never before the remote
// updated time, so the next pull does not see our own write as newer.
func (s *CalendarSync) stamp(remote *gcalendar.Event) time.Time {
	now := s.now()
	if remote != nil && remote.Updated.After(now) {
		return remote.Updated
	}
	return now
}

func (s *CalendarSync) link(ctx context.Context, ev *models.Evenement, remote *gcalendar.Event) error {
	at := s.stamp(remote)
	if err := s.db.WithContext(ctx).Model(ev).UpdateColumns(map[string]any{
		"google_event_id":  remote.ID,
		"google_last_sync": at,
	}).Error; err != nil {
		return err
	}
	ev.GoogleEventID = remote.ID
	ev.GoogleLastSync = &at
	return nil
}

func (s *CalendarSync) unlink(ctx context.Context, ev *models.Evenement) error {
	if err := s.db.WithContext(ctx).Model(ev).UpdateColumns(map[string]any{
		"google_event_id":  "",
		"google_last_sync": nil,
		"sync_google":      false,
	}).Error; err != nil {
		return err
	}
	ev.GoogleEventID = ""
	ev.GoogleLastSync = nil
	ev.SyncGoogle = false
	return nil
}

// PushEvent creates or updates the Google copy of a local event.
func (s *CalendarSync) PushEvent(ctx context.Context, eventID uint) Result {
	var ev models.Evenement
	if err := s.db.WithContext(ctx).First(&ev, eventID).Error; err != nil {
		return failed(err)
	}
	res, _ := s.push(ctx, s.calendarID(ctx), &ev)
	if res.Success && !res.Skipped {
		s.activity.EventSynced(ctx, &ev)
	}
	return res
}

// push reports whether the remote event was created rather than updated.
func (s *CalendarSync) push(ctx context.Context, calID string, ev *models.Evenement) (Result, bool) {
	if !ev.SyncGoogle {
		return skipped(), false
	}
	body := gcalendar.FromEvenement(ev, s.opts.TimeZone)
	if ev.GoogleEventID != "" {
		current, err := s.cal.GetEvent(ctx, calID, ev.GoogleEventID)
		switch {
		case err == nil && current.Restricted():
			return skipped(), false
		case err == nil && !current.Cancelled():
			remote, err := s.cal.UpdateEvent(ctx, calID, ev.GoogleEventID, body)
			if err != nil {
				if gcalendar.IsRestrictedError(err) {
					return skipped(), false
				}
				return failed(err), false
			}
			if err := s.link(ctx, ev, remote); err != nil {
				return failed(err), false
			}
			return ok(), false
		case err != nil && !gcalendar.IsGone(err):
			return failed(err), false
		}
		// deleted on Google's side: recreate
	}
	remote, err := s.cal.InsertEvent(ctx, calID, body)
	if err != nil {
		if gcalendar.IsRestrictedError(err) {
			return skipped(), false
		}
		return failed(err), false
	}
	if err := s.link(ctx, ev, remote); err != nil {
		return failed(err), true
	}
	return ok(), true
}

// DeleteEvent removes the Google copy of a deleted local event.
func (s *CalendarSync) DeleteEvent(ctx context.Context, googleEventID string) Result {
	if googleEventID == "" {
		return skipped()
	}
	err := s.cal.DeleteEvent(ctx, s.calendarID(ctx), googleEventID)
	switch {
	case err == nil:
		return ok()
	case gcalendar.IsRestrictedError(err):
		return skipped()
	default:
		return failed(err)
	}
}

// FullSync pushes every pending local change, then pulls the sync window.
//
// Remote events are matched by Google id, or by the portal back-reference
// for a push whose response was lost. A matched event whose remote updated
// time is newer than its last sync takes the remote fields (last writer
// wins). When a local edit could not be pushed, the remote copy only wins if
// it is newer than that edit; otherwise the event stays pending. Unknown
// remote events are imported unless they are cancelled, restricted or carry a
// back-reference to a local event. Linked events cancelled or purged remotely
// are unlinked locally.
func (s *CalendarSync) FullSync(ctx context.Context, mode string) (*models.SyncLog, error) {
	run := newRun(models.ServiceGoogleCalendar, mode, s.now())
	calID := s.calendarID(ctx)

	var pending []models.Evenement
	if err := s.db.WithContext(ctx).Where("sync_google = ?", true).Order("id").Find(&pending).Error; err != nil {
		return nil, err
	}
	for i := range pending {
		ev := &pending[i]
		if !ev.NeedsPush() {
			continue
		}
		res, created := s.push(ctx, calID, ev)
		switch {
		case !res.Success:
			run.fail("Événement %q : %s", ev.Titre, res.Error)
		case res.Skipped:
			run.detail("Événement %q ignoré (type restreint)", ev.Titre)
		case created:
			run.Created++
			run.succeed()
		default:
			run.Updated++
			run.succeed()
		}
	}

	if err := s.pull(ctx, run, calID); err != nil {
		run.fail("Lecture de l'agenda Google : %v", err)
	}
	return finishRun(ctx, s.history, s.activity, s.log, run, s.now())
}

func (s *CalendarSync) window() (time.Time, time.Time) {
	now := s.now()
	return now.AddDate(0, 0, -s.opts.PastDays), now.AddDate(0, 0, s.opts.FutureDays)
}

func (s *CalendarSync) pull(ctx context.Context, run *Run, calID string) error {
	from, to := s.window()
	remote, err := s.cal.ListEvents(ctx, calID, from, to)
	if err != nil {
		return err
	}

	var linked []models.Evenement
	if err := s.db.WithContext(ctx).Where("google_event_id <> ''").Find(&linked).Error; err != nil {
		return err
	}
	byGoogleID := make(map[string]*models.Evenement, len(linked))
	for i := range linked {
		byGoogleID[linked[i].GoogleEventID] = &linked[i]
	}

	seen := map[string]bool{}
	for i := range remote {
		e := &remote[i]
		seen[e.ID] = true
		local := byGoogleID[e.ID]
		if local == nil && e.PortalID() != 0 {
			local = s.relink(ctx, run, e)
			if local == nil {
				continue
			}
		}
		if local == nil {
			if e.Cancelled() || e.Restricted() {
				continue
			}
			s.importEvent(ctx, run, e)
			continue
		}
		if e.Cancelled() {
			if err := s.unlink(ctx, local); err != nil {
				run.fail("Événement %q : %v", local.Titre, err)
				continue
			}
			run.Deleted++
			run.succeed()
			run.detail("Événement %q supprimé de Google, lien retiré", local.Titre)
			continue
		}
		if local.GoogleLastSync != nil && !e.Updated.After(*local.GoogleLastSync) {
			continue
		}
		// a local edit whose push failed stays pending unless Google has a newer one
		if local.NeedsPush() && !e.Updated.After(local.UpdatedAt) {
			run.detail("Événement %q : modification locale plus récente conservée", local.Titre)
			continue
		}
		if err := s.applyRemote(ctx, local, e); err != nil {
			run.fail("Événement %q : %v", local.Titre, err)
			continue
		}
		run.Updated++
		run.succeed()
	}

	// linked events inside the window that Google no longer lists
	for id, local := range byGoogleID {
		if seen[id] || local.DateDebut.Before(from) || !local.DateDebut.Before(to) {
			continue
		}
		_, err := s.cal.GetEvent(ctx, calID, id)
		if err == nil {
			continue
		}
		if !gcalendar.IsGone(err) {
			run.fail("Événement %q : %v", local.Titre, err)
			continue
		}
		if err := s.unlink(ctx, local); err != nil {
			run.fail("Événement %q : %v", local.Titre, err)
			continue
		}
		run.Deleted++
		run.succeed()
	}
	return nil
}

// relink attaches a remote event carrying a back-reference to its local
// event when that event lost its Google id. Anything else is left alone so a
// portal event is never imported twice.
func (s *CalendarSync) relink(ctx context.Context, run *Run, e *gcalendar.Event) *models.Evenement {
	var local models.Evenement
	err := s.db.WithContext(ctx).First(&local, e.PortalID()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && local.GoogleEventID != "") {
		return nil
	}
	if err != nil {
		run.fail("Événement Google %s : %v", e.ID, err)
		return nil
	}
	if e.Cancelled() {
		return nil
	}
	if err := s.link(ctx, &local, e); err != nil {
		run.fail("Événement %q : %v", local.Titre, err)
		return nil
	}
	return &local
}

func (s *CalendarSync) applyRemote(ctx context.Context, local *models.Evenement, e *gcalendar.Event) error {
	if err := e.ApplyTo(local, s.opts.TimeZone); err != nil {
		return err
	}
	at := s.stamp(e)
	// updated_at is set to the sync stamp so the change is not pushed back
	return s.db.WithContext(ctx).Model(local).UpdateColumns(map[string]any{
		"titre":            local.Titre,
		"description":      local.Description,
		"date_debut":       local.DateDebut,
		"date_fin":         local.DateFin,
		"journee_entiere":  local.JourneeEntiere,
		"lieu":             local.Lieu,
		"adresse":          local.Adresse,
		"code_postal":      local.CodePostal,
		"ville":            local.Ville,
		"google_last_sync": at,
		"updated_at":       at,
	}).Error
}

func (s *CalendarSync) importEvent(ctx context.Context, run *Run, e *gcalendar.Event) {
	at := s.stamp(e)
	ev := models.Evenement{
		Type:           "rdv",
		SyncGoogle:     true,
		GoogleEventID:  e.ID,
		GoogleLastSync: &at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if err := e.ApplyTo(&ev, s.opts.TimeZone); err != nil {
		run.fail("Événement Google %q : %v", e.Summary, err)
		return
	}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		run.fail("Événement Google %q : %v", e.Summary, err)
		return
	}
	run.Created++
	run.succeed()
	s.activity.EventImported(ctx, &ev)
}

// Register wires the event job kinds into q.
func (s *CalendarSync) Register(q *Queue) {
	q.Handle(KindEventPush, func(ctx context.Context, j Job) error {
		return permanentIfGone(s.PushEvent(ctx, j.EventID).Err())
	})
	q.Handle(KindEventDelete, func(ctx context.Context, j Job) error {
		return s.DeleteEvent(ctx, j.RemoteID).Err()
	})
}
