package gcalendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

// PortalEventKey is the private extended property pointing back to the local event.
const PortalEventKey = "portalEventId"

const dateLayout = "2006-01-02"

// Restricted reports event types Google refuses to modify through the API
// (focus time, out of office, working location, birthdays).
func (e *Event) Restricted() bool {
	return e.EventType != "" && e.EventType != "default"
}

func (e *Event) Cancelled() bool { return e.Status == "cancelled" }

// PortalID returns the local event id embedded in the event, or 0.
func (e *Event) PortalID() uint {
	if e.ExtendedProperties == nil {
		return 0
	}
	id, err := strconv.ParseUint(e.ExtendedProperties.Private[PortalEventKey], 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// IsRestrictedError reports a write rejected because of the event type.
func IsRestrictedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	var he *retry.HTTPError
	if errors.As(err, &he) {
		msg = he.Body
	}
	return strings.Contains(msg, "eventTypeRestriction") || strings.Contains(msg, "not supported for this event type")
}

// FromEvenement builds the Google representation of a local event. All-day
// events use dates with an exclusive end; timed ones carry tz.
func FromEvenement(ev *models.Evenement, tz string) Event {
	loc := location(tz)
	out := Event{
		Summary:     ev.Titre,
		Description: ev.Description,
		Location:    ev.Location(),
		ExtendedProperties: &ExtendedProperties{Private: map[string]string{
			PortalEventKey: strconv.FormatUint(uint64(ev.ID), 10),
		}},
	}
	if ev.JourneeEntiere {
		start := ev.DateDebut.In(loc)
		end := ev.DateFin.In(loc)
		if end.Before(start) {
			end = start
		}
		out.Start = &EventDateTime{Date: start.Format(dateLayout)}
		out.End = &EventDateTime{Date: end.AddDate(0, 0, 1).Format(dateLayout)}
		return out
	}
	end := ev.DateFin
	if !end.After(ev.DateDebut) {
		end = ev.DateDebut.Add(time.Hour)
	}
	out.Start = &EventDateTime{DateTime: ev.DateDebut.In(loc).Format(time.RFC3339), TimeZone: tz}
	out.End = &EventDateTime{DateTime: end.In(loc).Format(time.RFC3339), TimeZone: tz}
	return out
}

// ApplyTo copies the remote fields onto a local event. The address is kept as
// one line in Lieu since Google stores a single string.
func (e *Event) ApplyTo(ev *models.Evenement, tz string) error {
	loc := location(tz)
	start, allDay, err := parseWhen(e.Start, loc)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, _, err := parseWhen(e.End, loc)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if allDay {
		end = end.AddDate(0, 0, -1)
		if end.Before(start) {
			end = start
		}
	}
	ev.Titre = strings.TrimSpace(e.Summary)
	if ev.Titre == "" {
		ev.Titre = "(Sans titre)"
	}
	ev.Description = e.Description
	if e.Location != ev.Location() {
		ev.Lieu = e.Location
		ev.Adresse, ev.CodePostal, ev.Ville = "", "", ""
	}
	ev.DateDebut = start
	ev.DateFin = end
	ev.JourneeEntiere = allDay
	return nil
}

func parseWhen(w *EventDateTime, loc *time.Location) (time.Time, bool, error) {
	if w == nil {
		return time.Time{}, false, errors.New("missing date")
	}
	if w.DateTime != "" {
		t, err := time.Parse(time.RFC3339, w.DateTime)
		return t, false, err
	}
	t, err := time.ParseInLocation(dateLayout, w.Date, loc)
	return t, true, err
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
