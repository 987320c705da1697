// Package gcalendartest provides an in-memory Google calendar for tests.
package gcalendartest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/diewo77/portail-cabinet/internal/gcalendar"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

// Calendar stores events of any calendar id in one map. Cancelled events stay
// listed, as with showDeleted=true.
type Calendar struct {
	mu     sync.Mutex
	events map[string]*gcalendar.Event
	seq    int
	clock  time.Time

	Calls  map[string]int
	FailOn map[string]error
}

func New() *Calendar {
	return &Calendar{
		events: map[string]*gcalendar.Event{},
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Calls:  map[string]int{},
		FailOn: map[string]error{},
	}
}

// tick advances the server clock so every write gets a distinct, increasing
// "updated" stamp, independent of the local clock.
func (c *Calendar) tick() time.Time {
	c.clock = c.clock.Add(time.Second)
	if now := time.Now().UTC().Truncate(time.Second); now.After(c.clock) {
		c.clock = now
	}
	return c.clock
}

func (c *Calendar) call(name string) error {
	c.Calls[name]++
	return c.FailOn[name]
}

func gone(id string) error {
	return &retry.HTTPError{StatusCode: http.StatusNotFound, Body: "notFound " + id}
}

func (c *Calendar) ListCalendars(_ context.Context) ([]gcalendar.Calendar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ListCalendars"); err != nil {
		return nil, err
	}
	return []gcalendar.Calendar{{ID: "primary", Summary: "Cabinet", Primary: true, AccessRole: "owner"}}, nil
}

func (c *Calendar) ListEvents(_ context.Context, _ string, from, to time.Time) ([]gcalendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ListEvents"); err != nil {
		return nil, err
	}
	var out []gcalendar.Event
	for _, e := range c.events {
		start, ok := startOf(e)
		if ok && (start.Before(from) || !start.Before(to)) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func startOf(e *gcalendar.Event) (time.Time, bool) {
	if e.Start == nil {
		return time.Time{}, false
	}
	if e.Start.DateTime != "" {
		t, err := time.Parse(time.RFC3339, e.Start.DateTime)
		return t, err == nil
	}
	t, err := time.Parse("2006-01-02", e.Start.Date)
	return t, err == nil
}

func (c *Calendar) GetEvent(_ context.Context, _ string, id string) (*gcalendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("GetEvent"); err != nil {
		return nil, err
	}
	e, ok := c.events[id]
	if !ok {
		return nil, gone(id)
	}
	cp := *e
	return &cp, nil
}

func (c *Calendar) InsertEvent(_ context.Context, _ string, ev gcalendar.Event) (*gcalendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("InsertEvent"); err != nil {
		return nil, err
	}
	return c.put(ev), nil
}

func (c *Calendar) put(ev gcalendar.Event) *gcalendar.Event {
	c.seq++
	ev.ID = fmt.Sprintf("gev%03d", c.seq)
	if ev.Status == "" {
		ev.Status = "confirmed"
	}
	if ev.EventType == "" {
		ev.EventType = "default"
	}
	ev.Updated = c.tick()
	c.events[ev.ID] = &ev
	cp := ev
	return &cp
}

func (c *Calendar) UpdateEvent(_ context.Context, _ string, id string, ev gcalendar.Event) (*gcalendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("UpdateEvent"); err != nil {
		return nil, err
	}
	cur, ok := c.events[id]
	if !ok {
		return nil, gone(id)
	}
	if cur.Restricted() {
		return nil, &retry.HTTPError{StatusCode: http.StatusBadRequest, Body: `{"error":{"errors":[{"reason":"eventTypeRestriction"}]}}`}
	}
	ev.ID = id
	ev.Status = cur.Status
	ev.EventType = cur.EventType
	ev.Updated = c.tick()
	c.events[id] = &ev
	cp := ev
	return &cp, nil
}

func (c *Calendar) DeleteEvent(_ context.Context, _ string, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("DeleteEvent"); err != nil {
		return err
	}
	if e, ok := c.events[id]; ok {
		e.Status = "cancelled"
		e.Updated = c.tick()
	}
	return nil
}

// Add stores an event created directly in Google and returns its id.
func (c *Calendar) Add(ev gcalendar.Event) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(ev).ID
}

// Edit changes an event out of band and bumps its updated stamp.
func (c *Calendar) Edit(id string, fn func(*gcalendar.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.events[id]; ok {
		fn(e)
		e.Updated = c.tick()
	}
}

// Purge removes an event without leaving a cancelled tombstone.
func (c *Calendar) Purge(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, id)
}

// Event returns a copy of the stored event.
func (c *Calendar) Event(id string) (gcalendar.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[id]
	if !ok {
		return gcalendar.Event{}, false
	}
	return *e, true
}

// Len counts stored events, cancelled ones included.
func (c *Calendar) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
