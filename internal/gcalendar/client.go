// Package gcalendar is a thin Google Calendar v3 client.
package gcalendar

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

// TokenProvider returns a bearer token or oauth.ErrNotConnected.
type TokenProvider func(ctx context.Context) (string, error)

type Options struct {
	BaseURL       string
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	Retry         retry.Options
}

type Client struct {
	baseURL string
	token   TokenProvider
	http    *http.Client
	retry   retry.Options
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/calendar/v3"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, token: opts.TokenProvider, http: httpClient, retry: opts.Retry}
}

type Calendar struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary,omitempty"`
	AccessRole string `json:"accessRole,omitempty"`
	TimeZone   string `json:"timeZone,omitempty"`
}

// EventDateTime holds either Date (all-day) or DateTime.
type EventDateTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

type Event struct {
	ID                 string              `json:"id,omitempty"`
	Status             string              `json:"status,omitempty"`
	Summary            string              `json:"summary"`
	Description        string              `json:"description,omitempty"`
	Location           string              `json:"location,omitempty"`
	Start              *EventDateTime      `json:"start"`
	End                *EventDateTime      `json:"end"`
	EventType          string              `json:"eventType,omitempty"`
	Updated            time.Time           `json:"updated,omitzero"`
	HTMLLink           string              `json:"htmlLink,omitempty"`
	ExtendedProperties *ExtendedProperties `json:"extendedProperties,omitempty"`
}

func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var out []Calendar
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("minAccessRole", "writer")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page struct {
			Items         []Calendar `json:"items"`
			NextPageToken string     `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/users/me/calendarList?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// ListEvents returns the expanded events of [from, to), cancelled ones included.
func (c *Client) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	var out []Event
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeMin", from.UTC().Format(time.RFC3339))
		q.Set("timeMax", to.UTC().Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("showDeleted", "true")
		q.Set("maxResults", "250")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page struct {
			Items         []Event `json:"items"`
			NextPageToken string  `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, eventsPath(calendarID)+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	var ev Event
	if err := c.doJSON(ctx, http.MethodGet, eventsPath(calendarID)+"/"+url.PathEscape(eventID), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev Event) (*Event, error) {
	var out Event
	if err := c.doJSON(ctx, http.MethodPost, eventsPath(calendarID), ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) (*Event, error) {
	var out Event
	if err := c.doJSON(ctx, http.MethodPut, eventsPath(calendarID)+"/"+url.PathEscape(eventID), ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEvent removes an event; 404 and 410 mean it is already gone.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.doJSON(ctx, http.MethodDelete, eventsPath(calendarID)+"/"+url.PathEscape(eventID), nil, nil)
	if IsGone(err) {
		return nil
	}
	return err
}

// IsGone reports a remote event that no longer exists.
func IsGone(err error) bool {
	s := retry.StatusOf(err)
	return s == http.StatusNotFound || s == http.StatusGone
}

func eventsPath(calendarID string) string {
	if calendarID == "" {
		calendarID = "primary"
	}
	return "/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if c.token == nil {
		return oauth.ErrNotConnected
	}
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	resp, err := retry.Fetch(ctx, c.http, func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}, c.retry)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}
