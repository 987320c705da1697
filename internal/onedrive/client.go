// Package onedrive is a thin Microsoft Graph client for the firm's drive.
package onedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/portail-cabinet/internal/oauth"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

const (
	// SimpleUploadLimit is the largest body accepted by a single PUT.
	SimpleUploadLimit = 4 << 20
	// chunkSize must be a multiple of 320 KiB.
	chunkSize = 16 * (320 << 10)
)

// TokenProvider returns a bearer token or oauth.ErrNotConnected.
type TokenProvider func(ctx context.Context) (string, error)

type Options struct {
	BaseURL       string
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	Retry         retry.Options
}

// Client calls Graph v1.0 on behalf of the connected account.
type Client struct {
	baseURL string
	token   TokenProvider
	http    *http.Client
	retry   retry.Options
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, token: opts.TokenProvider, http: httpClient, retry: opts.Retry}
}

type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type Quota struct {
	Total     int64  `json:"total"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	Deleted   int64  `json:"deleted"`
	State     string `json:"state"`
}

type Drive struct {
	ID        string `json:"id"`
	DriveType string `json:"driveType"`
	Quota     Quota  `json:"quota"`
}

type ParentReference struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Item is a drive item: a file or a folder.
type Item struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Size                 int64           `json:"size"`
	WebURL               string          `json:"webUrl"`
	DownloadURL          string          `json:"@microsoft.graph.downloadUrl,omitempty"`
	ETag                 string          `json:"eTag,omitempty"`
	LastModifiedDateTime time.Time       `json:"lastModifiedDateTime"`
	ParentReference      ParentReference `json:"parentReference"`
	Folder               *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
}

func (i *Item) IsFolder() bool { return i.Folder != nil }

func (i *Item) MimeType() string {
	if i.File == nil {
		return ""
	}
	return i.File.MimeType
}

type itemList struct {
	Value    []Item `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Drive returns the default drive and its quota.
func (c *Client) Drive(ctx context.Context) (*Drive, error) {
	var d Drive
	if err := c.doJSON(ctx, http.MethodGet, "/me/drive", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	var it Item
	if err := c.doJSON(ctx, http.MethodGet, "/me/drive/items/"+url.PathEscape(id), nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetItemByPath resolves an absolute path from the drive root.
func (c *Client) GetItemByPath(ctx context.Context, path string) (*Item, error) {
	var it Item
	if err := c.doJSON(ctx, http.MethodGet, "/me/drive/root:"+escapePath(path)+":", nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateFolder creates name under parentID (the drive root when empty). An
// existing folder with the same name is returned instead.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*Item, error) {
	body := map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	}
	var it Item
	err := c.doJSON(ctx, http.MethodPost, itemPath(parentID)+"/children", body, &it)
	if retry.StatusOf(err) == http.StatusConflict {
		return c.childByName(ctx, parentID, name)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) childByName(ctx context.Context, parentID, name string) (*Item, error) {
	var it Item
	if err := c.doJSON(ctx, http.MethodGet, itemPath(parentID)+":/"+url.PathEscape(name)+":", nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// ListChildren returns every child of a folder, following pagination.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]Item, error) {
	var items []Item
	next := itemPath(folderID) + "/children?$top=200"
	for next != "" {
		var page itemList
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}
	return items, nil
}

// Upload stores content as name in parentID. Name collisions get renamed by Graph.
func (c *Client) Upload(ctx context.Context, parentID, name string, content []byte, mimeType string) (*Item, error) {
	if len(content) <= SimpleUploadLimit {
		return c.simpleUpload(ctx, parentID, name, content, mimeType)
	}
	return c.sessionUpload(ctx, parentID, name, content)
}

func (c *Client) simpleUpload(ctx context.Context, parentID, name string, content []byte, mimeType string) (*Item, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	path := itemPath(parentID) + ":/" + url.PathEscape(name) + ":/content?@microsoft.graph.conflictBehavior=rename"
	resp, err := c.send(ctx, http.MethodPut, path, content, mimeType, true, nil)
	if err != nil {
		return nil, err
	}
	var it Item
	if err := json.Unmarshal(resp.Body, &it); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &it, nil
}

func (c *Client) sessionUpload(ctx context.Context, parentID, name string, content []byte) (*Item, error) {
	body := map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "rename",
			"name":                              name,
		},
	}
	var session struct {
		UploadURL string `json:"uploadUrl"`
	}
	if err := c.doJSON(ctx, http.MethodPost, itemPath(parentID)+":/"+url.PathEscape(name)+":/createUploadSession", body, &session); err != nil {
		return nil, err
	}
	if session.UploadURL == "" {
		return nil, errors.New("onedrive: empty upload url")
	}
	total := len(content)
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		headers := map[string]string{
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", start, end-1, total),
		}
		// The upload URL is pre-authenticated; sending a bearer token is rejected.
		resp, err := c.send(ctx, http.MethodPut, session.UploadURL, content[start:end], "application/octet-stream", false, headers)
		if err != nil {
			return nil, err
		}
		if end == total {
			var it Item
			if err := json.Unmarshal(resp.Body, &it); err != nil {
				return nil, fmt.Errorf("decode upload response: %w", err)
			}
			return &it, nil
		}
	}
	return nil, errors.New("onedrive: upload session ended without item")
}

func (c *Client) Rename(ctx context.Context, id, name string) (*Item, error) {
	var it Item
	if err := c.doJSON(ctx, http.MethodPatch, "/me/drive/items/"+url.PathEscape(id), map[string]any{"name": name}, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Move renames an item and reparents it under parentID in one request.
func (c *Client) Move(ctx context.Context, id, parentID, name string) (*Item, error) {
	body := map[string]any{
		"name":            name,
		"parentReference": map[string]string{"id": parentID},
	}
	var it Item
	if err := c.doJSON(ctx, http.MethodPatch, "/me/drive/items/"+url.PathEscape(id), body, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Delete removes an item. A missing item counts as deleted.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/me/drive/items/"+url.PathEscape(id), nil, nil)
	if retry.IsNotFound(err) {
		return nil
	}
	return err
}

// DownloadURL returns a short-lived pre-authenticated download link.
func (c *Client) DownloadURL(ctx context.Context, id string) (string, error) {
	it, err := c.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	if it.DownloadURL == "" {
		return "", fmt.Errorf("onedrive: item %s has no download url", id)
	}
	return it.DownloadURL, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, path, payload, contentType, true, nil)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType string, authorize bool, headers map[string]string) (*retry.Response, error) {
	var token string
	if authorize {
		if c.token == nil {
			return nil, oauth.ErrNotConnected
		}
		var err error
		if token, err = c.token(ctx); err != nil {
			return nil, err
		}
	}
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	return retry.Fetch(ctx, c.http, func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}, c.retry)
}

func itemPath(id string) string {
	if id == "" {
		return "/me/drive/root"
	}
	return "/me/drive/items/" + url.PathEscape(id)
}

// escapePath escapes each segment and keeps the separators.
func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segs, "/")
}
