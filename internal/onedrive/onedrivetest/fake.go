// Package onedrivetest provides an in-memory drive for tests.
package onedrivetest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/portail-cabinet/internal/onedrive"
	"github.com/diewo77/portail-cabinet/internal/retry"
)

// Drive is a fake OneDrive keyed by generated item ids.
type Drive struct {
	mu      sync.Mutex
	items   map[string]*node
	seq     int
	Calls   map[string]int
	FailOn  map[string]error
	Content map[string][]byte
}

type node struct {
	item     onedrive.Item
	parent   string
	children []string
}

func New() *Drive {
	return &Drive{items: map[string]*node{}, Calls: map[string]int{}, FailOn: map[string]error{}, Content: map[string][]byte{}}
}

func notFound(id string) error {
	return &retry.HTTPError{StatusCode: http.StatusNotFound, Body: "itemNotFound " + id}
}

func (d *Drive) call(name string) error {
	d.Calls[name]++
	return d.FailOn[name]
}

func (d *Drive) add(parent, name string, folder bool, size int64, mime string) *node {
	d.seq++
	id := fmt.Sprintf("item-%d", d.seq)
	it := onedrive.Item{
		ID:                   id,
		Name:                 name,
		Size:                 size,
		WebURL:               "https://onedrive.test/" + id,
		DownloadURL:          "https://download.test/" + id,
		LastModifiedDateTime: time.Now(),
		ParentReference:      onedrive.ParentReference{ID: parent},
	}
	if folder {
		it.Folder = &struct {
			ChildCount int `json:"childCount"`
		}{}
	} else {
		it.File = &struct {
			MimeType string `json:"mimeType"`
		}{MimeType: mime}
	}
	n := &node{item: it, parent: parent}
	d.items[id] = n
	if p, ok := d.items[parent]; ok {
		p.children = append(p.children, id)
	}
	return n
}

func (d *Drive) child(parent, name string) *node {
	for _, n := range d.items {
		if n.parent == parent && strings.EqualFold(n.item.Name, name) {
			return n
		}
	}
	return nil
}

func (d *Drive) GetItem(_ context.Context, id string) (*onedrive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetItem"); err != nil {
		return nil, err
	}
	n, ok := d.items[id]
	if !ok {
		return nil, notFound(id)
	}
	it := n.item
	return &it, nil
}

func (d *Drive) CreateFolder(_ context.Context, parentID, name string) (*onedrive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateFolder"); err != nil {
		return nil, err
	}
	if parentID != "" {
		if _, ok := d.items[parentID]; !ok {
			return nil, notFound(parentID)
		}
	}
	if n := d.child(parentID, name); n != nil {
		it := n.item
		return &it, nil
	}
	it := d.add(parentID, name, true, 0, "").item
	return &it, nil
}

func (d *Drive) ListChildren(_ context.Context, folderID string) ([]onedrive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("ListChildren"); err != nil {
		return nil, err
	}
	p, ok := d.items[folderID]
	if !ok {
		return nil, notFound(folderID)
	}
	var out []onedrive.Item
	for _, id := range p.children {
		if n, ok := d.items[id]; ok {
			out = append(out, n.item)
		}
	}
	return out, nil
}

func (d *Drive) Upload(_ context.Context, parentID, name string, content []byte, mimeType string) (*onedrive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Upload"); err != nil {
		return nil, err
	}
	if _, ok := d.items[parentID]; !ok {
		return nil, notFound(parentID)
	}
	n := d.add(parentID, name, false, int64(len(content)), mimeType)
	d.Content[n.item.ID] = content
	it := n.item
	return &it, nil
}

func (d *Drive) Rename(_ context.Context, id, name string) (*onedrive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Rename"); err != nil {
		return nil, err
	}
	n, ok := d.items[id]
	if !ok {
		return nil, notFound(id)
	}
	n.item.Name = name
	it := n.item
	return &it, nil
}

func (d *Drive) Move(_ context.Context, id, parentID, name string) (*onedrive.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Move"); err != nil {
		return nil, err
	}
	n, ok := d.items[id]
	if !ok {
		return nil, notFound(id)
	}
	if _, ok := d.items[parentID]; !ok {
		return nil, notFound(parentID)
	}
	if c := d.child(parentID, name); c != nil && c != n {
		return nil, &retry.HTTPError{StatusCode: http.StatusConflict, Body: "nameAlreadyExists " + name}
	}
	d.detach(n)
	n.parent = parentID
	n.item.Name = name
	n.item.ParentReference = onedrive.ParentReference{ID: parentID}
	d.items[parentID].children = append(d.items[parentID].children, id)
	it := n.item
	return &it, nil
}

func (d *Drive) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Delete"); err != nil {
		return err
	}
	d.remove(id)
	return nil
}

func (d *Drive) remove(id string) {
	n, ok := d.items[id]
	if !ok {
		return
	}
	for _, c := range n.children {
		d.remove(c)
	}
	delete(d.items, id)
	d.detach(n)
}

func (d *Drive) detach(n *node) {
	p, ok := d.items[n.parent]
	if !ok {
		return
	}
	for i, c := range p.children {
		if c == n.item.ID {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

func (d *Drive) DownloadURL(ctx context.Context, id string) (string, error) {
	it, err := d.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	return it.DownloadURL, nil
}

func (d *Drive) Drive(_ context.Context) (*onedrive.Drive, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Drive"); err != nil {
		return nil, err
	}
	return &onedrive.Drive{ID: "drive", DriveType: "business", Quota: onedrive.Quota{Total: 1 << 30, Used: 1 << 20, Remaining: 1<<30 - 1<<20, State: "normal"}}, nil
}

// PutFile adds a file out of band, as if a user dropped it in OneDrive.
func (d *Drive) PutFile(parentID, name string, size int64) onedrive.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.add(parentID, name, false, size, "application/pdf").item
}

// Remove deletes an item out of band.
func (d *Drive) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(id)
}

// SetName renames an item out of band.
func (d *Drive) SetName(id, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.items[id]; ok {
		n.item.Name = name
	}
}

// Parent returns the parent id of an item.
func (d *Drive) Parent(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.items[id]; ok {
		return n.parent
	}
	return ""
}

// Has reports whether id exists.
func (d *Drive) Has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.items[id]
	return ok
}

// Count returns the number of items.
func (d *Drive) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
