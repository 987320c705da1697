package policy

import (
	"context"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/gate"
	"github.com/diewo77/portail-cabinet/internal/models"
)

// Ownable is implemented by resources that belong to one client.
type Ownable interface {
	OwnerID() uint
}

// OwnershipPolicy lets a client read what it owns. Clients never update or
// delete through the gate; those routes are staff only.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy { return &OwnershipPolicy{} }

func (p *OwnershipPolicy) Can(_ context.Context, subject auth.Principal, action gate.Action, resource any) bool {
	if !subject.IsClient() {
		return false
	}
	switch action {
	case gate.ActionUpdate, gate.ActionDelete:
		return false
	}
	if resource == nil {
		// list and create carry no resource; services scope them to the client
		return action == gate.ActionList || action == gate.ActionRequest
	}
	o, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return o.OwnerID() == subject.ID
}

// ClientLoader returns the current client record.
type ClientLoader func(ctx context.Context, id uint) (*models.Client, error)

// DocumentPolicy applies the client permissions to documents:
// ActionUpload takes the target *models.Dossier and needs can_upload;
// ActionView and ActionDownload take a *models.Document already scoped to
// the client's dossiers and honour visibility and sensitivity.
type DocumentPolicy struct {
	clients ClientLoader
}

func NewDocumentPolicy(clients ClientLoader) *DocumentPolicy {
	return &DocumentPolicy{clients: clients}
}

func (p *DocumentPolicy) Can(ctx context.Context, subject auth.Principal, action gate.Action, resource any) bool {
	if !subject.IsClient() {
		return false
	}
	c, err := p.clients(ctx, subject.ID)
	if err != nil || !c.IsActive {
		return false
	}
	switch action {
	case gate.ActionList:
		return true
	case gate.ActionUpload:
		d, ok := resource.(*models.Dossier)
		return ok && c.CanUpload && d.ClientID == c.ID
	case gate.ActionView, gate.ActionDownload:
		doc, ok := resource.(*models.Document)
		return ok && doc.VisibleTo(c.CanViewSensitiveDocs)
	}
	return false
}
