package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/portail-cabinet/gate"
)

type subject struct {
	ID    uint
	Admin bool
}

type ownerPolicy struct{}

func (ownerPolicy) Can(_ context.Context, s subject, action gate.Action, resource any) bool {
	owner, ok := resource.(uint)
	if !ok {
		return action == gate.ActionList
	}
	return owner == s.ID && action != gate.ActionDelete
}

func newGate() *gate.Gate[subject] {
	g := gate.NewGate[subject]()
	g.Register("dossier", ownerPolicy{})
	g.BeforeAll(func(_ context.Context, s subject, _ gate.Action, _ string) bool { return s.Admin })
	return g
}

func TestAuthorize_ZeroSubject(t *testing.T) {
	err := newGate().Authorize(context.Background(), subject{}, gate.ActionView, "dossier", uint(1))
	if !errors.Is(err, gate.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthorize_NoPolicy(t *testing.T) {
	err := newGate().Authorize(context.Background(), subject{ID: 1}, gate.ActionView, "unknown", nil)
	if !errors.Is(err, gate.ErrNoPolicyDefined) {
		t.Fatalf("expected ErrNoPolicyDefined, got %v", err)
	}
}

func TestAuthorize_Owner(t *testing.T) {
	g := newGate()
	ctx := context.Background()
	tests := []struct {
		name     string
		s        subject
		action   gate.Action
		resource any
		want     bool
	}{
		{"owner views", subject{ID: 1}, gate.ActionView, uint(1), true},
		{"stranger views", subject{ID: 2}, gate.ActionView, uint(1), false},
		{"owner deletes", subject{ID: 1}, gate.ActionDelete, uint(1), false},
		{"list without resource", subject{ID: 1}, gate.ActionList, nil, true},
		{"admin bypass", subject{ID: 9, Admin: true}, gate.ActionDelete, uint(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Can(ctx, tt.s, tt.action, "dossier", tt.resource); got != tt.want {
				t.Errorf("Can() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyFunc(t *testing.T) {
	g := gate.NewGate[uint]()
	g.Register("note", gate.PolicyFunc[uint](func(_ context.Context, id uint, a gate.Action, _ any) bool {
		return a == gate.ActionView
	}))
	if !g.Can(context.Background(), 3, gate.ActionView, "note", nil) {
		t.Fatal("view should be allowed")
	}
	if g.Can(context.Background(), 3, gate.ActionUpdate, "note", nil) {
		t.Fatal("update should be denied")
	}
}
