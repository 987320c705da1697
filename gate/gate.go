// Package gate is a small policy registry. Each resource type registers a
// Policy; Before hooks can grant everything to privileged subjects.
//
// The subject type is generic so the same gate works with plain ids or
// richer principals such as auth.Principal.
package gate

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized means the subject may not perform the action.
	ErrUnauthorized = errors.New("gate: action not allowed")
	// ErrNoPolicyDefined means nothing was registered for the resource type.
	ErrNoPolicyDefined = errors.New("gate: no policy registered")
)

// Gate is the central authorization checkpoint.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
	before   []Before[U]
}

// NewGate creates an empty Gate ready to register policies.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds a policy for a resource type, replacing any previous one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// BeforeAll adds a hook evaluated before policies.
func (g *Gate[U]) BeforeAll(h Before[U]) {
	g.before = append(g.before, h)
}

// Authorize returns ErrUnauthorized for a zero subject or a denied action,
// and ErrNoPolicyDefined if the resource type is unknown.
func (g *Gate[U]) Authorize(ctx context.Context, subject U, action Action, resourceType string, resource any) error {
	var zero U
	if subject == zero {
		return ErrUnauthorized
	}
	for _, h := range g.before {
		if h(ctx, subject, action, resourceType) {
			return nil
		}
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, subject, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, subject U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, subject, action, resourceType, resource) == nil
}
