package gate

import "context"

// Policy defines authorization rules for a resource type.
// For list/create, resource may be nil (context-only check).
type Policy[U any] interface {
	Can(ctx context.Context, subject U, action Action, resource any) bool
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc[U any] func(ctx context.Context, subject U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, subject U, action Action, resource any) bool {
	return f(ctx, subject, action, resource)
}

// Before hooks run ahead of every policy. Returning true grants the action
// without consulting the policy.
type Before[U any] func(ctx context.Context, subject U, action Action, resourceType string) bool
