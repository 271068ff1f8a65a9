// Package identity carries the authenticated caller of a request through context.
package identity

import (
	"context"
	"errors"
	"strings"
)

// Role is the authorization scope of a caller.
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ErrNoActor is returned when the context carries no authenticated caller.
var ErrNoActor = errors.New("no authenticated actor in context")

// ParseRole validates a role claim.
func ParseRole(raw string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleOwner, RoleStaff, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsStaff reports whether the actor acts for the care facility.
// Admins inherit staff permissions.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// IsAdmin reports whether the actor may use administrative overrides.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type actorKey struct{}

// WithActor returns a child context carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext extracts the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || strings.TrimSpace(actor.ID) == "" {
		return Actor{}, false
	}
	return actor, true
}

// MustFromContext is FromContext returning ErrNoActor when absent.
func MustFromContext(ctx context.Context) (Actor, error) {
	actor, ok := FromContext(ctx)
	if !ok {
		return Actor{}, ErrNoActor
	}
	return actor, nil
}
