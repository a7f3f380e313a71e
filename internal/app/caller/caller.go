// Package caller carries the identity of whoever issued a command. Only the
// role matters to the reservation engine: administrators get the override.
package caller

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

var (
	ErrAnonymous = errors.New("caller: authentication required")
	ErrForbidden = errors.New("caller: insufficient permissions")
)

type Caller struct {
	ID   string
	Name string
	Role string
}

func (c Caller) IsAdmin() bool {
	return strings.EqualFold(c.Role, RoleAdmin)
}

func (c Caller) Known() bool { return c.ID != "" }

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(ctxKey{}).(Caller)
	return c
}

// AdminOnly is implemented by messages that require the admin role.
type AdminOnly interface {
	AdminOnly() bool
}

// RoleAuthorizer rejects anonymous callers and non-admins sending admin-only messages.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	c := FromContext(ctx)
	if !c.Known() {
		return ErrAnonymous
	}
	if m, ok := message.(AdminOnly); ok && m.AdminOnly() && !c.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
