// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// UserContext contains the authenticated user of the current request.
// Every user belongs to exactly one organization (the lab).
type UserContext struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Email  string
	Roles  []string
}

type userContextKey struct{}

func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the authenticated user, or nil before Auth ran.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or uuid.Nil.
func GetUserID(ctx context.Context) uuid.UUID {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return uuid.Nil
}

// GetOrgID returns organization ID from context or uuid.Nil.
func GetOrgID(ctx context.Context) uuid.UUID {
	if u := GetUser(ctx); u != nil {
		return u.OrgID
	}
	return uuid.Nil
}

// HasAnyRole reports whether the request's user holds at least one of roles.
func HasAnyRole(ctx context.Context, roles ...string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return slices.ContainsFunc(u.Roles, func(r string) bool { return slices.Contains(roles, r) })
}
