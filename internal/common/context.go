package common

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey namespaces values carried on a request context.
type ContextKey string

const (
	TenantIDKey       ContextKey = "tenant_id"
	UserIDKey         ContextKey = "user_id"
	BrandKey          ContextKey = "brand"
	RolesKey          ContextKey = "roles"
	PermissionsKey    ContextKey = "permissions"
	AuthenticatedKey  ContextKey = "authenticated"
	CapabilitiesKey   ContextKey = "capabilities"
	RequestIDKey      ContextKey = "x-request-id"
	CorrelationIDKey  ContextKey = "x-correlation-id"
)

// IsAuthenticated reports whether the context carries a successful
// authentication result placed there by the gateway (C11).
func IsAuthenticated(ctx context.Context) bool {
	v, ok := ctx.Value(AuthenticatedKey).(bool)
	return ok && v
}

// GetResourceOwner reconstructs the ResourceOwner from context values the
// gateway's authentication middleware injects after validating a token.
func GetResourceOwner(ctx context.Context) ResourceOwner {
	ro := ResourceOwner{}
	if tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID); ok {
		ro.TenantID = tenantID
	}
	if userID, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		ro.UserID = userID
	}
	return ro
}

// HasCapability reports whether the caller's context carries the named
// capability (e.g. "admin", "system") — used by the Config Store (C1) to
// gate `includeSensitive` reads.
func HasCapability(ctx context.Context, capability string) bool {
	caps, ok := ctx.Value(CapabilitiesKey).([]string)
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == capability {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the caller holds at least one of the given
// roles, per the gateway's `hasAnyRole(...)` declarative guard (spec §4.11).
func HasAnyRole(ctx context.Context, roles ...string) bool {
	held, ok := ctx.Value(RolesKey).([]string)
	if !ok {
		return false
	}
	want := make(map[string]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	for _, r := range held {
		if want[r] {
			return true
		}
	}
	return false
}

// WithResourceOwner returns a child context carrying the given owner's
// tenant/user identifiers, for tests and internal callers constructing a
// context without going through the gateway.
func WithResourceOwner(ctx context.Context, ro ResourceOwner) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, ro.TenantID)
	ctx = context.WithValue(ctx, UserIDKey, ro.UserID)
	ctx = context.WithValue(ctx, AuthenticatedKey, true)
	return ctx
}
