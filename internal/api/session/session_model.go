package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rndhub/go-rnd-hub/internal/types"
)

// Session is one server-side authenticated session row. Token is the only
// value the browser ever holds; everything else stays on the server.
type Session struct {
	Token     uuid.UUID
	UserID    uuid.UUID
	Username  string
	Role      types.Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Identity is the caller identity handlers read from the request context.
type Identity struct {
	ID       uuid.UUID
	Username string
	Role     types.Role
}

type contextKey string

const identityKey contextKey = "sessionIdentity"

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentityFromContext returns the authenticated identity, if any.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// LandingRoute maps a role onto its post-login destination.
func LandingRoute(role types.Role) string {
	switch role {
	case types.RoleAdmin:
		return "/admin/users"
	case types.RoleProjectManager:
		return "/projects"
	default:
		return "/dashboard"
	}
}
