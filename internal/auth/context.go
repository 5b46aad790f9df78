package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AuthContextKey is the key for storing the resolved AuthContext
	AuthContextKey contextKey = "auth_context"
)

// AuthContext is the trusted request identity produced by the session
// resolver. A request either carries a fully populated AuthContext or none
// at all; there is no half-authenticated state.
type AuthContext struct {
	UserID          uuid.UUID
	Email           string
	Name            string
	Role            string
	SessionID       *uuid.UUID
	SessionIssuedAt *time.Time
	Entitlements    []string
	IsDevBypass     bool
}

// IsAdmin reports admin standing: the coarse role or the admin entitlement.
func (c *AuthContext) IsAdmin() bool {
	return c.Role == models.RoleAdmin || c.HasEntitlement(models.EntitlementAdminAccess)
}

// HasEntitlement checks exact string membership.
func (c *AuthContext) HasEntitlement(name string) bool {
	for _, e := range c.Entitlements {
		if e == name {
			return true
		}
	}
	return false
}

// WithAuthContext attaches the context value to a request context.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// FromRequest extracts the AuthContext, or nil for anonymous requests.
func FromRequest(r *http.Request) *AuthContext {
	ac, ok := r.Context().Value(AuthContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return ac
}
