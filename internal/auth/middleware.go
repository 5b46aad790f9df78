package auth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/pkg/httpapi"
	pkglogger "github.com/ignitionhq/ignition/pkg/logger"
)

// SessionStore is the session lookup surface the resolver needs.
type SessionStore interface {
	GetByToken(ctx context.Context, token string) (*models.Session, error)
}

// UserStore is the user lookup surface the resolver and guards need.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	HasPasskey(ctx context.Context, userID uuid.UUID) (bool, error)
	MarkTosAccepted(ctx context.Context, userID uuid.UUID, version string) error
}

// EntitlementStore loads the non-expired role names granted to a user.
type EntitlementStore interface {
	GetEntitlements(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// ActivityToucher records last-activity fire-and-forget; it must never block
// or fail the request.
type ActivityToucher interface {
	Touch(sessionID, userID uuid.UUID)
}

// ResolverConfig controls session resolution behavior.
type ResolverConfig struct {
	Env               string
	DevBypass         bool
	InactivityTimeout time.Duration
}

// SessionResolver turns a session cookie into an AuthContext, or leaves the
// request anonymous. It never rejects by itself; guards downstream do.
type SessionResolver struct {
	sessions SessionStore
	users    UserStore
	roles    EntitlementStore
	toucher  ActivityToucher
	cfg      ResolverConfig
	logger   *slog.Logger
}

func NewSessionResolver(
	sessions SessionStore,
	users UserStore,
	roles EntitlementStore,
	toucher ActivityToucher,
	cfg ResolverConfig,
	logger *slog.Logger,
) *SessionResolver {
	return &SessionResolver{
		sessions: sessions,
		users:    users,
		roles:    roles,
		toucher:  toucher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Middleware resolves the session cookie on every request.
func (sr *SessionResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ac := sr.devBypassContext(r); ac != nil {
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
			return
		}

		token := SessionTokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ac := sr.resolve(r.Context(), token)
		if ac == nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

// resolve performs the token → AuthContext lookup chain. Any failure drops
// the session silently and continues anonymously.
func (sr *SessionResolver) resolve(ctx context.Context, token string) *AuthContext {
	session, err := sr.sessions.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			sr.logger.Warn("session lookup failed",
				pkglogger.TokenAttr("token", token),
				slog.Any("error", err))
		}
		return nil
	}

	if session.Inactive(time.Now(), sr.cfg.InactivityTimeout) {
		return nil
	}

	user, err := sr.users.GetByID(ctx, session.UserID)
	if err != nil {
		sr.logger.Warn("session user missing",
			slog.String("session_id", session.ID.String()),
			slog.Any("error", err))
		return nil
	}

	entitlements, err := sr.roles.GetEntitlements(ctx, user.ID)
	if err != nil {
		sr.logger.Warn("entitlement load failed",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err))
		return nil
	}

	sessionID := session.ID
	issuedAt := session.CreatedAt
	ac := &AuthContext{
		UserID:          user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Role:            user.Role,
		SessionID:       &sessionID,
		SessionIssuedAt: &issuedAt,
		Entitlements:    entitlements,
		IsDevBypass:     false,
	}

	// Fire-and-forget activity touch; failure never reaches the caller.
	sr.toucher.Touch(session.ID, user.ID)

	return ac
}

// devBypassContext synthesizes an admin context when all three bypass
// conditions hold: development environment, loopback Host, and the explicit
// flag. In any other environment it is unconditionally off.
func (sr *SessionResolver) devBypassContext(r *http.Request) *AuthContext {
	if sr.cfg.Env != "development" || !sr.cfg.DevBypass {
		return nil
	}
	if !isLoopbackHost(r.Host) {
		return nil
	}
	return &AuthContext{
		UserID:       uuid.Nil,
		Email:        "dev@localhost",
		Name:         "Dev Bypass",
		Role:         models.RoleAdmin,
		SessionID:    nil,
		Entitlements: []string{models.EntitlementAdminAccess},
		IsDevBypass:  true,
	}
}

func isLoopbackHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host == "localhost" || host == "127.0.0.1"
}

// onboarding and webauthn paths are exempt from the passkey requirement so a
// user can actually register one.
func passkeyExemptPath(path string) bool {
	return strings.Contains(path, "/onboarding") || strings.Contains(path, "/webauthn")
}

// RequireAuth passes only approved, authenticated users. After onboarding
// completes, a registered passkey is mandatory outside the exempt paths.
// A first authenticated request best-effort accepts ToS at version 1.0.
func RequireAuth(users UserStore, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := FromRequest(r)
			if ac == nil {
				httpapi.WriteUnauthorized(w, "Authentication required")
				return
			}

			if ac.IsDevBypass {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetByID(r.Context(), ac.UserID)
			if err != nil {
				httpapi.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !user.Approved {
				httpapi.WriteForbidden(w, "Account pending approval")
				return
			}

			if user.OnboardingStatus == models.OnboardingCompleted && !passkeyExemptPath(r.URL.Path) {
				hasPasskey, err := users.HasPasskey(r.Context(), user.ID)
				if err != nil {
					logger.Warn("passkey lookup failed",
						slog.String("user_id", user.ID.String()),
						slog.Any("error", err))
					httpapi.WriteInternalError(w, "Internal server error")
					return
				}
				if !hasPasskey {
					httpapi.WriteForbidden(w, "Passkey registration required")
					return
				}
			}

			if !user.TosAccepted {
				// Best-effort: unblock the first authenticated request.
				if err := users.MarkTosAccepted(r.Context(), user.ID, "1.0"); err != nil {
					logger.Warn("tos auto-accept failed",
						slog.String("user_id", user.ID.String()),
						slog.Any("error", err))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin passes iff the context holds admin standing.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := FromRequest(r)
		if ac == nil {
			httpapi.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !ac.IsAdmin() {
			httpapi.WriteForbidden(w, "forbidden: insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePolicy evaluates an RBAC policy against the attached context.
func RequirePolicy(policy Policy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := FromRequest(r)
			if ac == nil {
				httpapi.WriteUnauthorized(w, "Authentication required")
				return
			}
			if !policy.Allows(ac) {
				httpapi.WriteForbidden(w, "forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
