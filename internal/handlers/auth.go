package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/services"
	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// AuthHandler serves the sign-in handshake, session mirror, and logout.
type AuthHandler struct {
	handshake *services.HandshakeService
	sessions  *services.SessionService
	claims    *services.ClaimService
	cookies   auth.CookieConfig
	logger    *slog.Logger
}

func NewAuthHandler(handshake *services.HandshakeService, sessions *services.SessionService, claims *services.ClaimService, cookies auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		handshake: handshake,
		sessions:  sessions,
		claims:    claims,
		cookies:   cookies,
		logger:    logger,
	}
}

// UserResponse is the session mirror's user shape.
type UserResponse struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Name             string  `json:"name"`
	Role             string  `json:"role"`
	OnboardingStatus string  `json:"onboarding_status,omitempty"`
	AvatarURL        *string `json:"avatar_url,omitempty"`
}

// SessionResponse is the session mirror body: user is null when anonymous.
type SessionResponse struct {
	User *UserResponse `json:"user"`
}

// ProvidersResponse lists the configured identity providers.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// ClaimAdminRequest carries the one-shot bootstrap key.
type ClaimAdminRequest struct {
	Key string `json:"key" validate:"required"`
}

// AcceptTosRequest records ToS acceptance at an explicit version.
type AcceptTosRequest struct {
	Version string `json:"version" validate:"required,max=16"`
}

// Providers handles GET /auth/providers.
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, ProvidersResponse{Providers: h.handshake.Providers()})
}

// Signin handles GET /auth/signin/{provider}: starts the handshake and
// redirects the browser to the provider's authorization URL.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	redirectURI := r.URL.Query().Get("redirect_uri")

	authURL, err := h.handshake.Begin(r.Context(), provider, redirectURI)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRedirectNotAllowed):
			httpapi.WriteBadRequest(w, "redirect_uri is not allowed")
		case errors.Is(err, models.ErrBadRequest):
			httpapi.WriteBadRequest(w, "Unknown provider")
		default:
			h.logger.Error("failed to start oauth handshake",
				slog.String("provider", provider),
				slog.Any("error", err))
			httpapi.WriteInternalError(w, "Failed to start sign-in")
		}
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /auth/callback/{provider}. Every failure redirects to
// the frontend error page rather than rendering JSON: the browser is
// mid-navigation here.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		code := services.MapProviderError(providerErr)
		http.Redirect(w, r, h.handshake.ErrorRedirectURL(code, provider, providerErr), http.StatusFound)
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		http.Redirect(w, r,
			h.handshake.ErrorRedirectURL(services.OAuthErrCodeCallback, provider, "missing code or state"),
			http.StatusFound)
		return
	}

	ip := httpapi.ExtractClientIP(r)
	ua := r.UserAgent()

	session, redirect, err := h.handshake.Complete(r.Context(), provider, code, state, &ua, &ip)
	if err != nil {
		// Every post-exchange failure collapses into the generic callback
		// code; the details parameter stays user-safe.
		details := ""
		switch {
		case errors.Is(err, models.ErrStateNotFound):
			details = "invalid or expired state"
		case errors.Is(err, models.ErrEmailNotVerified):
			details = "email not verified"
		}
		h.logger.Warn("oauth callback failed",
			slog.String("provider", provider),
			slog.Any("error", err))
		http.Redirect(w, r,
			h.handshake.ErrorRedirectURL(services.OAuthErrCodeCallback, provider, details),
			http.StatusFound)
		return
	}

	auth.SetSessionCookie(w, session.Token, h.sessionCookie(session.ExpiresAt))
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Session handles GET /auth/session: the frontend's auth mirror. Always 200;
// anonymous requests get {"user": null}.
func (h *AuthHandler) Session(users auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac := auth.FromRequest(r)
		if ac == nil {
			httpapi.WriteJSON(w, http.StatusOK, SessionResponse{User: nil})
			return
		}

		resp := UserResponse{
			ID:    ac.UserID.String(),
			Email: ac.Email,
			Name:  ac.Name,
			Role:  ac.Role,
		}
		if !ac.IsDevBypass {
			if user, err := users.GetByID(r.Context(), ac.UserID); err == nil {
				resp.OnboardingStatus = user.OnboardingStatus
				resp.AvatarURL = user.AvatarURL
			}
		}
		httpapi.WriteJSON(w, http.StatusOK, SessionResponse{User: &resp})
	}
}

// Signout handles POST /auth/signout: deletes the session row and clears the
// cookie. Idempotent; an anonymous call still clears the cookie and 204s.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)
	if ac != nil && ac.SessionID != nil {
		ip := httpapi.ExtractClientIP(r)
		ua := r.UserAgent()
		if err := h.sessions.Logout(r.Context(), *ac.SessionID, ac.UserID, &ip, &ua); err != nil {
			h.logger.Error("failed to delete session on signout",
				slog.String("session_id", ac.SessionID.String()),
				slog.Any("error", err))
		}
	}

	auth.ClearSessionCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// AcceptTos handles POST /auth/accept-tos. Acceptance rotates the session,
// so the response carries a fresh cookie.
func (h *AuthHandler) AcceptTos(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)
	if ac == nil || ac.SessionID == nil {
		httpapi.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req AcceptTosRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		httpapi.WriteValidationError(w, fields)
		return
	}

	session, err := h.sessions.AcceptTos(r.Context(), *ac.SessionID, ac.UserID, req.Version)
	if err != nil {
		h.logger.Error("failed to accept tos",
			slog.String("user_id", ac.UserID.String()),
			slog.Any("error", err))
		httpapi.WriteInternalError(w, "Failed to record acceptance")
		return
	}

	auth.SetSessionCookie(w, session.Token, h.sessionCookie(session.ExpiresAt))
	w.WriteHeader(http.StatusNoContent)
}

// ClaimAdmin handles POST /auth/claim-admin: one-shot first-admin bootstrap.
func (h *AuthHandler) ClaimAdmin(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)
	if ac == nil {
		httpapi.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ClaimAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		httpapi.WriteValidationError(w, fields)
		return
	}

	if err := h.claims.Claim(r.Context(), ac.UserID, req.Key); err != nil {
		if errors.Is(err, models.ErrForbidden) {
			httpapi.WriteForbidden(w, "forbidden: insufficient permissions")
			return
		}
		h.logger.Error("admin claim failed",
			slog.String("user_id", ac.UserID.String()),
			slog.Any("error", err))
		httpapi.WriteInternalError(w, "Claim failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionCookie derives the cookie Max-Age from the session's remaining TTL.
func (h *AuthHandler) sessionCookie(expiresAt time.Time) auth.CookieConfig {
	cfg := h.cookies
	if ttl := time.Until(expiresAt); ttl > 0 {
		cfg.MaxAge = int(ttl.Seconds())
	}
	return cfg
}
