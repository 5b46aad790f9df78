package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/oauth"
	pkglogger "github.com/ignitionhq/ignition/pkg/logger"
	"golang.org/x/oauth2"
)

// Error codes surfaced on the frontend error page after a failed handshake.
// Provider-side refusals map to distinct codes; every failure past the
// provider error check collapses into the generic OAuthCallback code.
const (
	OAuthErrCodeDenied      = "OAuthDenied"
	OAuthErrCodeServerError = "OAuthServerError"
	OAuthErrCodeUnavailable = "OAuthUnavailable"
	OAuthErrCodeProvider    = "OAuthError"
	OAuthErrCodeCallback    = "OAuthCallback"
)

// HandshakeStateStore persists pending handshakes in the primary database so
// any replica can complete a flow another replica started.
type HandshakeStateStore interface {
	Upsert(ctx context.Context, state *models.OAuthState) error
	Take(ctx context.Context, stateKey string) (*models.OAuthState, error)
}

// AccountStore links provider identities to local users.
type AccountStore interface {
	GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*models.Account, error)
	Upsert(ctx context.Context, account *models.Account) (*models.Account, error)
}

// UserDirectory is the user lookup surface for identity resolution.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// HandshakeService coordinates the OAuth sign-in flow: state issuance with
// PKCE on signin, atomic single-use state consumption on callback, identity
// resolution, and session issuance.
type HandshakeService struct {
	providers         map[string]oauth.Provider
	states            HandshakeStateStore
	accounts          AccountStore
	users             UserDirectory
	sessions          *SessionService
	vaults            *VaultService
	audit             *AuditService
	logger            *slog.Logger
	redirectAllowlist []string
	defaultRedirect   string
	frontendURL       string
	stateTTL          time.Duration
}

func NewHandshakeService(
	providers map[string]oauth.Provider,
	states HandshakeStateStore,
	accounts AccountStore,
	users UserDirectory,
	sessions *SessionService,
	vaults *VaultService,
	audit *AuditService,
	logger *slog.Logger,
	redirectAllowlist []string,
	defaultRedirect string,
	frontendURL string,
	stateTTL time.Duration,
) *HandshakeService {
	return &HandshakeService{
		providers:         providers,
		states:            states,
		accounts:          accounts,
		users:             users,
		sessions:          sessions,
		vaults:            vaults,
		audit:             audit,
		logger:            logger,
		redirectAllowlist: redirectAllowlist,
		defaultRedirect:   defaultRedirect,
		frontendURL:       frontendURL,
		stateTTL:          stateTTL,
	}
}

// Providers lists the configured provider names, sorted for stable output.
func (s *HandshakeService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Begin starts a handshake: validates the post-login redirect against the
// allowlist, persists state key plus PKCE verifier with a short TTL, and
// returns the provider authorization URL. An empty redirect falls back to
// the configured default; a disallowed one is rejected outright.
func (s *HandshakeService) Begin(ctx context.Context, providerName, redirectURI string) (string, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return "", err
	}

	if redirectURI == "" {
		redirectURI = s.defaultRedirect
	}
	if !auth.RedirectURIAllowed(redirectURI, s.redirectAllowlist) {
		return "", models.ErrRedirectNotAllowed
	}

	stateKey, err := auth.GenerateStateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate state key: %w", err)
	}
	verifier := oauth.GenerateVerifier()

	now := time.Now()
	if err := s.states.Upsert(ctx, &models.OAuthState{
		StateKey:     stateKey,
		PKCEVerifier: verifier,
		RedirectURI:  redirectURI,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.stateTTL),
	}); err != nil {
		return "", err
	}

	s.logger.Info("oauth handshake started",
		slog.String("provider", providerName),
		pkglogger.TokenAttr("state", stateKey))

	return provider.AuthCodeURL(stateKey, verifier), nil
}

// Complete finishes the handshake on callback: consumes the state exactly
// once, redeems the code with the stored verifier, resolves the provider
// identity to a local user, and issues a session. The returned redirect is
// the allowlisted target captured at signin.
func (s *HandshakeService) Complete(ctx context.Context, providerName, code, stateKey string, userAgent, ipAddress *string) (*models.Session, string, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return nil, "", err
	}

	state, err := s.states.Take(ctx, stateKey)
	if err != nil {
		return nil, "", err
	}

	token, err := provider.Exchange(ctx, code, state.PKCEVerifier)
	if err != nil {
		s.logger.Warn("oauth code exchange failed",
			slog.String("provider", providerName),
			slog.Any("error", err))
		return nil, "", fmt.Errorf("code exchange failed: %w", err)
	}

	info, err := provider.FetchUserInfo(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch user info: %w", err)
	}
	if !info.EmailVerified {
		return nil, "", models.ErrEmailNotVerified
	}

	user, created, err := s.resolveIdentity(ctx, providerName, info)
	if err != nil {
		return nil, "", err
	}

	if _, err := s.upsertAccount(ctx, user.ID, providerName, info, token); err != nil {
		return nil, "", err
	}

	if created && s.vaults != nil {
		if _, err := s.vaults.EnsureVault(ctx, user.ID); err != nil {
			// The vault provisions lazily on first vault operation too.
			s.logger.Warn("failed to provision vault at signup",
				slog.String("user_id", user.ID.String()),
				slog.Any("error", err))
		}
	}

	session, err := s.sessions.Issue(ctx, user.ID, userAgent, ipAddress)
	if err != nil {
		return nil, "", err
	}

	s.audit.Event(ctx, models.AuditEventTypeLogin, &user.ID,
		models.AuditResourceTypeUser, user.ID.String(),
		"login", true, ipAddress, userAgent,
		models.AuditMetadata{"provider": providerName, "new_user": created})

	return session, state.RedirectURI, nil
}

// MapProviderError translates the provider's callback error parameter into
// the fixed local error code set.
func MapProviderError(providerCode string) string {
	switch providerCode {
	case "access_denied":
		return OAuthErrCodeDenied
	case "server_error":
		return OAuthErrCodeServerError
	case "temporarily_unavailable":
		return OAuthErrCodeUnavailable
	default:
		return OAuthErrCodeProvider
	}
}

// ErrorRedirectURL builds the frontend error page URL for a failed
// handshake. Details are informational only and never carry secrets.
func (s *HandshakeService) ErrorRedirectURL(errCode, providerName, details string) string {
	values := url.Values{}
	values.Set("error", errCode)
	if providerName != "" {
		values.Set("provider", providerName)
	}
	if details != "" {
		values.Set("details", details)
	}
	return strings.TrimRight(s.frontendURL, "/") + "/auth/error?" + values.Encode()
}

func (s *HandshakeService) provider(name string) (oauth.Provider, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", models.ErrBadRequest, name)
	}
	return provider, nil
}

// resolveIdentity maps the provider identity to a local user: existing
// account link first, then verified-email match, then a fresh user row.
func (s *HandshakeService) resolveIdentity(ctx context.Context, providerName string, info *oauth.UserInfo) (*models.User, bool, error) {
	account, err := s.accounts.GetByProviderAccount(ctx, providerName, info.ProviderAccountID)
	if err == nil {
		user, err := s.users.GetByID(ctx, account.UserID)
		return user, false, err
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	user, err := s.users.GetByEmail(ctx, info.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	newUser := &models.User{
		Email: info.Email,
		Name:  info.Name,
	}
	if info.AvatarURL != "" {
		newUser.AvatarURL = &info.AvatarURL
	}
	user, err = s.users.Create(ctx, newUser)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Concurrent first sign-in with the same email; the other won.
			user, err = s.users.GetByEmail(ctx, info.Email)
			return user, false, err
		}
		return nil, false, err
	}

	s.logger.Info("user created from oauth sign-in",
		slog.String("user_id", user.ID.String()),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)),
		slog.String("provider", providerName))

	return user, true, nil
}

func (s *HandshakeService) upsertAccount(ctx context.Context, userID uuid.UUID, providerName string, info *oauth.UserInfo, token *oauth2.Token) (*models.Account, error) {
	account := &models.Account{
		UserID:            userID,
		Provider:          providerName,
		ProviderAccountID: info.ProviderAccountID,
	}
	if token.AccessToken != "" {
		account.AccessToken = &token.AccessToken
	}
	if token.RefreshToken != "" {
		account.RefreshToken = &token.RefreshToken
	}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		account.IDToken = &idToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		account.TokenExpiresAt = &expiry
	}
	return s.accounts.Upsert(ctx, account)
}
