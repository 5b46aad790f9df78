package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSessionStore struct {
	GetByTokenFunc func(ctx context.Context, token string) (*models.Session, error)
}

func (m *mockSessionStore) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	return m.GetByTokenFunc(ctx, token)
}

type mockUserStore struct {
	GetByIDFunc         func(ctx context.Context, id uuid.UUID) (*models.User, error)
	HasPasskeyFunc      func(ctx context.Context, userID uuid.UUID) (bool, error)
	MarkTosAcceptedFunc func(ctx context.Context, userID uuid.UUID, version string) error
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserStore) HasPasskey(ctx context.Context, userID uuid.UUID) (bool, error) {
	if m.HasPasskeyFunc != nil {
		return m.HasPasskeyFunc(ctx, userID)
	}
	return true, nil
}

func (m *mockUserStore) MarkTosAccepted(ctx context.Context, userID uuid.UUID, version string) error {
	if m.MarkTosAcceptedFunc != nil {
		return m.MarkTosAcceptedFunc(ctx, userID, version)
	}
	return nil
}

type mockEntitlementStore struct {
	entitlements []string
}

func (m *mockEntitlementStore) GetEntitlements(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return m.entitlements, nil
}

type nopToucher struct {
	touched int
}

func (n *nopToucher) Touch(sessionID, userID uuid.UUID) { n.touched++ }

func testUser(id uuid.UUID) *models.User {
	return &models.User{
		ID:          id,
		Email:       "user@example.com",
		Name:        "Test User",
		Role:        models.RoleUser,
		Approved:    true,
		TosAccepted: true,
	}
}

func newResolver(sessions SessionStore, users UserStore, cfg ResolverConfig, toucher ActivityToucher) *SessionResolver {
	if toucher == nil {
		toucher = &nopToucher{}
	}
	return NewSessionResolver(sessions, users, &mockEntitlementStore{}, toucher, cfg, slog.Default())
}

func resolveRequest(resolver *SessionResolver, token, host string) *AuthContext {
	var captured *AuthContext
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
	if host != "" {
		req.Host = host
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return captured
}

func TestSessionResolver_ValidToken(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	toucher := &nopToucher{}

	sessions := &mockSessionStore{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.Session, error) {
			assert.Equal(t, "good-token", token)
			return &models.Session{
				ID:             sessionID,
				UserID:         userID,
				Token:          token,
				ExpiresAt:      time.Now().Add(time.Hour),
				CreatedAt:      time.Now().Add(-time.Minute),
				LastActivityAt: time.Now(),
			}, nil
		},
	}
	users := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return testUser(id), nil
		},
	}

	resolver := newResolver(sessions, users, ResolverConfig{Env: "production"}, toucher)
	ac := resolveRequest(resolver, "good-token", "")

	require.NotNil(t, ac)
	assert.Equal(t, userID, ac.UserID)
	require.NotNil(t, ac.SessionID)
	assert.Equal(t, sessionID, *ac.SessionID)
	require.NotNil(t, ac.SessionIssuedAt)
	assert.False(t, ac.IsDevBypass)
	assert.Equal(t, 1, toucher.touched)
}

func TestSessionResolver_UnknownTokenIsAnonymous(t *testing.T) {
	sessions := &mockSessionStore{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.Session, error) {
			return nil, models.ErrNotFound
		},
	}
	users := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			t.Fatal("user lookup should not happen for unknown token")
			return nil, nil
		},
	}

	resolver := newResolver(sessions, users, ResolverConfig{Env: "production"}, nil)
	ac := resolveRequest(resolver, "stale-token", "")
	assert.Nil(t, ac)
}

func TestSessionResolver_InactiveSessionIsAnonymous(t *testing.T) {
	sessions := &mockSessionStore{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.Session, error) {
			return &models.Session{
				ID:             uuid.New(),
				UserID:         uuid.New(),
				ExpiresAt:      time.Now().Add(time.Hour),
				LastActivityAt: time.Now().Add(-2 * time.Hour),
			}, nil
		},
	}
	users := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return testUser(id), nil
		},
	}

	resolver := newResolver(sessions, users, ResolverConfig{
		Env:               "production",
		InactivityTimeout: 30 * time.Minute,
	}, nil)
	ac := resolveRequest(resolver, "idle-token", "")
	assert.Nil(t, ac)
}

func TestSessionResolver_NoCookieIsAnonymous(t *testing.T) {
	sessions := &mockSessionStore{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.Session, error) {
			t.Fatal("no lookup without a cookie")
			return nil, nil
		},
	}
	resolver := newResolver(sessions, &mockUserStore{}, ResolverConfig{Env: "production"}, nil)
	ac := resolveRequest(resolver, "", "")
	assert.Nil(t, ac)
}

func TestSessionResolver_DevBypassRequiresAllThreeConditions(t *testing.T) {
	sessions := &mockSessionStore{
		GetByTokenFunc: func(ctx context.Context, token string) (*models.Session, error) {
			return nil, models.ErrNotFound
		},
	}

	tests := []struct {
		name     string
		env      string
		flag     bool
		host     string
		bypassed bool
	}{
		{"all conditions", "development", true, "localhost:8080", true},
		{"loopback ip", "development", true, "127.0.0.1:8080", true},
		{"production env", "production", true, "localhost:8080", false},
		{"staging env", "staging", true, "localhost:8080", false},
		{"flag off", "development", false, "localhost:8080", false},
		{"non-loopback host", "development", true, "api.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := newResolver(sessions, &mockUserStore{}, ResolverConfig{
				Env:       tt.env,
				DevBypass: tt.flag,
			}, nil)
			ac := resolveRequest(resolver, "", tt.host)

			if tt.bypassed {
				require.NotNil(t, ac)
				assert.True(t, ac.IsDevBypass)
				assert.True(t, ac.IsAdmin())
				assert.Nil(t, ac.SessionID)
			} else {
				assert.Nil(t, ac)
			}
		})
	}
}

func TestRequireAuth_RejectsAnonymous(t *testing.T) {
	handler := RequireAuth(&mockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return testUser(id), nil
		},
	}, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run anonymously")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/vault", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_RejectsUnapproved(t *testing.T) {
	userID := uuid.New()
	users := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			u := testUser(id)
			u.Approved = false
			return u, nil
		},
	}

	handler := RequireAuth(users, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for unapproved user")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
	req = req.WithContext(WithAuthContext(req.Context(), &AuthContext{UserID: userID, Role: models.RoleUser}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAuth_PassesApprovedUser(t *testing.T) {
	userID := uuid.New()
	users := &mockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return testUser(id), nil
		},
	}

	called := false
	handler := RequireAuth(users, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
	req = req.WithContext(WithAuthContext(req.Context(), &AuthContext{UserID: userID, Role: models.RoleUser}))

	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestRequireAdmin(t *testing.T) {
	var status int
	run := func(ac *AuthContext) {
		handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
		if ac != nil {
			req = req.WithContext(WithAuthContext(req.Context(), ac))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		status = w.Code
	}

	run(nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	run(&AuthContext{Role: models.RoleUser})
	assert.Equal(t, http.StatusForbidden, status)

	run(&AuthContext{Role: models.RoleAdmin})
	assert.Equal(t, http.StatusOK, status)

	run(&AuthContext{Role: models.RoleUser, Entitlements: []string{models.EntitlementAdminAccess}})
	assert.Equal(t, http.StatusOK, status)
}
