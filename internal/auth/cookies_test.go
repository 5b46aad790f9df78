package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSessionCookie_Attributes(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "tok-value", CookieConfig{Domain: "example.com", MaxAge: 3600})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, "tok-value", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, 3600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestClearSessionCookie_ExplicitMaxAgeZero(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSessionCookie(w, CookieConfig{})

	raw := w.Header().Get("Set-Cookie")
	require.NotEmpty(t, raw)
	assert.True(t, strings.HasPrefix(raw, SessionCookieName+"="))
	assert.Contains(t, raw, "Max-Age=0")
	assert.Contains(t, raw, "HttpOnly")
	assert.Contains(t, raw, "Secure")
}

func TestSessionTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", SessionTokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc123"})
	assert.Equal(t, "abc123", SessionTokenFromRequest(r))
}
