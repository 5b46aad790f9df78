package auth

import (
	"net/http"
	"strings"
)

const (
	SessionCookieName = "session"
	CSRFCookieName    = "csrf_token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain string // Empty string = current host only
	MaxAge int    // TTL in seconds
}

// SetSessionCookie sets the opaque session token in an httpOnly cookie.
// SameSite=None with Secure: the frontend lives on a different origin and
// the Origin gate covers cross-site forgery.
func SetSessionCookie(w http.ResponseWriter, token string, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true, // Critical: prevents JavaScript access (XSS protection)
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie emits the logout cookie: same shape, empty value,
// Max-Age=0.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   0,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	// MaxAge 0 omits the attribute in net/http; force an explicit Max-Age=0
	// so every client drops the cookie immediately.
	v := cookie.String()
	if !strings.Contains(v, "Max-Age=") {
		v += "; Max-Age=0"
	}
	w.Header().Add("Set-Cookie", v)
}

// SessionTokenFromRequest extracts the trimmed session token from the
// Cookie header, or "" when absent.
func SessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
