package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
)

// Double-submit CSRF utilities. The enforced defense is the Origin gate
// (origin.go); these are provided for clients that additionally want a
// submitted token checked against the cookie.

// GenerateCSRFToken returns a 256-bit base64url token.
func GenerateCSRFToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// SetCSRFCookie sets the double-submit token in a readable cookie.
// JavaScript reads it back and echoes it in the X-CSRF-Token header.
func SetCSRFCookie(w http.ResponseWriter, token string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: false, // Allow JavaScript to read for X-CSRF-Token header
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// CSRFTokensMatch compares a submitted token with the cookie value in
// constant time.
func CSRFTokensMatch(submitted, cookie string) bool {
	if submitted == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(cookie)) == 1
}
