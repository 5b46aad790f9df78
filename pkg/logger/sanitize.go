package logger

import (
	"log/slog"
	"strings"
)

// RedactToken truncates an opaque token to a short prefix for logging. Full
// session or provider tokens must never reach the log stream.
func RedactToken(token string) string {
	const prefixLen = 10
	if len(token) <= prefixLen {
		return token
	}
	return token[:prefixLen] + "..."
}

// TokenAttr returns a slog attribute carrying only the redacted prefix.
func TokenAttr(key, token string) slog.Attr {
	return slog.String(key, RedactToken(token))
}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := []string{
		"passphrase",
		"password",
		"token",
		"secret",
		"code",
		"state",
		"auth",
		"csrf",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
