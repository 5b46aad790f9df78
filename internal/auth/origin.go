package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// OriginGate rejects cross-origin mutating requests. It never inspects a
// token: browsers forbid cross-site JavaScript from forging Origin, so a
// scheme+host allowlist check over Origin (then Referer) is sufficient.
// Missing both headers rejects; any mismatch rejects.
type OriginGate struct {
	allowed []string
	logger  *slog.Logger
}

// NewOriginGate builds the gate over the effective allowlist entries for the
// current environment.
func NewOriginGate(allowed []string, logger *slog.Logger) *OriginGate {
	normalized := make([]string, 0, len(allowed))
	for _, entry := range allowed {
		if entry = strings.TrimRight(strings.TrimSpace(entry), "/"); entry != "" {
			normalized = append(normalized, entry)
		}
	}
	return &OriginGate{allowed: normalized, logger: logger}
}

// Middleware enforces the gate on every non-idempotent method.
func (g *OriginGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutatingMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		source := r.Header.Get("Origin")
		if source == "" {
			source = r.Header.Get("Referer")
		}

		if source == "" || !g.Allowed(source) {
			g.logger.Warn("cross-origin request rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("origin", source))
			httpapi.WriteCSRFViolation(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether a source URL's scheme+host prefix matches an
// allowlist entry exactly or followed by "/".
func (g *OriginGate) Allowed(source string) bool {
	for _, entry := range g.allowed {
		if source == entry || strings.HasPrefix(source, entry+"/") {
			return true
		}
	}
	return false
}

// RedirectURIAllowed applies the same match rule to a post-login redirect
// target against its own allowlist; it guards against open redirects on the
// signin endpoint.
func RedirectURIAllowed(uri string, allowlist []string) bool {
	if uri == "" {
		return false
	}
	if parsed, err := url.Parse(uri); err != nil || !parsed.IsAbs() {
		return false
	}
	for _, entry := range allowlist {
		entry = strings.TrimRight(entry, "/")
		if uri == entry || strings.HasPrefix(uri, entry+"/") {
			return true
		}
	}
	return false
}

func isMutatingMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}
