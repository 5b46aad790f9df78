package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ExtractClientIP extracts the client IP address from the request. It trusts
// X-Forwarded-For and X-Real-IP (the service runs behind its own proxy;
// chi's RealIP middleware has already folded them into RemoteAddr) and falls
// back to RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Pagination defaults for list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// ParsePagination reads limit/offset query parameters with clamped defaults.
func ParsePagination(r *http.Request) (limit, offset int) {
	limit = DefaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
