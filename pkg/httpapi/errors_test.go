package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteCSRFViolation_FixedShape(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCSRFViolation(w)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	assert.Equal(t, "csrf_violation", resp.Error)
	assert.Equal(t, "CSRF validation failed", resp.Message)
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, []FieldError{{Field: "reason", Message: "this field is required"}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation_error", resp.Error)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "reason", resp.Fields[0].Field)
}

func TestErrorWriterStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad") }, 400, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "no") }, 401, "unauthorized"},
		{"session expired", WriteSessionExpired, 401, "session_expired"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "no") }, 403, "forbidden"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "no") }, 404, "not_found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "dup") }, 409, "conflict"},
		{"rate limited", func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") }, 429, "rate_limit_exceeded"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "boom") }, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:4123"
	assert.Equal(t, "10.0.0.1", ExtractClientIP(r))

	r.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", ExtractClientIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ExtractClientIP(r))
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	limit, offset := ParsePagination(r)
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, 0, offset)

	r = httptest.NewRequest(http.MethodGet, "/api/admin/audit?limit=25&offset=100", nil)
	limit, offset = ParsePagination(r)
	assert.Equal(t, 25, limit)
	assert.Equal(t, 100, offset)

	r = httptest.NewRequest(http.MethodGet, "/api/admin/audit?limit=9999", nil)
	limit, _ = ParsePagination(r)
	assert.Equal(t, MaxPageLimit, limit)

	r = httptest.NewRequest(http.MethodGet, "/api/admin/audit?limit=-5&offset=-1", nil)
	limit, offset = ParsePagination(r)
	assert.Equal(t, DefaultPageLimit, limit)
	assert.Equal(t, 0, offset)
}
