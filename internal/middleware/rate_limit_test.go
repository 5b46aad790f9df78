package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitByIP_AllowsUnderLimit(t *testing.T) {
	limiter := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 5})

	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/api/vault/unlock", nil)
		req.RemoteAddr = "192.168.1.1:8080"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, recorder.Code)
		}
	}
}

func TestRateLimitByIP_RejectsOverLimit(t *testing.T) {
	limiter := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})

	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("POST", "/api/vault/unlock", nil)
		req.RemoteAddr = "192.168.1.2:8080"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		last = recorder.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 after exceeding the limit, got %d", last)
	}
}

func TestRateLimitByIP_SeparateBucketsPerIP(t *testing.T) {
	limiter := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})

	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		req := httptest.NewRequest("POST", "/api/vault/reset-passphrase", nil)
		req.RemoteAddr = addr
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Errorf("first request from %s should pass, got %d", addr, recorder.Code)
		}
	}
}
