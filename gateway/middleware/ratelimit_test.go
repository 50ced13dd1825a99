package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	handler := limiter.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/experiences/xp1abc", nil)
	req.RemoteAddr = "10.0.0.1:4000"

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	handler := limiter.Middleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/v1/experiences/xp1abc", nil)
	first.RemoteAddr = "10.0.0.1:4000"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, first)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first client to succeed, got %d", res.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/v1/experiences/xp1abc", nil)
	second.RemoteAddr = "10.0.0.2:4000"
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, second)
	if res.Code != http.StatusOK {
		t.Fatalf("expected second client to succeed, got %d", res.Code)
	}
}

func TestRateLimiterHonoursForwardedHeaders(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	handler := limiter.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/experiences/xp1abc", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected forwarded client to succeed, got %d", res.Code)
	}

	// Same forwarded client from a different hop shares the bucket.
	req2 := httptest.NewRequest(http.MethodGet, "/v1/experiences/xp1abc", nil)
	req2.RemoteAddr = "10.0.0.9:4000"
	req2.Header.Set("X-Forwarded-For", "198.51.100.7")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req2)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected shared bucket to limit, got %d", res.Code)
	}
}
