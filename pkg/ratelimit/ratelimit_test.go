package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	limiter := NewLimiter(10, 2) // 10 req/s, burst of 2

	if !limiter.Allow("caller") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("caller") {
		t.Error("Second request should be allowed")
	}
	if limiter.Allow("caller") {
		t.Error("Third request should be rate limited")
	}

	// 10 req/s refills one token every 100ms
	time.Sleep(150 * time.Millisecond)
	if !limiter.Allow("caller") {
		t.Error("Request after refill should be allowed")
	}
}

func TestLimiterPerKeyIsolation(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("alice") {
		t.Error("alice's first request should be allowed")
	}
	if limiter.Allow("alice") {
		t.Error("alice's second request should be limited")
	}
	if !limiter.Allow("bob") {
		t.Error("bob should have his own bucket")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	limiter := NewLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("First request should pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be limited, got %d", rr.Code)
	}
}

func TestMiddlewarePrefersForwardedFor(t *testing.T) {
	limiter := NewLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Same socket peer, different forwarded clients: separate buckets
	for _, client := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest("GET", "/jobs", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", client)

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Client %s should have its own bucket, got %d", client, rr.Code)
		}
	}
}
