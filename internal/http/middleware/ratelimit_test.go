package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(0.1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request above burst allowed")
	}
	// A different caller has its own bucket.
	if !rl.Allow("10.0.0.2") {
		t.Error("independent caller denied")
	}
}

func TestRateLimit_Returns429WithRetryAfter(t *testing.T) {
	mw := RateLimit(0.5, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook/evolution", nil)
	req.Header.Set("X-Real-Ip", "177.50.1.9")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request rejected: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestCallerKey_StripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.0.7:54321"
	if got := callerKey(req); got != "192.168.0.7" {
		t.Errorf("callerKey = %q, want bare host", got)
	}

	req.Header.Set("X-Real-Ip", "200.10.20.30")
	if got := callerKey(req); got != "200.10.20.30" {
		t.Errorf("callerKey = %q, want X-Real-Ip value", got)
	}
}
