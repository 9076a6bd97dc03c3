package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS_AllowedOrigin(t *testing.T) {
	h := CORS([]string{"https://cook.example"})(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	req.Header.Set("Origin", "https://cook.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://cook.example" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials allowed for explicit origin, got %q", got)
	}
}

func TestCORS_WildcardNoCredentials(t *testing.T) {
	h := CORS([]string{"*"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected preflight 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Expected no credentials for wildcard, got %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h := CORS([]string{"https://cook.example"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS headers, got %q", got)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2, time.Minute)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("Expected first two requests allowed")
	}
	if rl.Allow("a") {
		t.Error("Expected third request rejected")
	}
	if !rl.Allow("b") {
		t.Error("Expected other key unaffected")
	}
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 50*time.Millisecond)

	if !rl.Allow("a") {
		t.Fatal("Expected first request allowed")
	}
	time.Sleep(80 * time.Millisecond)
	if !rl.Allow("a") {
		t.Error("Expected request allowed after window")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRateLimiter(ctx, 1, time.Minute).Middleware(okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/search", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}
}
