package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/listkeeper/listkeeper/internal/cache"
)

// fakeIPLimiter allows a fixed number of requests per IP.
type fakeIPLimiter struct {
	allow map[string]int
	err   error
}

func (f *fakeIPLimiter) CheckIPRateLimit(_ context.Context, ip string, _, _ int) (*cache.RateLimitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.allow[ip] > 0 {
		f.allow[ip]--
		return &cache.RateLimitResult{Allowed: true, Remaining: int64(f.allow[ip]), ResetAt: time.Now()}, nil
	}
	return &cache.RateLimitResult{Allowed: false, ResetAt: time.Now(), RetryAfter: 1500 * time.Millisecond}, nil
}

func newLimitedHandler(l IPLimiter, enabled bool) http.Handler {
	mw := RateLimitIP(RateLimitConfig{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Limiter: l,
		Enabled: enabled,
		RPS:     1,
		Burst:   2,
	})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimitIP(t *testing.T) {
	t.Parallel()

	h := newLimitedHandler(&fakeIPLimiter{allow: map[string]int{"10.0.0.1": 1}}, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/blerx/entries", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 192.168.0.1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitIP_FailsOpen(t *testing.T) {
	t.Parallel()

	h := newLimitedHandler(&fakeIPLimiter{err: errors.New("redis down")}, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when the limiter fails", rec.Code)
	}
}

func TestRateLimitIP_Disabled(t *testing.T) {
	t.Parallel()

	h := newLimitedHandler(&fakeIPLimiter{}, false)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when disabled", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "1.1.1.1, 2.2.2.2", "", "3.3.3.3:1", "1.1.1.1"},
		{"forwarded single", "1.1.1.1", "", "3.3.3.3:1", "1.1.1.1"},
		{"real ip", "", "4.4.4.4", "3.3.3.3:1", "4.4.4.4"},
		{"remote", "", "", "3.3.3.3:1", "3.3.3.3:1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
