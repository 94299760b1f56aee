package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/listkeeper/listkeeper/internal/auth"
)

// TestLogging_TokenRedaction ensures admin tokens never reach the logs.
func TestLogging_TokenRedaction(t *testing.T) {
	t.Parallel()

	const token = "lk_admin_00112233445566778899aabbccddeeff"

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	wrapped := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/blerx/entries", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	for _, pattern := range []string{token, "lk_admin_", "Bearer"} {
		if strings.Contains(buf.String(), pattern) {
			t.Errorf("log output contains %q", pattern)
		}
	}
}

// TestLogging_Fields verifies the expected non-sensitive fields are logged.
func TestLogging_Fields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(Logger(logger))
	r.Get("/api/v1/projects/{project}/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/blerx/users/42", nil)
	req.Header.Set("User-Agent", "TestBrowser/2.0")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logOutput := buf.String()
	for _, field := range []string{
		`"method":"GET"`,
		`"path":"/api/v1/projects/blerx/users/42"`,
		`"route":"/api/v1/projects/{project}/users/{userID}"`,
		`"status_code":404`,
		`"user_agent":"TestBrowser/2.0"`,
		`"level":"WARN"`,
	} {
		if !strings.Contains(logOutput, field) {
			t.Errorf("expected log field %s not found in %s", field, logOutput)
		}
	}
}

// TestLogging_StatusLevel verifies the level follows the status class.
func TestLogging_StatusLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		statusCode int
		wantLevel  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			wrapped := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

			if !strings.Contains(buf.String(), `"level":"`+tt.wantLevel+`"`) {
				t.Errorf("status %d: want level %s, got %s", tt.statusCode, tt.wantLevel, buf.String())
			}
		})
	}
}

func TestLogging_HealthChecksAreQuiet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	wrapped := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("successful health check logged at info: %s", buf.String())
	}

	failing := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("failing readiness check should be logged: %s", buf.String())
	}
}

func TestLogging_AdminFingerprint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Stands in for AdminAuth further down the chain.
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed := r.WithContext(auth.ContextWithAdmin(r.Context(), "0123456789abcdef"))
		recordAdmin(authed)
	})
	Logger(logger)(inner).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	if !strings.Contains(buf.String(), `"admin":"01234567"`) {
		t.Errorf("admin fingerprint prefix not logged: %s", buf.String())
	}
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	implicit := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _ = implicit.Write([]byte("hello"))
	if implicit.status != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", implicit.status)
	}

	double := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	double.WriteHeader(http.StatusCreated)
	double.WriteHeader(http.StatusInternalServerError)
	if double.status != http.StatusCreated {
		t.Errorf("status after double write = %d, want 201", double.status)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "given-id" {
		t.Errorf("propagated id = %q, want given-id", seen)
	}

	for _, bad := range []string{"has space", strings.Repeat("x", maxIDLength+1), "tab\there"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bad || seen == "" {
			t.Errorf("inbound id %q should be replaced, got %q", bad, seen)
		}
	}
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("panic was not logged")
	}
}
