package core

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"courtwind/internal/types"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		header   string
		value    string
		wantCode int
		wantErr  types.ErrorCode
	}{
		{"no key configured", "", "", "", http.StatusOK, ""},
		{"missing key", "secret", "", "", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"bearer ok", "secret", "Authorization", "Bearer secret", http.StatusOK, ""},
		{"header ok", "secret", "X-Api-Key", "secret", http.StatusOK, ""},
		{"wrong key", "secret", "X-Api-Key", "nope", http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
		{"basic scheme", "secret", "Authorization", "Basic secret", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.key)
			srv.V1RouteRegistrars = []RouteRegistrar{func(r chi.Router) { r.Get("/x", okHandler) }}
			srv.MountRoutes()

			req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantErr != "" {
				var body APIErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Error.Code != string(tt.wantErr) {
					t.Errorf("expected code %s, got %s", tt.wantErr, body.Error.Code)
				}
			}
		})
	}
}

func TestAPIKeyMiddleware_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t, "secret")
	srv.MountRoutes()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRecoverer(t *testing.T) {
	srv := newTestServer(t, "")
	srv.V1RouteRegistrars = []RouteRegistrar{func(r chi.Router) {
		r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	}}
	srv.MountRoutes()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("unexpected code %s", body.Error.Code)
	}
	if strings.Contains(body.Error.Message, "kaboom") {
		t.Error("panic value must not leak to clients")
	}
}

func TestRequestIDMiddleware_PropagatesHeader(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "req-123" {
		t.Errorf("expected context request ID req-123, got %q", seen)
	}
	if w.Header().Get("X-Request-Id") != "req-123" {
		t.Errorf("expected response header req-123, got %q", w.Header().Get("X-Request-Id"))
	}
}

func TestRequestLogger_RedactsHeadersAndScopesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var scoped bool
	h := RequestIDMiddleware(RequestLogger(logger, []string{"Authorization"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scoped = types.LoggerFromContext(r.Context(), nil) != slog.Default()
			w.WriteHeader(http.StatusTeapot)
		}),
	))

	req := httptest.NewRequest(http.MethodGet, "/v1/advice", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Error("authorization header leaked into logs")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redaction marker")
	}
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("expected status in log line, got %s", out)
	}
	if !scoped {
		t.Error("expected request-scoped logger in context")
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://club.example"})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodOptions, "/v1/advice", nil)
	req.Header.Set("Origin", "https://club.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://club.example" {
		t.Error("expected allowed origin to be echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/advice", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for disallowed origin")
	}
}
