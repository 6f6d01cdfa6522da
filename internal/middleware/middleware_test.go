package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		configured string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard echoes origin", "*", "http://a.example", http.MethodGet, "http://a.example", http.StatusOK},
		{"listed origin", "http://a.example, http://b.example", "http://b.example", http.MethodGet, "http://b.example", http.StatusOK},
		{"unlisted origin", "http://a.example", "http://evil.example", http.MethodGet, "http://a.example", http.StatusOK},
		{"no origin header", "", "", http.MethodGet, "*", http.StatusOK},
		{"preflight", "*", "http://a.example", http.MethodOptions, "http://a.example", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/sensors", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.configured)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))

	for _, path := range []string{"/healthz", "/api/jobs", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	if strings.Contains(out, `"path":"/healthz"`) {
		t.Error("probe request should be logged at debug level")
	}
	if !strings.Contains(out, `"path":"/api/jobs"`) {
		t.Error("api request missing from log")
	}
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"status":502`) {
		t.Errorf("5xx should be logged at warn, got %s", out)
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/api/sensors/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sensors/helium.price.hnt", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	if got := routePattern(httptest.NewRequest(http.MethodGet, "/nope", nil)); got != unmatchedRoute {
		t.Errorf("routePattern without chi context = %q, want %q", got, unmatchedRoute)
	}
}
