package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/whosthat/internal/app/features/health"
	"github.com/dalemusser/whosthat/internal/testutil"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

type fakeCache struct {
	enabled bool
	err     error
}

func (f fakeCache) Enabled() bool { return f.enabled }
func (f fakeCache) Ping(context.Context) error { return f.err }

type response struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
	Message  string `json:"message"`
}

func serve(t *testing.T, h *health.Handler) (int, response) {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec.Code, resp
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := health.NewHandler(db.Client(), nil, zap.NewNop())

	code, resp := serve(t, h)
	if code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, code)
	}
	if resp.Status != "ok" || resp.Database != "connected" || resp.Cache != "disabled" {
		t.Errorf("response = %+v", resp)
	}
}

func TestServe_States(t *testing.T) {
	down := errors.New("connection refused")
	tests := []struct {
		name       string
		db         error
		cache      health.CachePinger
		wantCode   int
		wantStatus string
		wantCache  string
	}{
		{"all up", nil, fakeCache{enabled: true}, http.StatusOK, "ok", "connected"},
		{"cache disabled", nil, fakeCache{}, http.StatusOK, "ok", "disabled"},
		{"cache down", nil, fakeCache{enabled: true, err: down}, http.StatusOK, "degraded", "disconnected"},
		{"db down", down, fakeCache{enabled: true}, http.StatusServiceUnavailable, "error", "disabled"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &health.Handler{
				PingDB: func(context.Context) error { return tc.db },
				Cache:  tc.cache,
				Log:    zap.NewNop(),
			}
			code, resp := serve(t, h)
			if code != tc.wantCode || resp.Status != tc.wantStatus || resp.Cache != tc.wantCache {
				t.Errorf("got %d %+v", code, resp)
			}
		})
	}
}

func TestRoutes_AcceptsHead(t *testing.T) {
	h := &health.Handler{
		PingDB: func(context.Context) error { return nil },
		Log:    zap.NewNop(),
	}
	rec := httptest.NewRecorder()
	health.Routes(h).ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("HEAD /: got %d, want 200", rec.Code)
	}
}
