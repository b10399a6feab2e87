package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/whosthat/internal/testutil"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		SlackSigningSecret: "signing-secret",
		DispatchInterval:   time.Minute,
		RosterFreshTTL:     10 * time.Minute,
		RosterStaleTTL:     24 * time.Hour,
		AuditLogDispatch:   "all",
		AuditLogResponse:   "db",
		AuditLogAdmin:      "off",
	}
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", "prod", func(*AppConfig) {}, ""},
		{"no secret in dev", "dev", func(c *AppConfig) { c.SlackSigningSecret = "" }, ""},
		{"no secret in prod", "prod", func(c *AppConfig) { c.SlackSigningSecret = "" }, "slack_signing_secret"},
		{"interval too long", "prod", func(c *AppConfig) { c.DispatchInterval = 2 * time.Minute }, "dispatch_interval"},
		{"interval zero", "prod", func(c *AppConfig) { c.DispatchInterval = 0 }, "dispatch_interval"},
		{"stale shorter than fresh", "prod", func(c *AppConfig) { c.RosterStaleTTL = time.Minute }, "roster_stale_ttl"},
		{"short admin secret", "prod", func(c *AppConfig) { c.AdminJWTSecret = "short" }, "admin_jwt_secret"},
		{"bad audit destination", "prod", func(c *AppConfig) { c.AuditLogResponse = "syslog" }, "audit_log_response"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := validateApp(tc.env, cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestBuildServicesAndHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)

	cfg := validConfig()
	cfg.AdminJWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.AdminJWTIssuer = "whosthat"
	cfg.AdminRateLimit = 10
	cfg.DispatchEnabled = false

	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db, Services: &Services{}}
	if err := buildServices(deps.Services, cfg, deps, testLogger()); err != nil {
		t.Fatalf("buildServices: %v", err)
	}
	svc := deps.Services
	if svc.Orchestrator == nil || svc.Ingestor == nil || svc.FollowUps == nil || svc.Admin == nil {
		t.Fatalf("services not wired: %+v", svc)
	}
	if svc.Ticker != nil {
		t.Error("ticker should not start when dispatch is disabled")
	}
	if svc.Roster.Enabled() {
		t.Error("roster cache should be a pass-through without valkey")
	}

	h, err := BuildHandler(nil, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/dispatch/run", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/admin/dispatch/run without token = %d", rec.Code)
	}

	tok, _ := svc.Admin.Issue("ops", "admin", time.Minute)
	req := httptest.NewRequest(http.MethodPost, "/admin/dispatch/run", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"games_evaluated":0`) {
		t.Errorf("/admin/dispatch/run = %d %s", rec.Code, rec.Body.String())
	}

	// Shutdown without the Mongo client so the shared test database cleanup
	// still works.
	deps.MongoClient = nil
	if err := Shutdown(context.Background(), nil, cfg, deps, testLogger()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if svc.FollowUps.Enqueue("late", func(context.Context) error { return nil }) {
		t.Error("queue should be closed after Shutdown")
	}
}

func TestBuildHandler_AdminDisabled(t *testing.T) {
	db := testutil.SetupTestDB(t)

	cfg := validConfig()
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db, Services: &Services{}}
	if err := buildServices(deps.Services, cfg, deps, testLogger()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = deps.Services.FollowUps.Close(context.Background()) })

	h, err := BuildHandler(nil, cfg, deps, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/dispatch/run", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("admin API should not be mounted, got %d", rec.Code)
	}
}

func TestBuildHandler_RequiresServices(t *testing.T) {
	if _, err := BuildHandler(nil, validConfig(), DBDeps{}, testLogger()); err == nil {
		t.Error("expected error without services")
	}
}
