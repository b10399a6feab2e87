// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/whosthat/internal/app/system/auditlog"
	"github.com/dalemusser/whosthat/internal/app/system/deferred"
	"github.com/dalemusser/whosthat/internal/app/system/rostercache"
	"github.com/dalemusser/whosthat/internal/app/system/slackapi"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for whosthat.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, valkey_addr, etc.
//   - Environment variables: WHOSTHAT_MONGO_URI, WHOSTHAT_VALKEY_ADDR, etc.
//   - Command-line flags: --mongo_uri, --valkey_addr, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "whosthat", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Roster cache
	{Name: "valkey_addr", Default: "", Desc: "Valkey host:port for the roster cache (blank disables caching)"},
	{Name: "valkey_password", Default: "", Desc: "Valkey password"},
	{Name: "valkey_db", Default: 0, Desc: "Valkey logical database"},
	{Name: "roster_fresh_ttl", Default: "10m", Desc: "How long a cached roster is served without refreshing"},
	{Name: "roster_stale_ttl", Default: "24h", Desc: "How long a cached roster is kept as a rate-limit fallback"},

	// Slack
	{Name: "slack_signing_secret", Default: "", Desc: "Slack app signing secret (required outside dev)"},
	{Name: "slack_post_interval", Default: "200ms", Desc: "Minimum spacing between outbound Slack calls"},
	{Name: "slack_post_burst", Default: slackapi.DefaultPostBurst, Desc: "Outbound Slack calls allowed in a burst"},

	// Dispatch
	{Name: "dispatch_enabled", Default: true, Desc: "Run the periodic dispatch tick"},
	{Name: "dispatch_interval", Default: "1m", Desc: "Dispatch tick interval (at most 1m)"},
	{Name: "dispatch_tick_timeout", Default: "5m", Desc: "Upper bound for one dispatch tick"},

	// Follow-up queue
	{Name: "followup_workers", Default: deferred.DefaultWorkers, Desc: "Workers draining the follow-up queue"},
	{Name: "followup_queue_size", Default: deferred.DefaultQueueSize, Desc: "Follow-up queue capacity"},

	// Admin API
	{Name: "admin_jwt_secret", Default: "", Desc: "HS256 secret for admin bearer tokens (blank disables the admin API)"},
	{Name: "admin_jwt_issuer", Default: "whosthat", Desc: "Required iss claim on admin tokens"},
	{Name: "admin_rate_limit", Default: 30, Desc: "Admin requests per minute per client IP"},

	// Base URL for onboarding links
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for onboarding links"},

	// Audit logging settings
	{Name: "audit_log_dispatch", Default: "all", Desc: "Dispatch event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_response", Default: "all", Desc: "Response event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_file", Default: "", Desc: "Path of a rotated JSON audit file (blank disables)"},
	{Name: "audit_log_max_size_mb", Default: 100, Desc: "Audit file size before rotation"},
	{Name: "audit_log_max_backups", Default: 7, Desc: "Rotated audit files to keep"},
	{Name: "audit_log_max_age_days", Default: 30, Desc: "Days to keep rotated audit files"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, WHOSTHAT_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "WHOSTHAT", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Roster cache
		ValkeyAddr:     appValues.String("valkey_addr"),
		ValkeyPassword: appValues.String("valkey_password"),
		ValkeyDB:       appValues.Int("valkey_db"),
		RosterFreshTTL: appValues.Duration("roster_fresh_ttl", rostercache.DefaultFreshTTL),
		RosterStaleTTL: appValues.Duration("roster_stale_ttl", rostercache.DefaultStaleTTL),

		// Slack
		SlackSigningSecret: appValues.String("slack_signing_secret"),
		SlackPostInterval:  appValues.Duration("slack_post_interval", slackapi.DefaultPostInterval),
		SlackPostBurst:     appValues.Int("slack_post_burst"),

		// Dispatch
		DispatchEnabled:     appValues.Bool("dispatch_enabled"),
		DispatchInterval:    appValues.Duration("dispatch_interval", time.Minute),
		DispatchTickTimeout: appValues.Duration("dispatch_tick_timeout", timeouts.DefaultTick),

		// Follow-ups
		FollowUpWorkers:   appValues.Int("followup_workers"),
		FollowUpQueueSize: appValues.Int("followup_queue_size"),

		// Admin API
		AdminJWTSecret: appValues.String("admin_jwt_secret"),
		AdminJWTIssuer: appValues.String("admin_jwt_issuer"),
		AdminRateLimit: appValues.Int("admin_rate_limit"),

		BaseURL: appValues.String("base_url"),

		// Audit logging
		AuditLogDispatch:   appValues.String("audit_log_dispatch"),
		AuditLogResponse:   appValues.String("audit_log_response"),
		AuditLogAdmin:      appValues.String("audit_log_admin"),
		AuditLogFile:       appValues.String("audit_log_file"),
		AuditLogMaxSizeMB:  appValues.Int("audit_log_max_size_mb"),
		AuditLogMaxBackups: appValues.Int("audit_log_max_backups"),
		AuditLogMaxAgeDays: appValues.Int("audit_log_max_age_days"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

// validateApp holds the checks that do not need a logger, so tests can
// call it directly.
func validateApp(env string, appCfg AppConfig) error {
	if appCfg.SlackSigningSecret == "" && env != "dev" {
		return fmt.Errorf("slack_signing_secret is required outside dev")
	}
	if appCfg.DispatchInterval <= 0 || appCfg.DispatchInterval > time.Minute {
		return fmt.Errorf("dispatch_interval must be positive and at most 1m, got %s", appCfg.DispatchInterval)
	}
	if appCfg.RosterStaleTTL < appCfg.RosterFreshTTL {
		return fmt.Errorf("roster_stale_ttl (%s) must not be shorter than roster_fresh_ttl (%s)",
			appCfg.RosterStaleTTL, appCfg.RosterFreshTTL)
	}
	if appCfg.AdminJWTSecret != "" && len(appCfg.AdminJWTSecret) < 32 {
		return fmt.Errorf("admin_jwt_secret must be at least 32 bytes")
	}
	for name, v := range map[string]string{
		"audit_log_dispatch": appCfg.AuditLogDispatch,
		"audit_log_response": appCfg.AuditLogResponse,
		"audit_log_admin":    appCfg.AuditLogAdmin,
	} {
		switch v {
		case "", auditlog.DestAll, auditlog.DestDB, auditlog.DestLog, auditlog.DestOff:
		default:
			return fmt.Errorf("%s must be all, db, log or off, got %q", name, v)
		}
	}
	return nil
}
