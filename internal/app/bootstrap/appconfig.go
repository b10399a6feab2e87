// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration; ports, TLS, log level and
// request limits stay in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Valkey roster cache (blank address disables caching)
	ValkeyAddr     string
	ValkeyPassword string
	ValkeyDB       int
	RosterFreshTTL time.Duration
	RosterStaleTTL time.Duration

	// Slack
	SlackSigningSecret string        // verifies inbound interaction callbacks
	SlackPostInterval  time.Duration // pacing between outbound Web API calls
	SlackPostBurst     int

	// Dispatch tick
	DispatchEnabled     bool
	DispatchInterval    time.Duration // must be ≤ 1m so exact-minute schedules are not skipped
	DispatchTickTimeout time.Duration

	// Deferred follow-up queue
	FollowUpWorkers   int
	FollowUpQueueSize int

	// Admin API
	AdminJWTSecret string
	AdminJWTIssuer string
	AdminRateLimit int // requests per minute per client IP

	// Base URL for onboarding links (e.g., "https://whosthat.example.com")
	BaseURL string

	// Audit logging: "all" (db+log), "db", "log", or "off"
	AuditLogDispatch string
	AuditLogResponse string
	AuditLogAdmin    string

	// Optional rotated JSON audit file
	AuditLogFile       string
	AuditLogMaxSizeMB  int
	AuditLogMaxBackups int
	AuditLogMaxAgeDays int
}
