// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/dispatch"
	"github.com/dalemusser/whosthat/internal/app/engine/ingest"
	"github.com/dalemusser/whosthat/internal/app/engine/ledger"
	"github.com/dalemusser/whosthat/internal/app/engine/pairing"
	"github.com/dalemusser/whosthat/internal/app/engine/payload"
	auditstore "github.com/dalemusser/whosthat/internal/app/store/audit"
	gamemessagestore "github.com/dalemusser/whosthat/internal/app/store/gamemessages"
	gameresponsestore "github.com/dalemusser/whosthat/internal/app/store/gameresponses"
	gamestore "github.com/dalemusser/whosthat/internal/app/store/games"
	gamesessionstore "github.com/dalemusser/whosthat/internal/app/store/gamesessions"
	gametemplatestore "github.com/dalemusser/whosthat/internal/app/store/gametemplates"
	groupstore "github.com/dalemusser/whosthat/internal/app/store/groups"
	profilestore "github.com/dalemusser/whosthat/internal/app/store/profiles"
	workspacestore "github.com/dalemusser/whosthat/internal/app/store/workspaces"
	"github.com/dalemusser/whosthat/internal/app/system/auditlog"
	"github.com/dalemusser/whosthat/internal/app/system/auth"
	"github.com/dalemusser/whosthat/internal/app/system/deferred"
	"github.com/dalemusser/whosthat/internal/app/system/onboarding"
	"github.com/dalemusser/whosthat/internal/app/system/ratelimit"
	"github.com/dalemusser/whosthat/internal/app/system/rostercache"
	"github.com/dalemusser/whosthat/internal/app/system/slackapi"
	"github.com/dalemusser/whosthat/internal/app/system/tasks"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	"github.com/dalemusser/whosthat/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Services are the runtime objects shared by the handler and shutdown.
type Services struct {
	Workspaces *workspacestore.Store
	Sessions   *gamesessionstore.Store
	Messages   *gamemessagestore.Store

	Slack        *slackapi.Client
	Roster       *rostercache.Cache
	Orchestrator *dispatch.Orchestrator
	Ingestor     *ingest.Ingestor
	FollowUps    *deferred.Queue
	Audit        *auditlog.Logger
	Admin        *auth.Verifier // nil when the admin API is disabled
	AdminLimiter *ratelimit.Limiter
	Ticker       *workers.Runner // nil when dispatch is disabled

	closeAuditFile func() error
}

// Startup wires the engine to its stores and adapters and starts the
// dispatch tick. It runs after ConnectDB and EnsureSchema.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Tick: appCfg.DispatchTickTimeout})
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	return buildServices(deps.Services, appCfg, deps, logger)
}

func buildServices(svc *Services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	// Audit trail, optionally tee'd to a rotated file.
	fileLog, closeFile := auditlog.NewFileLogger(auditlog.FileConfig{
		Path:       appCfg.AuditLogFile,
		MaxSizeMB:  appCfg.AuditLogMaxSizeMB,
		MaxBackups: appCfg.AuditLogMaxBackups,
		MaxAgeDays: appCfg.AuditLogMaxAgeDays,
		Compress:   true,
	})
	svc.closeAuditFile = closeFile
	svc.Audit = auditlog.New(auditstore.New(db), auditlog.Tee(logger, fileLog), auditlog.Config{
		Dispatch: appCfg.AuditLogDispatch,
		Response: appCfg.AuditLogResponse,
		Admin:    appCfg.AuditLogAdmin,
	})

	// Stores
	svc.Workspaces = workspacestore.New(db)
	groups := groupstore.New(db)
	svc.Sessions = gamesessionstore.New(db)
	svc.Messages = gamemessagestore.New(db)
	led := ledger.New(svc.Sessions, svc.Messages)

	// Slack and the roster cache in front of it
	svc.Slack = slackapi.New(slackapi.Options{
		PostInterval: appCfg.SlackPostInterval,
		PostBurst:    appCfg.SlackPostBurst,
	}, logger.Named("slack"))
	svc.Roster = rostercache.New(deps.Valkey, svc.Slack, rostercache.Options{
		FreshTTL: appCfg.RosterFreshTTL,
		StaleTTL: appCfg.RosterStaleTTL,
	}, logger.Named("roster"))

	svc.Orchestrator = dispatch.New(dispatch.Deps{
		Games:      gamestore.New(db),
		Workspaces: svc.Workspaces,
		Groups:     groups,
		Templates:  gametemplatestore.New(db),
		Ledger:     led,
		Selector:   pairing.NewSelector(led, nil),
		Builder:    payload.NewBuilder(nil),
		Roster:     svc.Roster,
		Messenger:  svc.Slack,
		Onboarding: onboarding.NewSender(svc.Workspaces, groups, profilestore.New(db), svc.Slack, appCfg.BaseURL, logger.Named("onboarding")),
		Audit:      svc.Audit,
		Log:        logger.Named("dispatch"),
	})

	svc.FollowUps = deferred.New(appCfg.FollowUpWorkers, appCfg.FollowUpQueueSize, timeouts.Slack(), logger.Named("deferred"))
	svc.Ingestor = ingest.New(svc.Messages, gameresponsestore.New(db), svc.FollowUps, svc.Slack, svc.Audit, logger.Named("ingest"))

	if appCfg.AdminJWTSecret != "" {
		v, err := auth.NewVerifier(appCfg.AdminJWTSecret, appCfg.AdminJWTIssuer, logger.Named("admin"))
		if err != nil {
			return err
		}
		svc.Admin = v
		svc.AdminLimiter = ratelimit.New(appCfg.AdminRateLimit, time.Minute)
	} else {
		logger.Info("admin_jwt_secret not set; admin dispatch API disabled")
	}

	if appCfg.DispatchEnabled {
		job := tasks.DispatchTickJob(svc.Orchestrator, logger.Named("tick"), appCfg.DispatchInterval, timeouts.Tick())
		svc.Ticker = workers.NewRunner(job, logger)
		svc.Ticker.Start()
	} else {
		logger.Warn("dispatch tick disabled; games only run through the admin API")
	}

	logger.Info("whosthat started",
		zap.Bool("roster_cache", svc.Roster.Enabled()),
		zap.Bool("admin_api", svc.Admin != nil),
		zap.Duration("dispatch_interval", appCfg.DispatchInterval))
	return nil
}
