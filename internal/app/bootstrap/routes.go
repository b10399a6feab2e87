// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	dispatchadminfeature "github.com/dalemusser/whosthat/internal/app/features/dispatchadmin"
	errorsfeature "github.com/dalemusser/whosthat/internal/app/features/errors"
	healthfeature "github.com/dalemusser/whosthat/internal/app/features/health"
	interactionsfeature "github.com/dalemusser/whosthat/internal/app/features/interactions"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The service exposes three surfaces:
//   - /health for load balancers
//   - /slack/interactions for Slack button clicks
//   - /admin/dispatch for operator-triggered ticks (only with admin_jwt_secret)
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	if svc == nil || svc.Orchestrator == nil {
		return nil, errors.New("bootstrap: services not initialised")
	}
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, svc.Roster, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Slack interaction callbacks
	interactionsHandler := interactionsfeature.NewHandler(appCfg.SlackSigningSecret, svc.Ingestor, svc.FollowUps, logger.Named("interactions"))
	r.Mount("/slack", interactionsfeature.Routes(interactionsHandler))

	// Operator API
	if svc.Admin != nil {
		adminHandler := dispatchadminfeature.NewHandler(svc.Orchestrator, svc.Workspaces, svc.Sessions, svc.Messages, svc.Audit, errLog, logger.Named("admin"))
		r.Mount("/admin/dispatch", dispatchadminfeature.Routes(adminHandler, svc.Admin, svc.AdminLimiter))
	}

	return r, nil
}
