// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the tick and drains the deferred queue before closing
// Valkey and MongoDB. Queued ingestion tasks still write responses.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc := deps.Services; svc != nil {
		if svc.Ticker != nil {
			svc.Ticker.Stop()
		}
		if svc.FollowUps != nil {
			if err := svc.FollowUps.Close(ctx); err != nil {
				logger.Warn("follow-up queue not fully drained", zap.Error(err))
			}
		}
		if svc.AdminLimiter != nil {
			svc.AdminLimiter.Stop()
		}
		if svc.closeAuditFile != nil {
			if err := svc.closeAuditFile(); err != nil {
				logger.Warn("audit file close failed", zap.Error(err))
			}
		}
	}

	if deps.Valkey != nil {
		logger.Info("closing Valkey client")
		deps.Valkey.Close()
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
