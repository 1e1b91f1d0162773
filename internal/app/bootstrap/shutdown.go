// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, then tears down connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if bg := deps.background; bg != nil {
		bg.mu.Lock()
		sched, svc, stoppers := bg.scheduler, bg.svc, bg.stoppers
		bg.mu.Unlock()

		if sched != nil {
			logger.Info("stopping background jobs")
			sched.Stop(ctx)
		}
		if svc != nil {
			svc.pruner.Stop()
		}
		for _, stop := range stoppers {
			stop()
		}
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
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
