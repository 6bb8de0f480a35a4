// Package core selects the storage backend at startup.
package core

import (
	"context"

	"go.uber.org/zap"

	"fieldops/internal/config"
	"fieldops/internal/infra/persistence/file"
	"fieldops/internal/infra/persistence/memory"
	"fieldops/internal/infra/persistence/mongo"
	"fieldops/pkg/domain"
)

// OpenStore resolves a backend along the database → file → memory fallback
// chain. The document database is only attempted when the config enables it;
// each failed rung is logged and the next one tried. The memory rung cannot
// fail, so a store is always returned.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) domain.Store {
	if cfg.UseDB {
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			log.Info("storage backend selected", zap.String("driver", string(domain.DriverMongo)))
			return s
		}
		log.Warn("database backend unavailable, falling back to file",
			zap.String("uri", cfg.MongoURI), zap.Error(err))
	}

	s, err := file.Open(cfg.DataDir)
	if err == nil {
		log.Info("storage backend selected",
			zap.String("driver", string(domain.DriverFile)), zap.String("dir", cfg.DataDir))
		return s
	}
	log.Warn("file backend unavailable, falling back to memory",
		zap.String("dir", cfg.DataDir), zap.Error(err))

	log.Info("storage backend selected", zap.String("driver", string(domain.DriverMemory)))
	return memory.NewStore()
}
