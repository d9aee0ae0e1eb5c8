package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/config"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/storage/file"
	"github.com/JakeFAU/contact-harvester/internal/storage/memory"
	"github.com/JakeFAU/contact-harvester/internal/storage/postgres"
	"github.com/JakeFAU/contact-harvester/internal/storage/sqlite"
)

func openStore(ctx context.Context, cfg config.StorageConfig, clock harvest.Clock, logger *zap.Logger) (harvest.Store, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory contact store; contacts are lost on exit")
		return memory.NewContactStore(clock), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table}, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres contact store init failed: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("postgres contact store schema: %w", err)
		}
		logger.Info("using postgres contact store", zap.String("table", cfg.Table))
		return store, nil
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLitePath, clock)
		if err != nil {
			return nil, fmt.Errorf("sqlite contact store init failed: %w", err)
		}
		logger.Info("using sqlite contact store", zap.String("path", cfg.SQLitePath))
		return store, nil
	default:
		store, err := file.New(cfg.Path, clock, logger.Named("file_store"))
		if err != nil {
			return nil, fmt.Errorf("file contact store init failed: %w", err)
		}
		logger.Info("using file contact store", zap.String("path", cfg.Path))
		return store, nil
	}
}
