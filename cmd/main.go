package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/config"
	"multi-tenant-notes/internal/logger"
	"multi-tenant-notes/internal/storage"
)

// @title Multi-Tenant Notes API
// @version 1.0
// @description Tenant-isolated notes with per-plan quotas and JWT authentication
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "notes",
		Short:        "Multi-tenant notes service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file (empty to use defaults and env only)")

	root.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newMigrateCmd(),
		newTenantsCmd(),
		newUsersCmd(),
	)
	return root
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	path := configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		Service:     "notes",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

// openStore opens the configured store. Postgres schemas are migrated on open.
func openStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := storage.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		log.Info("PostgreSQL connected")
		return pg, nil
	case config.DriverBolt:
		db, err := storage.NewBolt(cfg.Database.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Info("bolt store opened", zap.String("path", cfg.Database.BoltPath))
		return db, nil
	default:
		log.Warn("using in-memory store; data is lost on exit")
		return storage.NewMemory(), nil
	}
}
