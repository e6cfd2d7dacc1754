package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"multi-tenant-notes/internal/api"
	"multi-tenant-notes/internal/auth"
	"multi-tenant-notes/internal/config"
	"multi-tenant-notes/internal/manager"
	"multi-tenant-notes/internal/messaging"
	"multi-tenant-notes/internal/metrics"
	"multi-tenant-notes/internal/storage"
	"multi-tenant-notes/internal/worker"
)

// tenantWatchInterval bounds how long a tenant created by another process
// waits for its consumers.
const tenantWatchInterval = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cfg, log)
		},
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if pg, ok := store.(*storage.Postgres); ok {
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	var publisher manager.EventPublisher
	var pool *worker.Pool
	var rabbit *messaging.RabbitClient
	if cfg.RabbitMQ.URL != "" {
		rabbit, err = messaging.NewRabbitClient(cfg.RabbitMQ.URL, log)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		log.Info("RabbitMQ connected")
		publisher = rabbit
		pool = worker.NewPool(rabbit, cfg.Workers, log)
	} else {
		log.Info("RabbitMQ not configured; domain events are disabled")
	}

	tenants := manager.NewTenantManager(store, publisher, log)
	accounts := manager.NewAccountManager(store, store, tokens, log)
	notes := manager.NewNoteManager(store, store, publisher, log)

	if pool != nil {
		ids, err := tenants.ListTenantIDs(ctx)
		if err != nil {
			return err
		}
		_ = pool.Sync(ids)
		go pool.Watch(ctx, tenants, tenantWatchInterval)
	}

	apiHandler := api.NewAPI(accounts, notes, tenants, auth.NewResolver(tokens, store, log), cfg, log)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting API server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	if pool != nil {
		pool.StopAll()
	}

	log.Info("graceful shutdown complete")
	return nil
}
