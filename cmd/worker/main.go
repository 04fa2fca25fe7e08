package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/mortuary-api/internal/app"
	"github.com/jwalitptl/mortuary-api/internal/config"
	"github.com/jwalitptl/mortuary-api/internal/handler/health"
)

func main() {
	var healthAddr string

	cmd := &cobra.Command{
		Use:           "mortuary-worker",
		Short:         "Publishes outbox events and runs the unclaimed-body sweep",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(healthAddr)
		},
	}
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "address for health and metrics endpoints")

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run(healthAddr string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.Driver == "memory" {
		return fmt.Errorf("the standalone worker needs a shared database; use serve --with-workers with the memory driver")
	}

	logger := app.NewLogger(cfg.Log)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, registry := app.NewMetrics(cfg.Monitoring.Namespace)

	store, err := app.OpenStore(ctx, cfg.Database, m, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	broker, err := app.OpenBroker(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	deps := map[string]health.Pinger{"database": store}
	if p, ok := broker.(health.Pinger); ok {
		deps["redis"] = p
	}
	srv := &http.Server{
		Addr:              healthAddr,
		Handler:           app.NewHealthEngine(cfg.Monitoring.Namespace, deps, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Health check server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	svcs := app.NewServices(cfg, store, m, logger)
	err = app.RunWorkers(ctx, cfg, store, broker, svcs, m, logger)
	logger.Info("Worker stopped")
	return err
}
