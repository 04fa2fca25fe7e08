package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/mortuary-api/internal/app"
	"github.com/jwalitptl/mortuary-api/internal/config"
	alerthandler "github.com/jwalitptl/mortuary-api/internal/handler/alert"
	authhandler "github.com/jwalitptl/mortuary-api/internal/handler/auth"
	dashboardhandler "github.com/jwalitptl/mortuary-api/internal/handler/dashboard"
	deceasedhandler "github.com/jwalitptl/mortuary-api/internal/handler/deceased"
	"github.com/jwalitptl/mortuary-api/internal/handler/health"
	postmortemhandler "github.com/jwalitptl/mortuary-api/internal/handler/postmortem"
	"github.com/jwalitptl/mortuary-api/internal/handler/prometheus"
	releasehandler "github.com/jwalitptl/mortuary-api/internal/handler/release"
	storagehandler "github.com/jwalitptl/mortuary-api/internal/handler/storage"
	taskhandler "github.com/jwalitptl/mortuary-api/internal/handler/task"
	userhandler "github.com/jwalitptl/mortuary-api/internal/handler/user"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/router"
	"github.com/jwalitptl/mortuary-api/pkg/validator"
)

func newServeCmd() *cobra.Command {
	var withWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(withWorkers)
		},
	}
	cmd.Flags().BoolVar(&withWorkers, "with-workers", false,
		"also run the outbox processor and unclaimed sweep in this process")
	return cmd
}

func serve(withWorkers bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := app.NewLogger(cfg.Log)
	gin.SetMode(gin.ReleaseMode)
	if err := validator.RegisterGin(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, registry := app.NewMetrics(cfg.Monitoring.Namespace)

	store, err := app.OpenStore(ctx, cfg.Database, m, log)
	if err != nil {
		return err
	}
	defer store.Close()

	svcs := app.NewServices(cfg, store, m, log)

	h := router.Handlers{
		Auth:       authhandler.NewHandler(svcs.Auth),
		Health:     health.NewHandler(map[string]health.Pinger{"database": store}),
		Metrics:    prometheus.New(cfg.Monitoring.Namespace, registry),
		Deceased:   deceasedhandler.NewHandler(svcs.Deceased, svcs.Storage),
		Storage:    storagehandler.NewHandler(svcs.Storage),
		Postmortem: postmortemhandler.NewHandler(svcs.Postmortem),
		Release:    releasehandler.NewHandler(svcs.Release),
		Task:       taskhandler.NewHandler(svcs.Task),
		Alert:      alerthandler.NewHandler(svcs.Alert),
		Dashboard:  dashboardhandler.NewHandler(svcs.Dashboard, svcs.Report),
		User:       userhandler.NewHandler(svcs.Users),
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(svcs.Auth), h, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		CORSConfig:       middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins),
		RequestTimeout:   cfg.Server.RequestTimeout,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	workersDone := make(chan error, 1)
	if withWorkers {
		broker, err := app.OpenBroker(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer broker.Close()
		go func() {
			workersDone <- app.RunWorkers(ctx, cfg, store, broker, svcs, m, log)
		}()
	} else {
		close(workersDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := <-workersDone; err != nil {
		log.Error(err, "Workers stopped with error")
	}

	log.Info("Server exited properly")
	return nil
}
