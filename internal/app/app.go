// Package app builds the object graph shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/mortuary-api/internal/config"
	"github.com/jwalitptl/mortuary-api/internal/email"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/repository/postgres"
	"github.com/jwalitptl/mortuary-api/internal/service/alert"
	"github.com/jwalitptl/mortuary-api/internal/service/auth"
	"github.com/jwalitptl/mortuary-api/internal/service/dashboard"
	"github.com/jwalitptl/mortuary-api/internal/service/deceased"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/internal/service/notification"
	"github.com/jwalitptl/mortuary-api/internal/service/postmortem"
	"github.com/jwalitptl/mortuary-api/internal/service/release"
	"github.com/jwalitptl/mortuary-api/internal/service/report"
	"github.com/jwalitptl/mortuary-api/internal/service/storage"
	"github.com/jwalitptl/mortuary-api/internal/service/task"
	"github.com/jwalitptl/mortuary-api/internal/service/user"
	jwtauth "github.com/jwalitptl/mortuary-api/pkg/auth"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
	"github.com/jwalitptl/mortuary-api/pkg/security"
)

// NewLogger builds the process logger from config.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Console,
	})
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, m *metrics.Metrics, log *logger.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db, cfg.TxRetryAttempts, m, log), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

type Services struct {
	Events     *event.Service
	Auth       *auth.Service
	Users      *user.Service
	Deceased   *deceased.Service
	Storage    *storage.Service
	Postmortem *postmortem.Service
	Release    *release.Service
	Task       *task.Service
	Alert      *alert.Service
	Dashboard  *dashboard.Service
	Report     *report.Service
}

// NewServices wires every domain service against store.
func NewServices(cfg *config.Config, store repository.Store, m *metrics.Metrics, log *logger.Logger) *Services {
	events := event.NewService(log)
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)

	var mailer email.Service = email.NoopService{}
	if cfg.SMTP.Enabled() {
		mailer = email.NewSMTPService(cfg.SMTP)
	}

	dashboardSvc := dashboard.NewService(store.Dashboard(), cfg.Dashboard.CacheTTL)
	events.OnEmit(dashboardSvc.OnEvent)

	storageSvc := storage.NewService(store, events, m, log)
	jwt := jwtauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	return &Services{
		Events:     events,
		Auth:       auth.NewService(store.Users(), jwt, hasher, log),
		Users:      user.NewService(store.Users(), hasher),
		Deceased:   deceased.NewService(store, events, m, log, cfg.Unclaimed.FollowUpDueDays),
		Storage:    storageSvc,
		Postmortem: postmortem.NewService(store, events, m, log),
		Release:    release.NewService(store, storageSvc, events, m, log),
		Task:       task.NewService(store, events),
		Alert:      alert.NewService(store, events, notification.NewService(mailer, cfg.SMTP.AlertRecipients, log)),
		Dashboard:  dashboardSvc,
		Report:     report.NewService(store.Reports()),
	}
}

// NewMetrics registers the application metrics plus the Go and process
// collectors on a fresh registry.
func NewMetrics(namespace string) (*metrics.Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewMetrics(namespace, registry), registry
}
