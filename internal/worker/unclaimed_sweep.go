// Package worker holds the scheduled jobs run by cmd/worker.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/service/alert"
	"github.com/jwalitptl/mortuary-api/internal/service/deceased"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

const day = 24 * time.Hour

type UnclaimedSweepConfig struct {
	Schedule      string
	AutoMark      bool
	RetentionDays int
	WarningDays   int
	CriticalDays  int
	// SystemActorID is recorded as the assignee of follow-up tasks opened by
	// the sweep. Zero leaves them unassigned.
	SystemActorID int64
}

// UnclaimedSweep alerts on bodies nobody has filed a release for and, when
// enabled, marks them unclaimed once they pass the retention period.
type UnclaimedSweep struct {
	deceased deceased.DeceasedServicer
	alerts   alert.AlertServicer
	config   UnclaimedSweepConfig
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewUnclaimedSweep(
	deceasedSvc deceased.DeceasedServicer,
	alerts alert.AlertServicer,
	config UnclaimedSweepConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) (*UnclaimedSweep, error) {
	if config.Schedule == "" {
		config.Schedule = "0 * * * *"
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", config.Schedule, err)
	}
	if config.WarningDays <= 0 || config.CriticalDays < config.WarningDays {
		return nil, fmt.Errorf("invalid alert thresholds: warning %d, critical %d days", config.WarningDays, config.CriticalDays)
	}
	if config.AutoMark && config.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be greater than 0 when auto-mark is enabled")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UnclaimedSweep{
		deceased: deceasedSvc,
		alerts:   alerts,
		config:   config,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}, nil
}

// Start runs the sweep on its cron schedule until ctx is cancelled.
func (w *UnclaimedSweep) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(w.config.Schedule, func() {
		if err := w.Run(ctx); err != nil {
			w.logger.Error(err, "Unclaimed sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.config.Schedule, err)
	}

	w.logger.Info("Starting unclaimed sweep", "schedule", w.config.Schedule, "auto_mark", w.config.AutoMark)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("Unclaimed sweep stopped")
	return nil
}

// Run performs one sweep. A failure on one patient is logged and the sweep
// moves on; the returned error reports whether anything failed.
func (w *UnclaimedSweep) Run(ctx context.Context) error {
	candidates, err := w.deceased.UnclaimedCandidates(ctx, time.Duration(w.config.WarningDays)*day)
	if err != nil {
		w.metrics.UnclaimedSweepRuns.WithLabelValues("error").Inc()
		return err
	}

	now := w.now()
	failed := 0
	for _, p := range candidates {
		if err := w.sweepOne(ctx, p, now.Sub(p.RegistrationDate)); err != nil {
			failed++
			w.logger.Error(err, "Failed to sweep patient", "deceased_id", p.ID, "mr_number", p.MRNumber)
		}
	}

	if failed > 0 {
		w.metrics.UnclaimedSweepRuns.WithLabelValues("partial").Inc()
		return fmt.Errorf("%d of %d patients failed", failed, len(candidates))
	}
	w.metrics.UnclaimedSweepRuns.WithLabelValues("success").Inc()
	return nil
}

func (w *UnclaimedSweep) sweepOne(ctx context.Context, p *model.DeceasedPatient, age time.Duration) error {
	days := int(age / day)

	severity := model.AlertSeverityWarning
	if days >= w.config.CriticalDays {
		severity = model.AlertSeverityCritical
	}
	if _, _, err := w.alerts.RaiseOnce(ctx, unclaimedAlert(p, days, severity)); err != nil {
		return fmt.Errorf("failed to raise alert: %w", err)
	}

	if !w.config.AutoMark || days < w.config.RetentionDays {
		return nil
	}

	var actor *int64
	if w.config.SystemActorID > 0 {
		actor = &w.config.SystemActorID
	}
	if _, err := w.deceased.MarkUnclaimed(ctx, p.ID, actor); err != nil {
		return fmt.Errorf("failed to mark unclaimed: %w", err)
	}
	w.metrics.UnclaimedMarked.Inc()
	w.logger.Info("Marked patient unclaimed", "deceased_id", p.ID, "mr_number", p.MRNumber, "days", days)
	return nil
}

func unclaimedAlert(p *model.DeceasedPatient, days int, severity model.AlertSeverity) *model.CreateAlertRequest {
	entity := model.EntityDeceased
	id := p.ID
	return &model.CreateAlertRequest{
		Type:              model.AlertTypeStorage,
		Title:             fmt.Sprintf("Unclaimed body: %s", p.MRNumber),
		Message:           fmt.Sprintf("%s has been in the mortuary for %d days with no release request.", p.FullName, days),
		Severity:          severity,
		RelatedEntityType: &entity,
		RelatedEntityID:   &id,
	}
}
