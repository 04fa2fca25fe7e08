package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/email"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
)

const (
	maxRetries  = 3
	retryDelay  = 5 * time.Second
	sendTimeout = 30 * time.Second
)

type Service interface {
	AlertRaised(ctx context.Context, alert *model.SystemAlert)
}

type service struct {
	emailSvc   email.Service
	recipients []string
	retryDelay time.Duration
	log        *logger.Logger
}

// NewService mails critical alerts to recipients. Delivery happens in the
// background and is retried a few times before being logged as lost.
func NewService(emailSvc email.Service, recipients []string, log *logger.Logger) Service {
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		emailSvc:   emailSvc,
		recipients: recipients,
		retryDelay: retryDelay,
		log:        log,
	}
}

func (s *service) AlertRaised(ctx context.Context, alert *model.SystemAlert) {
	if alert.Severity != model.AlertSeverityCritical || len(s.recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("[%s] %s", alert.Severity, alert.Title)
	content := fmt.Sprintf("%s\n\nType: %s\nRaised: %s\nAlert ID: %d\n",
		alert.Message, alert.Type, alert.CreatedAt.Format(time.RFC1123), alert.ID)

	log := s.log.WithContext(ctx)
	go s.deliver(log, alert.ID, subject, content)
}

func (s *service) deliver(log *logger.Logger, alertID int64, subject, content string) {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err = s.emailSvc.SendCustom(ctx, s.recipients, subject, content)
		cancel()
		if err == nil {
			log.Info("alert notification sent", "alert_id", alertID, "attempt", attempt)
			return
		}
		log.Warn("alert notification failed", "alert_id", alertID, "attempt", attempt, "error", err.Error())
		time.Sleep(s.retryDelay * time.Duration(attempt))
	}
	log.Error(err, "alert notification dropped", "alert_id", alertID)
}
