package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/internal/service/notification"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type AlertServicer interface {
	Create(ctx context.Context, req *model.CreateAlertRequest) (*model.SystemAlert, error)
	RaiseOnce(ctx context.Context, req *model.CreateAlertRequest) (*model.SystemAlert, bool, error)
	Get(ctx context.Context, id int64) (*model.SystemAlert, error)
	List(ctx context.Context, filter model.AlertFilter) ([]*model.SystemAlert, error)
	Update(ctx context.Context, id int64, req *model.UpdateAlertRequest, actorID *int64) (*model.SystemAlert, error)
}

type Service struct {
	store    repository.Store
	events   *event.Service
	notifier notification.Service
}

func NewService(store repository.Store, events *event.Service, notifier notification.Service) *Service {
	return &Service{
		store:    store,
		events:   events,
		notifier: notifier,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateAlertRequest) (*model.SystemAlert, error) {
	alert, _, err := s.raise(ctx, req, false)
	return alert, err
}

// RaiseOnce creates the alert unless one with the same type, severity and
// related entity already exists. The bool reports whether it was created.
func (s *Service) RaiseOnce(ctx context.Context, req *model.CreateAlertRequest) (*model.SystemAlert, bool, error) {
	return s.raise(ctx, req, true)
}

func (s *Service) raise(ctx context.Context, req *model.CreateAlertRequest, dedupe bool) (*model.SystemAlert, bool, error) {
	alert := &model.SystemAlert{
		Type:              req.Type,
		Title:             req.Title,
		Message:           req.Message,
		Severity:          req.Severity,
		Status:            model.AlertStatusActive,
		CreatedAt:         time.Now().UTC(),
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
	}

	created := false
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if dedupe {
			existing, err := s.findExisting(ctx, q, req)
			if err != nil {
				return err
			}
			if existing != nil {
				alert = existing
				return nil
			}
		}
		if err := q.Alerts().Create(ctx, alert); err != nil {
			return err
		}
		created = true
		return s.events.Emit(ctx, q, model.EventAlertRaised, alert)
	})
	if err != nil {
		return nil, false, err
	}

	if created && s.notifier != nil {
		s.notifier.AlertRaised(ctx, alert)
	}
	return alert, created, nil
}

func (s *Service) findExisting(ctx context.Context, q repository.Queries, req *model.CreateAlertRequest) (*model.SystemAlert, error) {
	filter := model.AlertFilter{Severity: req.Severity}
	if req.RelatedEntityType != nil {
		filter.RelatedEntityType = *req.RelatedEntityType
	}
	if req.RelatedEntityID != nil {
		filter.RelatedEntityID = *req.RelatedEntityID
	}
	alerts, err := q.Alerts().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		if a.Type == req.Type && sameEntity(a, req) {
			return a, nil
		}
	}
	return nil, nil
}

func sameEntity(a *model.SystemAlert, req *model.CreateAlertRequest) bool {
	if (a.RelatedEntityType == nil) != (req.RelatedEntityType == nil) ||
		(a.RelatedEntityID == nil) != (req.RelatedEntityID == nil) {
		return false
	}
	if a.RelatedEntityType != nil && *a.RelatedEntityType != *req.RelatedEntityType {
		return false
	}
	return a.RelatedEntityID == nil || *a.RelatedEntityID == *req.RelatedEntityID
}

func (s *Service) Get(ctx context.Context, id int64) (*model.SystemAlert, error) {
	return s.store.Alerts().Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.AlertFilter) ([]*model.SystemAlert, error) {
	alerts, err := s.store.Alerts().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

var alertRank = map[model.AlertStatus]int{
	model.AlertStatusActive:       1,
	model.AlertStatusAcknowledged: 2,
	model.AlertStatusResolved:     3,
}

// Update acknowledges or resolves an alert and stamps who did it. Alerts do
// not move back to an earlier status.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateAlertRequest, actorID *int64) (*model.SystemAlert, error) {
	target, ok := alertRank[req.Status]
	if !ok {
		return nil, errors.BadRequest(fmt.Sprintf("unknown alert status %q", req.Status), nil)
	}

	var out *model.SystemAlert
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		alert, err := q.Alerts().Get(ctx, id)
		if err != nil {
			return err
		}
		out = alert
		if alert.Status == req.Status {
			return nil
		}
		if target < alertRank[alert.Status] {
			return errors.InvalidTransition(fmt.Sprintf("alert cannot move from %s to %s", alert.Status, req.Status))
		}

		now := time.Now().UTC()
		switch req.Status {
		case model.AlertStatusAcknowledged:
			alert.AcknowledgedByID = actorID
			alert.AcknowledgedAt = &now
		case model.AlertStatusResolved:
			alert.ResolvedByID = actorID
			alert.ResolvedAt = &now
		}
		alert.Status = req.Status

		if err := q.Alerts().Update(ctx, alert); err != nil {
			return err
		}
		return s.events.Emit(ctx, q, model.EventAlertUpdated, alert)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
