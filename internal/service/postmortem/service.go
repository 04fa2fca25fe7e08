package postmortem

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/lifecycle"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

type PostmortemServicer interface {
	Schedule(ctx context.Context, req *model.SchedulePostmortemRequest) (*model.Postmortem, error)
	Get(ctx context.Context, id int64) (*model.Postmortem, error)
	List(ctx context.Context, filter model.PostmortemFilter) ([]*model.Postmortem, error)
	Update(ctx context.Context, id int64, req *model.UpdatePostmortemRequest) (*model.Postmortem, error)
}

type Service struct {
	store   repository.Store
	events  *event.Service
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewService(store repository.Store, events *event.Service, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:   store,
		events:  events,
		metrics: m,
		log:     log,
	}
}

// Schedule creates the examination record and moves the patient to
// pending_autopsy unless the patient is already further along.
func (s *Service) Schedule(ctx context.Context, req *model.SchedulePostmortemRequest) (*model.Postmortem, error) {
	pm := &model.Postmortem{
		DeceasedID:    req.DeceasedID,
		ScheduledDate: req.ScheduledDate,
		AssignedToID:  req.AssignedToID,
		Images:        model.StringList{},
		Status:        model.PostmortemStatusScheduled,
		IsForensic:    req.IsForensic,
		Notes:         req.Notes,
	}

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		patient, err := q.Patients().GetForUpdate(ctx, req.DeceasedID)
		if err != nil {
			return err
		}

		_, err = q.Postmortems().GetByDeceased(ctx, req.DeceasedID)
		switch {
		case err == nil:
			return errors.Conflict(fmt.Sprintf("deceased patient %d already has a postmortem", req.DeceasedID), nil)
		case !errors.HasCode(err, errors.ErrNotFound):
			return err
		}

		tr, err := lifecycle.Apply(patient.Status, lifecycle.EventPostmortemScheduled)
		if err != nil {
			return err
		}

		if err := q.Postmortems().Create(ctx, pm); err != nil {
			return err
		}
		if err := s.applyTransition(ctx, q, tr, patient.ID); err != nil {
			return err
		}
		return s.events.Emit(ctx, q, model.EventPostmortemScheduled, pm)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("postmortem scheduled", "postmortem_id", pm.ID, "deceased_id", pm.DeceasedID)
	return pm, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Postmortem, error) {
	return s.store.Postmortems().Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.PostmortemFilter) ([]*model.Postmortem, error) {
	postmortems, err := s.store.Postmortems().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list postmortems: %w", err)
	}
	return postmortems, nil
}

// Update edits the examination. The first move to completed stamps the
// completion date when none is given and advances the patient to
// autopsy_completed in the same transaction.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdatePostmortemRequest) (*model.Postmortem, error) {
	var out *model.Postmortem
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		current, err := q.Postmortems().Get(ctx, id)
		if err != nil {
			return err
		}
		patient, err := q.Patients().GetForUpdate(ctx, current.DeceasedID)
		if err != nil {
			return err
		}
		pm, err := q.Postmortems().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		completing := false
		if req.Status != nil {
			if err := lifecycle.CheckPostmortem(pm.Status, *req.Status); err != nil {
				return err
			}
			completing = *req.Status == model.PostmortemStatusCompleted && pm.Status != model.PostmortemStatusCompleted
			pm.Status = *req.Status
		}

		if req.ScheduledDate != nil {
			pm.ScheduledDate = req.ScheduledDate
		}
		if req.CompletedDate != nil {
			pm.CompletedDate = req.CompletedDate
		}
		if req.AssignedToID != nil {
			pm.AssignedToID = req.AssignedToID
		}
		if req.Findings != nil {
			pm.Findings = req.Findings
		}
		if req.Images != nil {
			pm.Images = *req.Images
		}
		if req.IsForensic != nil {
			pm.IsForensic = *req.IsForensic
		}
		if req.Notes != nil {
			pm.Notes = req.Notes
		}

		if completing {
			if pm.CompletedDate == nil {
				now := time.Now().UTC()
				pm.CompletedDate = &now
			}
			tr, err := lifecycle.Apply(patient.Status, lifecycle.EventPostmortemCompleted)
			if err != nil {
				return err
			}
			if err := s.applyTransition(ctx, q, tr, patient.ID); err != nil {
				return err
			}
		}

		if err := q.Postmortems().Update(ctx, pm); err != nil {
			return err
		}
		out = pm
		return s.events.Emit(ctx, q, model.EventPostmortemUpdated, pm)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) applyTransition(ctx context.Context, q repository.Queries, tr lifecycle.Transition, deceasedID int64) error {
	if !tr.Changed {
		return nil
	}
	if err := q.Patients().UpdateStatus(ctx, deceasedID, tr.To); err != nil {
		return err
	}
	s.metrics.Transition(string(tr.Event), string(tr.To))
	return nil
}
