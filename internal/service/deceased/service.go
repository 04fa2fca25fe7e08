package deceased

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/lifecycle"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/changeset"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

const (
	maxMRAttempts       = 3
	defaultFollowUpDays = 7
)

var mrNumberPattern = regexp.MustCompile(`^MR-\d{4}-\d{4}$`)

type DeceasedServicer interface {
	Register(ctx context.Context, req *model.CreateDeceasedRequest, registeredByID *int64) (*model.DeceasedPatient, error)
	Get(ctx context.Context, id int64) (*model.DeceasedPatient, error)
	List(ctx context.Context, filter model.DeceasedFilter) ([]*model.DeceasedPatient, error)
	Update(ctx context.Context, id int64, req *model.UpdateDeceasedRequest, actorID *int64) (*model.DeceasedPatient, error)
	MarkUnclaimed(ctx context.Context, id int64, actorID *int64) (*model.DeceasedPatient, error)
	UnclaimedCandidates(ctx context.Context, olderThan time.Duration) ([]*model.DeceasedPatient, error)
}

type Service struct {
	store        repository.Store
	events       *event.Service
	metrics      *metrics.Metrics
	log          *logger.Logger
	followUpDays int
}

func NewService(store repository.Store, events *event.Service, m *metrics.Metrics, log *logger.Logger, followUpDays int) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if followUpDays <= 0 {
		followUpDays = defaultFollowUpDays
	}
	return &Service{
		store:        store,
		events:       events,
		metrics:      m,
		log:          log,
		followUpDays: followUpDays,
	}
}

// ValidMRNumber reports whether s has the MR-<year>-<4 digits> shape.
func ValidMRNumber(s string) bool {
	return mrNumberPattern.MatchString(s)
}

// Register records a new patient in status registered. When no MR number is
// supplied the next one for the current year is issued; a clash with a
// concurrent registration is retried with a fresh number.
func (s *Service) Register(ctx context.Context, req *model.CreateDeceasedRequest, registeredByID *int64) (*model.DeceasedPatient, error) {
	if req.MRNumber != "" && !ValidMRNumber(req.MRNumber) {
		return nil, errors.BadRequest(fmt.Sprintf("MR number %q must look like MR-YYYY-NNNN", req.MRNumber), nil)
	}
	if req.DateOfDeath.After(time.Now().Add(time.Minute)) {
		return nil, errors.BadRequest("date of death cannot be in the future", nil)
	}

	generated := req.MRNumber == ""
	for attempt := 1; ; attempt++ {
		patient, err := s.register(ctx, req, registeredByID)
		if err == nil {
			s.log.WithContext(ctx).Info("patient registered", "deceased_id", patient.ID, "mr_number", patient.MRNumber)
			return patient, nil
		}
		if !generated || attempt >= maxMRAttempts || !errors.HasCode(err, errors.ErrConflict) {
			return nil, err
		}
		s.log.WithContext(ctx).Warn("generated MR number clashed, retrying", "attempt", attempt)
	}
}

func (s *Service) register(ctx context.Context, req *model.CreateDeceasedRequest, registeredByID *int64) (*model.DeceasedPatient, error) {
	now := time.Now().UTC()
	patient := &model.DeceasedPatient{
		MRNumber:           req.MRNumber,
		FullName:           req.FullName,
		Age:                req.Age,
		Gender:             req.Gender,
		DateOfDeath:        req.DateOfDeath,
		CauseOfDeath:       req.CauseOfDeath,
		WardFrom:           req.WardFrom,
		AttendingPhysician: req.AttendingPhysician,
		RegistrationDate:   now,
		RegisteredByID:     registeredByID,
		Notes:              req.Notes,
		Status:             model.PatientStatusRegistered,
		Documents:          req.Documents,
	}

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if req.MRNumber == "" {
			seq, err := q.Patients().MaxMRSequence(ctx, now.Year())
			if err != nil {
				return err
			}
			patient.MRNumber = fmt.Sprintf("MR-%04d-%04d", now.Year(), seq+1)
		}
		if err := q.Patients().Create(ctx, patient); err != nil {
			return err
		}
		return s.events.Emit(ctx, q, model.EventPatientRegistered, patient)
	})
	if err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.DeceasedPatient, error) {
	return s.store.Patients().Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.DeceasedFilter) ([]*model.DeceasedPatient, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("unknown patient status %q", filter.Status), nil)
	}
	patients, err := s.store.Patients().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list deceased patients: %w", err)
	}
	return patients, nil
}

// Update edits demographic fields. A status in the request goes through
// lifecycle.SetStatus so it can never regress. Setting unclaimed opens the
// same follow-up task as MarkUnclaimed.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateDeceasedRequest, actorID *int64) (*model.DeceasedPatient, error) {
	var out *model.DeceasedPatient
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		patient, err := q.Patients().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		before := *patient
		applyUpdate(patient, req)

		var tr lifecycle.Transition
		if req.Status != nil {
			tr, err = lifecycle.SetStatus(patient.Status, *req.Status)
			if err != nil {
				return err
			}
			patient.Status = tr.To
		}

		if err := q.Patients().Update(ctx, patient); err != nil {
			return err
		}
		if tr.Changed {
			s.metrics.Transition(string(tr.Event), string(tr.To))
		}
		if tr.Has(lifecycle.OpenFollowUpTask) {
			if err := s.openFollowUpTask(ctx, q, patient, actorID); err != nil {
				return err
			}
			if err := s.events.Emit(ctx, q, model.EventPatientUnclaimed, patient); err != nil {
				return err
			}
		}
		out = patient
		return s.events.Emit(ctx, q, model.EventPatientUpdated, model.PatientUpdatedPayload{
			Patient: patient,
			Changes: changeset.Diff(&before, patient),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyUpdate(p *model.DeceasedPatient, req *model.UpdateDeceasedRequest) {
	if req.FullName != nil {
		p.FullName = *req.FullName
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.DateOfDeath != nil {
		p.DateOfDeath = *req.DateOfDeath
	}
	if req.CauseOfDeath != nil {
		p.CauseOfDeath = *req.CauseOfDeath
	}
	if req.WardFrom != nil {
		p.WardFrom = *req.WardFrom
	}
	if req.AttendingPhysician != nil {
		p.AttendingPhysician = *req.AttendingPhysician
	}
	if req.Notes != nil {
		p.Notes = req.Notes
	}
	if req.Documents != nil {
		p.Documents = *req.Documents
	}
}

// MarkUnclaimed moves a patient to unclaimed and opens a follow-up task in
// the same transaction. Marking an unclaimed patient again changes nothing.
func (s *Service) MarkUnclaimed(ctx context.Context, id int64, actorID *int64) (*model.DeceasedPatient, error) {
	var out *model.DeceasedPatient
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		patient, err := q.Patients().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out = patient

		tr, err := lifecycle.Apply(patient.Status, lifecycle.EventMarkedUnclaimed)
		if err != nil {
			return err
		}
		if !tr.Changed {
			return nil
		}

		if err := q.Patients().UpdateStatus(ctx, patient.ID, tr.To); err != nil {
			return err
		}
		patient.Status = tr.To
		s.metrics.Transition(string(tr.Event), string(tr.To))

		if tr.Has(lifecycle.OpenFollowUpTask) {
			if err := s.openFollowUpTask(ctx, q, patient, actorID); err != nil {
				return err
			}
		}
		return s.events.Emit(ctx, q, model.EventPatientUnclaimed, patient)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) openFollowUpTask(ctx context.Context, q repository.Queries, patient *model.DeceasedPatient, actorID *int64) error {
	now := time.Now().UTC()
	due := now.AddDate(0, 0, s.followUpDays)
	entity := model.EntityDeceased
	description := fmt.Sprintf("Contact next of kin or the authorities for %s (%s).", patient.FullName, patient.MRNumber)

	task := &model.Task{
		Title:             fmt.Sprintf("Follow up on unclaimed body: %s", patient.MRNumber),
		Description:       &description,
		AssignedToID:      actorID,
		Priority:          model.TaskPriorityUrgent,
		Status:            model.TaskStatusPending,
		DueDate:           &due,
		CreatedAt:         now,
		RelatedEntityType: &entity,
		RelatedEntityID:   &patient.ID,
	}
	if err := q.Tasks().Create(ctx, task); err != nil {
		return err
	}
	return s.events.Emit(ctx, q, model.EventTaskCreated, task)
}

// UnclaimedCandidates lists patients registered more than olderThan ago
// that nobody has asked to release.
func (s *Service) UnclaimedCandidates(ctx context.Context, olderThan time.Duration) ([]*model.DeceasedPatient, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	patients, err := s.store.Patients().UnclaimedCandidates(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclaimed candidates: %w", err)
	}
	return patients, nil
}
