// Package storage keeps storage units and storage assignments consistent: a
// patient holds at most one active assignment and a unit is occupied exactly
// when one active assignment references it.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

type StorageServicer interface {
	Assign(ctx context.Context, deceasedID, storageUnitID int64, assignedByID *int64) (*model.StorageAssignment, error)
	Reassign(ctx context.Context, assignmentID, newStorageUnitID int64) (*model.StorageAssignment, error)
	Release(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error)
	UpdateAssignment(ctx context.Context, assignmentID int64, req *model.UpdateAssignmentRequest) (*model.StorageAssignment, error)
	GetAssignment(ctx context.Context, id int64) (*model.StorageAssignment, error)
	AssignmentForPatient(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error)
	ListAssignments(ctx context.Context, filter model.AssignmentFilter) ([]*model.StorageAssignment, error)

	CreateUnit(ctx context.Context, req *model.CreateStorageUnitRequest) (*model.StorageUnit, error)
	GetUnit(ctx context.Context, id int64) (*model.StorageUnit, error)
	UpdateUnit(ctx context.Context, id int64, req *model.UpdateStorageUnitRequest) (*model.StorageUnit, error)
	ListUnits(ctx context.Context, filter model.StorageUnitFilter) ([]*model.StorageUnit, error)
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

// Assign puts a patient into an available unit. A patient whose earlier
// assignment was released gets that row re-activated.
func (s *Service) Assign(ctx context.Context, deceasedID, storageUnitID int64, assignedByID *int64) (*model.StorageAssignment, error) {
	var out *model.StorageAssignment
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		patient, err := q.Patients().GetForUpdate(ctx, deceasedID)
		if err != nil {
			return err
		}
		if patient.Status == model.PatientStatusReleased {
			return errors.InvalidTransition(fmt.Sprintf("deceased patient %d has been released", deceasedID))
		}

		existing, err := q.Assignments().GetByDeceasedForUpdate(ctx, deceasedID)
		if err != nil && !errors.HasCode(err, errors.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Status == model.AssignmentStatusActive {
			return errors.AlreadyAssigned(deceasedID)
		}

		unit, err := q.StorageUnits().GetForUpdate(ctx, storageUnitID)
		if err != nil {
			return err
		}
		if unit.Status != model.UnitStatusAvailable {
			return errors.UnitUnavailable(unit.ID, string(unit.Status))
		}

		if err := q.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusOccupied); err != nil {
			return err
		}

		now := time.Now().UTC()
		if existing != nil {
			existing.StorageUnitID = unit.ID
			existing.AssignedAt = now
			existing.AssignedByID = assignedByID
			existing.ReleaseDate = nil
			existing.Status = model.AssignmentStatusActive
			if err := q.Assignments().Update(ctx, existing); err != nil {
				return err
			}
			out = existing
		} else {
			out = &model.StorageAssignment{
				DeceasedID:    deceasedID,
				StorageUnitID: unit.ID,
				AssignedAt:    now,
				AssignedByID:  assignedByID,
				Status:        model.AssignmentStatusActive,
			}
			if err := q.Assignments().Create(ctx, out); err != nil {
				return err
			}
		}

		return s.events.Emit(ctx, q, model.EventStorageAssigned, out)
	})
	s.metrics.StorageOp("assign", err)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("storage assigned",
		"deceased_id", deceasedID, "storage_unit_id", storageUnitID, "assignment_id", out.ID)
	return out, nil
}

// Reassign moves an active assignment to another available unit.
func (s *Service) Reassign(ctx context.Context, assignmentID, newStorageUnitID int64) (*model.StorageAssignment, error) {
	var out *model.StorageAssignment
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		current, err := q.Assignments().Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		// Patient row first, then the assignment, then units by id.
		if _, err := q.Patients().GetForUpdate(ctx, current.DeceasedID); err != nil {
			return err
		}
		a, err := q.Assignments().GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a.Status != model.AssignmentStatusActive {
			return errors.AlreadyReleased(a.DeceasedID)
		}
		if a.StorageUnitID == newStorageUnitID {
			out = a
			return nil
		}

		units, err := lockUnits(ctx, q, a.StorageUnitID, newStorageUnitID)
		if err != nil {
			return err
		}
		oldUnit, newUnit := units[a.StorageUnitID], units[newStorageUnitID]
		if newUnit.Status != model.UnitStatusAvailable {
			return errors.UnitUnavailable(newUnit.ID, string(newUnit.Status))
		}

		if err := q.StorageUnits().UpdateStatus(ctx, oldUnit.ID, model.UnitStatusAvailable); err != nil {
			return err
		}
		if err := q.StorageUnits().UpdateStatus(ctx, newUnit.ID, model.UnitStatusOccupied); err != nil {
			return err
		}

		a.StorageUnitID = newUnit.ID
		if err := q.Assignments().Update(ctx, a); err != nil {
			return err
		}
		out = a

		return s.events.Emit(ctx, q, model.EventStorageReassigned, map[string]interface{}{
			"assignment":           a,
			"from_storage_unit_id": oldUnit.ID,
		})
	})
	s.metrics.StorageOp("reassign", err)
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("storage reassigned",
		"assignment_id", assignmentID, "storage_unit_id", newStorageUnitID)
	return out, nil
}

// Release frees the unit held by a patient. Releasing twice fails with
// AlreadyReleased and leaves the unit alone.
func (s *Service) Release(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error) {
	var out *model.StorageAssignment
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := q.Patients().GetForUpdate(ctx, deceasedID); err != nil {
			return err
		}
		a, err := s.ReleaseInTx(ctx, q, deceasedID)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("storage released",
		"deceased_id", deceasedID, "storage_unit_id", out.StorageUnitID)
	return out, nil
}

// ReleaseInTx releases the patient's assignment inside the caller's
// transaction. The caller is expected to hold the patient row lock.
func (s *Service) ReleaseInTx(ctx context.Context, q repository.Queries, deceasedID int64) (*model.StorageAssignment, error) {
	a, err := s.releaseInTx(ctx, q, deceasedID)
	s.metrics.StorageOp("release", err)
	return a, err
}

func (s *Service) releaseInTx(ctx context.Context, q repository.Queries, deceasedID int64) (*model.StorageAssignment, error) {
	a, err := q.Assignments().GetByDeceasedForUpdate(ctx, deceasedID)
	if err != nil {
		return nil, err
	}
	if a.Status == model.AssignmentStatusReleased {
		return nil, errors.AlreadyReleased(deceasedID)
	}

	unit, err := q.StorageUnits().GetForUpdate(ctx, a.StorageUnitID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a.Status = model.AssignmentStatusReleased
	a.ReleaseDate = &now
	if err := q.Assignments().Update(ctx, a); err != nil {
		return nil, err
	}
	if unit.Status == model.UnitStatusOccupied {
		if err := q.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusAvailable); err != nil {
			return nil, err
		}
	}

	if err := s.events.Emit(ctx, q, model.EventStorageReleased, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAssignment moves an assignment when a unit is given, or releases it
// when the status is set to released.
func (s *Service) UpdateAssignment(ctx context.Context, assignmentID int64, req *model.UpdateAssignmentRequest) (*model.StorageAssignment, error) {
	switch {
	case req.StorageUnitID != nil && req.Status != nil && *req.Status == model.AssignmentStatusReleased:
		return nil, errors.BadRequest("an assignment cannot be moved and released at once", nil)
	case req.StorageUnitID != nil:
		return s.Reassign(ctx, assignmentID, *req.StorageUnitID)
	case req.Status != nil && *req.Status == model.AssignmentStatusReleased:
		a, err := s.store.Assignments().Get(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		return s.Release(ctx, a.DeceasedID)
	case req.Status != nil:
		a, err := s.store.Assignments().Get(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		if a.Status != *req.Status {
			return nil, errors.BadRequest("use a new assignment to put a released patient back into storage", nil)
		}
		return a, nil
	}
	return nil, errors.BadRequest("nothing to update", nil)
}

func (s *Service) GetAssignment(ctx context.Context, id int64) (*model.StorageAssignment, error) {
	return s.store.Assignments().Get(ctx, id)
}

func (s *Service) AssignmentForPatient(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error) {
	if _, err := s.store.Patients().Get(ctx, deceasedID); err != nil {
		return nil, err
	}
	return s.store.Assignments().GetByDeceased(ctx, deceasedID)
}

func (s *Service) ListAssignments(ctx context.Context, filter model.AssignmentFilter) ([]*model.StorageAssignment, error) {
	assignments, err := s.store.Assignments().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage assignments: %w", err)
	}
	return assignments, nil
}

// lockUnits takes row locks on the given units in ascending id order so two
// transactions touching the same pair cannot deadlock.
func lockUnits(ctx context.Context, q repository.Queries, ids ...int64) (map[int64]*model.StorageUnit, error) {
	ordered := append([]int64(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	units := make(map[int64]*model.StorageUnit, len(ordered))
	for _, id := range ordered {
		if _, seen := units[id]; seen {
			continue
		}
		u, err := q.StorageUnits().GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		units[id] = u
	}
	return units, nil
}
