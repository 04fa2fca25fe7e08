package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

func (s *Service) CreateUnit(ctx context.Context, req *model.CreateStorageUnitRequest) (*model.StorageUnit, error) {
	unit := &model.StorageUnit{
		UnitNumber:  req.UnitNumber,
		Section:     req.Section,
		Temperature: req.Temperature,
		Status:      model.UnitStatusAvailable,
		Notes:       req.Notes,
	}

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.StorageUnits().Create(ctx, unit); err != nil {
			return err
		}
		return s.events.Emit(ctx, q, model.EventStorageUnitCreated, unit)
	})
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *Service) GetUnit(ctx context.Context, id int64) (*model.StorageUnit, error) {
	return s.store.StorageUnits().Get(ctx, id)
}

func (s *Service) ListUnits(ctx context.Context, filter model.StorageUnitFilter) ([]*model.StorageUnit, error) {
	units, err := s.store.StorageUnits().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage units: %w", err)
	}
	return units, nil
}

// UpdateUnit edits unit details. Occupancy belongs to the assignment
// operations, so a unit holding an active assignment keeps its status and
// occupied cannot be set by hand.
func (s *Service) UpdateUnit(ctx context.Context, id int64, req *model.UpdateStorageUnitRequest) (*model.StorageUnit, error) {
	var out *model.StorageUnit
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		unit, err := q.StorageUnits().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.Section != nil {
			unit.Section = *req.Section
		}
		if req.Temperature != nil {
			unit.Temperature = req.Temperature
		}
		if req.LastMaintenance != nil {
			unit.LastMaintenance = req.LastMaintenance
		}
		if req.Notes != nil {
			unit.Notes = req.Notes
		}

		if req.Status != nil && *req.Status != unit.Status {
			if *req.Status == model.UnitStatusOccupied {
				return errors.BadRequest("units become occupied through a storage assignment", nil)
			}
			active, err := q.Assignments().CountActiveForUnit(ctx, unit.ID)
			if err != nil {
				return err
			}
			if active > 0 {
				return errors.UnitUnavailable(unit.ID, string(unit.Status))
			}
			unit.Status = *req.Status
			if unit.Status == model.UnitStatusMaintenance && req.LastMaintenance == nil {
				now := time.Now().UTC()
				unit.LastMaintenance = &now
			}
		}

		if err := q.StorageUnits().Update(ctx, unit); err != nil {
			return err
		}
		out = unit
		return s.events.Emit(ctx, q, model.EventStorageUnitUpdated, unit)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
