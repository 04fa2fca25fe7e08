package memory

import (
	"context"
	"fmt"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type storageUnitRepository struct {
	q queries
}

func (r storageUnitRepository) Create(ctx context.Context, u *model.StorageUnit) error {
	return r.q.write("storage_units.create", func(d *dataset) error {
		for _, existing := range d.units {
			if existing.UnitNumber == u.UnitNumber {
				return errors.Conflict(fmt.Sprintf("storage unit %s already exists", u.UnitNumber), nil)
			}
		}
		u.ID = d.nextID("storage_units")
		d.units[u.ID] = *u
		return nil
	})
}

func (r storageUnitRepository) Get(ctx context.Context, id int64) (*model.StorageUnit, error) {
	var out *model.StorageUnit
	err := r.q.read(func(d *dataset) error {
		u, ok := d.units[id]
		if !ok {
			return errors.NotFound("storage unit", nil)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r storageUnitRepository) GetForUpdate(ctx context.Context, id int64) (*model.StorageUnit, error) {
	return r.Get(ctx, id)
}

func (r storageUnitRepository) Update(ctx context.Context, u *model.StorageUnit) error {
	return r.q.write("storage_units.update", func(d *dataset) error {
		existing, ok := d.units[u.ID]
		if !ok {
			return errors.NotFound("storage unit", nil)
		}
		updated := *u
		updated.UnitNumber = existing.UnitNumber
		d.units[u.ID] = updated
		return nil
	})
}

func (r storageUnitRepository) UpdateStatus(ctx context.Context, id int64, status model.UnitStatus) error {
	return r.q.write("storage_units.update_status", func(d *dataset) error {
		u, ok := d.units[id]
		if !ok {
			return errors.NotFound("storage unit", nil)
		}
		u.Status = status
		d.units[id] = u
		return nil
	})
}

func (r storageUnitRepository) List(ctx context.Context, filter model.StorageUnitFilter) ([]*model.StorageUnit, error) {
	var out []*model.StorageUnit
	err := r.q.read(func(d *dataset) error {
		out = collect(d.units, func(u *model.StorageUnit) bool {
			return (filter.Status == "" || u.Status == filter.Status) &&
				(filter.Section == "" || u.Section == filter.Section)
		}, func(a, b *model.StorageUnit) bool {
			return a.UnitNumber < b.UnitNumber
		})
		return nil
	})
	return out, err
}

type assignmentRepository struct {
	q queries
}

// checkUnique mirrors the deceased_id unique key and the partial index that
// allows one active assignment per unit.
func checkUnique(d *dataset, a *model.StorageAssignment) error {
	for id, existing := range d.assignments {
		if id == a.ID {
			continue
		}
		if existing.DeceasedID == a.DeceasedID {
			return errors.AlreadyAssigned(a.DeceasedID)
		}
		if a.Status == model.AssignmentStatusActive &&
			existing.Status == model.AssignmentStatusActive &&
			existing.StorageUnitID == a.StorageUnitID {
			return errors.UnitUnavailable(a.StorageUnitID, string(model.UnitStatusOccupied))
		}
	}
	return nil
}

func (r assignmentRepository) Create(ctx context.Context, a *model.StorageAssignment) error {
	return r.q.write("assignments.create", func(d *dataset) error {
		if err := checkUnique(d, a); err != nil {
			return err
		}
		a.ID = d.nextID("storage_assignments")
		d.assignments[a.ID] = *a
		return nil
	})
}

func (r assignmentRepository) Get(ctx context.Context, id int64) (*model.StorageAssignment, error) {
	var out *model.StorageAssignment
	err := r.q.read(func(d *dataset) error {
		a, ok := d.assignments[id]
		if !ok {
			return errors.NotFound("storage assignment", nil)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r assignmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.StorageAssignment, error) {
	return r.Get(ctx, id)
}

func (r assignmentRepository) GetByDeceased(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error) {
	var out *model.StorageAssignment
	err := r.q.read(func(d *dataset) error {
		for _, a := range d.assignments {
			if a.DeceasedID == deceasedID {
				a := a
				out = &a
				return nil
			}
		}
		return errors.NotFound("storage assignment", nil)
	})
	return out, err
}

func (r assignmentRepository) GetByDeceasedForUpdate(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error) {
	return r.GetByDeceased(ctx, deceasedID)
}

func (r assignmentRepository) Update(ctx context.Context, a *model.StorageAssignment) error {
	return r.q.write("assignments.update", func(d *dataset) error {
		existing, ok := d.assignments[a.ID]
		if !ok {
			return errors.NotFound("storage assignment", nil)
		}
		if err := checkUnique(d, a); err != nil {
			return err
		}
		updated := *a
		updated.DeceasedID = existing.DeceasedID
		d.assignments[a.ID] = updated
		return nil
	})
}

func (r assignmentRepository) List(ctx context.Context, filter model.AssignmentFilter) ([]*model.StorageAssignment, error) {
	var out []*model.StorageAssignment
	err := r.q.read(func(d *dataset) error {
		out = collect(d.assignments, func(a *model.StorageAssignment) bool {
			return (filter.Status == "" || a.Status == filter.Status) &&
				(filter.StorageUnitID == 0 || a.StorageUnitID == filter.StorageUnitID)
		}, func(a, b *model.StorageAssignment) bool {
			if !a.AssignedAt.Equal(b.AssignedAt) {
				return a.AssignedAt.After(b.AssignedAt)
			}
			return a.ID > b.ID
		})
		return nil
	})
	return out, err
}

func (r assignmentRepository) CountActiveForUnit(ctx context.Context, unitID int64) (int, error) {
	n := 0
	err := r.q.read(func(d *dataset) error {
		for _, a := range d.assignments {
			if a.StorageUnitID == unitID && a.Status == model.AssignmentStatusActive {
				n++
			}
		}
		return nil
	})
	return n, err
}
