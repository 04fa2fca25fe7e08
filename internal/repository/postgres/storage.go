package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type storageUnitRepository struct {
	BaseRepository
}

const unitColumns = `id, unit_number, section, temperature, status, last_maintenance, notes`

func (r *storageUnitRepository) Create(ctx context.Context, u *model.StorageUnit) error {
	query := `
		INSERT INTO storage_units (unit_number, section, temperature, status, last_maintenance, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		u.UnitNumber, u.Section, u.Temperature, u.Status, u.LastMaintenance, u.Notes,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict(fmt.Sprintf("storage unit %s already exists", u.UnitNumber), err)
		}
		return fmt.Errorf("failed to create storage unit: %w", err)
	}
	return nil
}

func (r *storageUnitRepository) Get(ctx context.Context, id int64) (*model.StorageUnit, error) {
	var u model.StorageUnit
	if err := sqlx.GetContext(ctx, r.db, &u, `SELECT `+unitColumns+` FROM storage_units WHERE id = $1`, id); err != nil {
		return nil, getErr("storage unit", err)
	}
	return &u, nil
}

func (r *storageUnitRepository) GetForUpdate(ctx context.Context, id int64) (*model.StorageUnit, error) {
	var u model.StorageUnit
	if err := sqlx.GetContext(ctx, r.db, &u, `SELECT `+unitColumns+` FROM storage_units WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, getErr("storage unit", err)
	}
	return &u, nil
}

func (r *storageUnitRepository) Update(ctx context.Context, u *model.StorageUnit) error {
	query := `
		UPDATE storage_units SET
			section = $1,
			temperature = $2,
			status = $3,
			last_maintenance = $4,
			notes = $5
		WHERE id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		u.Section, u.Temperature, u.Status, u.LastMaintenance, u.Notes, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update storage unit: %w", err)
	}
	return affected("storage unit", result)
}

func (r *storageUnitRepository) UpdateStatus(ctx context.Context, id int64, status model.UnitStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE storage_units SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update storage unit status: %w", err)
	}
	return affected("storage unit", result)
}

func (r *storageUnitRepository) List(ctx context.Context, filter model.StorageUnitFilter) ([]*model.StorageUnit, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Section != "" {
		args = append(args, filter.Section)
		where = append(where, fmt.Sprintf("section = $%d", len(args)))
	}

	query := `SELECT ` + unitColumns + ` FROM storage_units`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY unit_number"

	units := []*model.StorageUnit{}
	if err := sqlx.SelectContext(ctx, r.db, &units, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list storage units: %w", err)
	}
	return units, nil
}

type assignmentRepository struct {
	BaseRepository
}

// activeUnitIndex allows at most one active assignment per unit.
const activeUnitIndex = "idx_storage_assignments_active_unit"

func assignmentConflict(a *model.StorageAssignment, err error) error {
	if constraint(err) == activeUnitIndex {
		return errors.UnitUnavailable(a.StorageUnitID, string(model.UnitStatusOccupied))
	}
	return errors.AlreadyAssigned(a.DeceasedID)
}

const assignmentColumns = `id, deceased_id, storage_unit_id, assigned_at, assigned_by_id, release_date, status`

func (r *assignmentRepository) Create(ctx context.Context, a *model.StorageAssignment) error {
	query := `
		INSERT INTO storage_assignments (deceased_id, storage_unit_id, assigned_at, assigned_by_id, release_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		a.DeceasedID, a.StorageUnitID, a.AssignedAt, a.AssignedByID, a.ReleaseDate, a.Status,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return assignmentConflict(a, err)
		}
		return fmt.Errorf("failed to create storage assignment: %w", err)
	}
	return nil
}

func (r *assignmentRepository) get(ctx context.Context, query string, arg int64) (*model.StorageAssignment, error) {
	var a model.StorageAssignment
	if err := sqlx.GetContext(ctx, r.db, &a, query, arg); err != nil {
		return nil, getErr("storage assignment", err)
	}
	return &a, nil
}

func (r *assignmentRepository) Get(ctx context.Context, id int64) (*model.StorageAssignment, error) {
	return r.get(ctx, `SELECT `+assignmentColumns+` FROM storage_assignments WHERE id = $1`, id)
}

func (r *assignmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.StorageAssignment, error) {
	return r.get(ctx, `SELECT `+assignmentColumns+` FROM storage_assignments WHERE id = $1 FOR UPDATE`, id)
}

func (r *assignmentRepository) GetByDeceased(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error) {
	return r.get(ctx, `SELECT `+assignmentColumns+` FROM storage_assignments WHERE deceased_id = $1`, deceasedID)
}

func (r *assignmentRepository) GetByDeceasedForUpdate(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error) {
	return r.get(ctx, `SELECT `+assignmentColumns+` FROM storage_assignments WHERE deceased_id = $1 FOR UPDATE`, deceasedID)
}

func (r *assignmentRepository) Update(ctx context.Context, a *model.StorageAssignment) error {
	query := `
		UPDATE storage_assignments SET
			storage_unit_id = $1,
			assigned_at = $2,
			assigned_by_id = $3,
			release_date = $4,
			status = $5
		WHERE id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		a.StorageUnitID, a.AssignedAt, a.AssignedByID, a.ReleaseDate, a.Status, a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return assignmentConflict(a, err)
		}
		return fmt.Errorf("failed to update storage assignment: %w", err)
	}
	return affected("storage assignment", result)
}

func (r *assignmentRepository) List(ctx context.Context, filter model.AssignmentFilter) ([]*model.StorageAssignment, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.StorageUnitID != 0 {
		args = append(args, filter.StorageUnitID)
		where = append(where, fmt.Sprintf("storage_unit_id = $%d", len(args)))
	}

	query := `SELECT ` + assignmentColumns + ` FROM storage_assignments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY assigned_at DESC, id DESC"

	assignments := []*model.StorageAssignment{}
	if err := sqlx.SelectContext(ctx, r.db, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list storage assignments: %w", err)
	}
	return assignments, nil
}

func (r *assignmentRepository) CountActiveForUnit(ctx context.Context, unitID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM storage_assignments WHERE storage_unit_id = $1 AND status = 'active'`
	if err := sqlx.GetContext(ctx, r.db, &n, query, unitID); err != nil {
		return 0, fmt.Errorf("failed to count active assignments: %w", err)
	}
	return n, nil
}
