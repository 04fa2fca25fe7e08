package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type patientRepository struct {
	BaseRepository
}

const patientColumns = `id, mr_number, full_name, age, gender, date_of_death, cause_of_death,
	ward_from, attending_physician, registration_date, registered_by_id, notes, status, documents`

func (r *patientRepository) Create(ctx context.Context, p *model.DeceasedPatient) error {
	query := `
		INSERT INTO deceased_patients (
			mr_number, full_name, age, gender, date_of_death, cause_of_death,
			ward_from, attending_physician, registration_date, registered_by_id,
			notes, status, documents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		p.MRNumber,
		p.FullName,
		p.Age,
		p.Gender,
		p.DateOfDeath,
		p.CauseOfDeath,
		p.WardFrom,
		p.AttendingPhysician,
		p.RegistrationDate,
		p.RegisteredByID,
		p.Notes,
		p.Status,
		p.Documents,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict(fmt.Sprintf("MR number %s is already registered", p.MRNumber), err)
		}
		return fmt.Errorf("failed to create deceased patient: %w", err)
	}
	return nil
}

func (r *patientRepository) get(ctx context.Context, query string, arg interface{}) (*model.DeceasedPatient, error) {
	var p model.DeceasedPatient
	if err := sqlx.GetContext(ctx, r.db, &p, query, arg); err != nil {
		return nil, getErr("deceased patient", err)
	}
	return &p, nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.DeceasedPatient, error) {
	return r.get(ctx, `SELECT `+patientColumns+` FROM deceased_patients WHERE id = $1`, id)
}

func (r *patientRepository) GetForUpdate(ctx context.Context, id int64) (*model.DeceasedPatient, error) {
	return r.get(ctx, `SELECT `+patientColumns+` FROM deceased_patients WHERE id = $1 FOR UPDATE`, id)
}

func (r *patientRepository) GetByMRNumber(ctx context.Context, mrNumber string) (*model.DeceasedPatient, error) {
	return r.get(ctx, `SELECT `+patientColumns+` FROM deceased_patients WHERE mr_number = $1`, mrNumber)
}

func (r *patientRepository) Update(ctx context.Context, p *model.DeceasedPatient) error {
	query := `
		UPDATE deceased_patients SET
			full_name = $1,
			age = $2,
			gender = $3,
			date_of_death = $4,
			cause_of_death = $5,
			ward_from = $6,
			attending_physician = $7,
			notes = $8,
			status = $9,
			documents = $10
		WHERE id = $11
	`

	result, err := r.db.ExecContext(ctx, query,
		p.FullName,
		p.Age,
		p.Gender,
		p.DateOfDeath,
		p.CauseOfDeath,
		p.WardFrom,
		p.AttendingPhysician,
		p.Notes,
		p.Status,
		p.Documents,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update deceased patient: %w", err)
	}
	return affected("deceased patient", result)
}

func (r *patientRepository) UpdateStatus(ctx context.Context, id int64, status model.PatientStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE deceased_patients SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update patient status: %w", err)
	}
	return affected("deceased patient", result)
}

func (r *patientRepository) List(ctx context.Context, filter model.DeceasedFilter) ([]*model.DeceasedPatient, error) {
	page := filter.Pagination.Normalize()

	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR mr_number ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + patientColumns + ` FROM deceased_patients`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY registration_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	patients := []*model.DeceasedPatient{}
	if err := sqlx.SelectContext(ctx, r.db, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list deceased patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) MaxMRSequence(ctx context.Context, year int) (int, error) {
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(mr_number FROM 9) AS INTEGER)), 0)
		FROM deceased_patients
		WHERE mr_number LIKE $1
	`

	var seq int
	if err := sqlx.GetContext(ctx, r.db, &seq, query, fmt.Sprintf("MR-%04d-%%", year)); err != nil {
		return 0, fmt.Errorf("failed to read MR sequence: %w", err)
	}
	return seq, nil
}

func (r *patientRepository) UnclaimedCandidates(ctx context.Context, cutoff time.Time) ([]*model.DeceasedPatient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM deceased_patients d
		WHERE d.status NOT IN ('released', 'unclaimed')
		AND d.registration_date < $1
		AND NOT EXISTS (SELECT 1 FROM body_release_requests r WHERE r.deceased_id = d.id)
		ORDER BY d.registration_date ASC
	`

	patients := []*model.DeceasedPatient{}
	if err := sqlx.SelectContext(ctx, r.db, &patients, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list unclaimed candidates: %w", err)
	}
	return patients, nil
}
