package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type postmortemRepository struct {
	BaseRepository
}

const postmortemColumns = `id, deceased_id, scheduled_date, completed_date, assigned_to_id, findings,
	images, status, is_forensic, notes`

func (r *postmortemRepository) Create(ctx context.Context, pm *model.Postmortem) error {
	query := `
		INSERT INTO postmortems (
			deceased_id, scheduled_date, completed_date, assigned_to_id, findings,
			images, status, is_forensic, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		pm.DeceasedID,
		pm.ScheduledDate,
		pm.CompletedDate,
		pm.AssignedToID,
		pm.Findings,
		pm.Images,
		pm.Status,
		pm.IsForensic,
		pm.Notes,
	).Scan(&pm.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict(fmt.Sprintf("deceased patient %d already has a postmortem", pm.DeceasedID), err)
		}
		return fmt.Errorf("failed to create postmortem: %w", err)
	}
	return nil
}

func (r *postmortemRepository) get(ctx context.Context, query string, arg int64) (*model.Postmortem, error) {
	var pm model.Postmortem
	if err := sqlx.GetContext(ctx, r.db, &pm, query, arg); err != nil {
		return nil, getErr("postmortem", err)
	}
	return &pm, nil
}

func (r *postmortemRepository) Get(ctx context.Context, id int64) (*model.Postmortem, error) {
	return r.get(ctx, `SELECT `+postmortemColumns+` FROM postmortems WHERE id = $1`, id)
}

func (r *postmortemRepository) GetForUpdate(ctx context.Context, id int64) (*model.Postmortem, error) {
	return r.get(ctx, `SELECT `+postmortemColumns+` FROM postmortems WHERE id = $1 FOR UPDATE`, id)
}

func (r *postmortemRepository) GetByDeceased(ctx context.Context, deceasedID int64) (*model.Postmortem, error) {
	return r.get(ctx, `SELECT `+postmortemColumns+` FROM postmortems WHERE deceased_id = $1`, deceasedID)
}

func (r *postmortemRepository) Update(ctx context.Context, pm *model.Postmortem) error {
	query := `
		UPDATE postmortems SET
			scheduled_date = $1,
			completed_date = $2,
			assigned_to_id = $3,
			findings = $4,
			images = $5,
			status = $6,
			is_forensic = $7,
			notes = $8
		WHERE id = $9
	`

	result, err := r.db.ExecContext(ctx, query,
		pm.ScheduledDate,
		pm.CompletedDate,
		pm.AssignedToID,
		pm.Findings,
		pm.Images,
		pm.Status,
		pm.IsForensic,
		pm.Notes,
		pm.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update postmortem: %w", err)
	}
	return affected("postmortem", result)
}

func (r *postmortemRepository) List(ctx context.Context, filter model.PostmortemFilter) ([]*model.Postmortem, error) {
	query := `SELECT ` + postmortemColumns + ` FROM postmortems`
	var args []interface{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY scheduled_date DESC NULLS LAST, id DESC`

	postmortems := []*model.Postmortem{}
	if err := sqlx.SelectContext(ctx, r.db, &postmortems, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list postmortems: %w", err)
	}
	return postmortems, nil
}
