package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
)

type alertRepository struct {
	BaseRepository
}

const alertColumns = `id, type, title, message, severity, status, created_at, acknowledged_by_id,
	acknowledged_at, resolved_by_id, resolved_at, related_entity_type, related_entity_id`

func (r *alertRepository) Create(ctx context.Context, a *model.SystemAlert) error {
	query := `
		INSERT INTO system_alerts (
			type, title, message, severity, status, created_at,
			related_entity_type, related_entity_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		a.Type,
		a.Title,
		a.Message,
		a.Severity,
		a.Status,
		a.CreatedAt,
		a.RelatedEntityType,
		a.RelatedEntityID,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create system alert: %w", err)
	}
	return nil
}

func (r *alertRepository) Get(ctx context.Context, id int64) (*model.SystemAlert, error) {
	var a model.SystemAlert
	if err := sqlx.GetContext(ctx, r.db, &a, `SELECT `+alertColumns+` FROM system_alerts WHERE id = $1`, id); err != nil {
		return nil, getErr("system alert", err)
	}
	return &a, nil
}

func (r *alertRepository) Update(ctx context.Context, a *model.SystemAlert) error {
	query := `
		UPDATE system_alerts SET
			status = $1,
			acknowledged_by_id = $2,
			acknowledged_at = $3,
			resolved_by_id = $4,
			resolved_at = $5
		WHERE id = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		a.Status, a.AcknowledgedByID, a.AcknowledgedAt, a.ResolvedByID, a.ResolvedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update system alert: %w", err)
	}
	return affected("system alert", result)
}

func (r *alertRepository) List(ctx context.Context, filter model.AlertFilter) ([]*model.SystemAlert, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Severity != "" {
		add("severity = $%d", filter.Severity)
	}
	if filter.RelatedEntityType != "" {
		add("related_entity_type = $%d", filter.RelatedEntityType)
	}
	if filter.RelatedEntityID != 0 {
		add("related_entity_id = $%d", filter.RelatedEntityID)
	}

	query := `SELECT ` + alertColumns + ` FROM system_alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	alerts := []*model.SystemAlert{}
	if err := sqlx.SelectContext(ctx, r.db, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list system alerts: %w", err)
	}
	return alerts, nil
}
