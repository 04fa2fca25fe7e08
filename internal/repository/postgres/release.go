package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type releaseRepository struct {
	BaseRepository
}

const releaseColumns = `id, deceased_id, request_date, requested_by_id, next_of_kin_name,
	next_of_kin_relation, next_of_kin_contact, identity_verified, approval_status,
	approved_by_id, approval_date, release_date, transferred_to, documents, notes`

func (r *releaseRepository) Create(ctx context.Context, req *model.BodyReleaseRequest) error {
	query := `
		INSERT INTO body_release_requests (
			deceased_id, request_date, requested_by_id, next_of_kin_name,
			next_of_kin_relation, next_of_kin_contact, identity_verified, approval_status,
			approved_by_id, approval_date, release_date, transferred_to, documents, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		req.DeceasedID,
		req.RequestDate,
		req.RequestedByID,
		req.NextOfKinName,
		req.NextOfKinRelation,
		req.NextOfKinContact,
		req.IdentityVerified,
		req.ApprovalStatus,
		req.ApprovedByID,
		req.ApprovalDate,
		req.ReleaseDate,
		req.TransferredTo,
		req.Documents,
		req.Notes,
	).Scan(&req.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict(fmt.Sprintf("deceased patient %d already has a release request", req.DeceasedID), err)
		}
		return fmt.Errorf("failed to create release request: %w", err)
	}
	return nil
}

func (r *releaseRepository) get(ctx context.Context, query string, arg int64) (*model.BodyReleaseRequest, error) {
	var req model.BodyReleaseRequest
	if err := sqlx.GetContext(ctx, r.db, &req, query, arg); err != nil {
		return nil, getErr("release request", err)
	}
	return &req, nil
}

func (r *releaseRepository) Get(ctx context.Context, id int64) (*model.BodyReleaseRequest, error) {
	return r.get(ctx, `SELECT `+releaseColumns+` FROM body_release_requests WHERE id = $1`, id)
}

func (r *releaseRepository) GetForUpdate(ctx context.Context, id int64) (*model.BodyReleaseRequest, error) {
	return r.get(ctx, `SELECT `+releaseColumns+` FROM body_release_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *releaseRepository) GetByDeceased(ctx context.Context, deceasedID int64) (*model.BodyReleaseRequest, error) {
	return r.get(ctx, `SELECT `+releaseColumns+` FROM body_release_requests WHERE deceased_id = $1`, deceasedID)
}

func (r *releaseRepository) Update(ctx context.Context, req *model.BodyReleaseRequest) error {
	query := `
		UPDATE body_release_requests SET
			next_of_kin_name = $1,
			next_of_kin_relation = $2,
			next_of_kin_contact = $3,
			identity_verified = $4,
			approval_status = $5,
			approved_by_id = $6,
			approval_date = $7,
			release_date = $8,
			transferred_to = $9,
			documents = $10,
			notes = $11
		WHERE id = $12
	`

	result, err := r.db.ExecContext(ctx, query,
		req.NextOfKinName,
		req.NextOfKinRelation,
		req.NextOfKinContact,
		req.IdentityVerified,
		req.ApprovalStatus,
		req.ApprovedByID,
		req.ApprovalDate,
		req.ReleaseDate,
		req.TransferredTo,
		req.Documents,
		req.Notes,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update release request: %w", err)
	}
	return affected("release request", result)
}

func (r *releaseRepository) List(ctx context.Context, filter model.ReleaseFilter) ([]*model.BodyReleaseRequest, error) {
	query := `SELECT ` + releaseColumns + ` FROM body_release_requests`
	var args []interface{}
	if filter.ApprovalStatus != "" {
		query += ` WHERE approval_status = $1`
		args = append(args, filter.ApprovalStatus)
	}
	query += ` ORDER BY request_date DESC, id DESC`

	requests := []*model.BodyReleaseRequest{}
	if err := sqlx.SelectContext(ctx, r.db, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list release requests: %w", err)
	}
	return requests, nil
}
