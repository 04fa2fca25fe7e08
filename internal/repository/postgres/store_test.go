package postgres

import (
	"context"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(sqlx.NewDb(db, "postgres"), 3, metrics.Noop(), nil)
	store.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return store, mock
}

func TestWithTxCommits(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE storage_units SET status = $1 WHERE id = $2`)).
		WithArgs(model.UnitStatusOccupied, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(q repository.Queries) error {
		return q.StorageUnits().UpdateStatus(context.Background(), 4, model.UnitStatusOccupied)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAfterCommitWaitsForCommit(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	ran := false
	err := store.WithTx(context.Background(), func(q repository.Queries) error {
		q.AfterCommit(func() { ran = true })
		assert.False(t, ran)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	mock.ExpectBegin()
	mock.ExpectRollback()
	ran = false
	err = store.WithTx(context.Background(), func(q repository.Queries) error {
		q.AfterCommit(func() { ran = true })
		return stderrors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store, mock := setupMockStore(t)
	boom := stderrors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(q repository.Queries) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxDoesNotRetryDomainErrors(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := store.WithTx(context.Background(), func(q repository.Queries) error {
		calls++
		return errors.UnitUnavailable(1, "occupied")
	})
	assert.True(t, errors.HasCode(err, errors.ErrUnitUnavailable))
	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	store, mock := setupMockStore(t)
	conflict := &pq.Error{Code: serializationFailure}

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := store.WithTx(context.Background(), func(q repository.Queries) error {
		calls++
		if calls == 1 {
			return conflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxSurfacesStorageErrorAfterRetries(t *testing.T) {
	store, mock := setupMockStore(t)
	deadlock := &pq.Error{Code: deadlockDetected}

	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	calls := 0
	err := store.WithTx(context.Background(), func(q repository.Queries) error {
		calls++
		return deadlock
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrStorage))
	assert.Equal(t, 4, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCreateMapsUniqueViolations(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO storage_assignments`).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "storage_assignments_deceased_id_key"})
	err := store.Assignments().Create(ctx, &model.StorageAssignment{
		DeceasedID: 7, StorageUnitID: 2, AssignedAt: now, Status: model.AssignmentStatusActive,
	})
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyAssigned))

	mock.ExpectQuery(`INSERT INTO storage_assignments`).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: activeUnitIndex})
	err = store.Assignments().Create(ctx, &model.StorageAssignment{
		DeceasedID: 8, StorageUnitID: 2, AssignedAt: now, Status: model.AssignmentStatusActive,
	})
	assert.True(t, errors.HasCode(err, errors.ErrUnitUnavailable))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentGetByDeceasedForUpdate(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "deceased_id", "storage_unit_id", "assigned_at", "assigned_by_id", "release_date", "status",
	}).AddRow(3, 7, 2, now, nil, nil, "active")

	mock.ExpectQuery(`FROM storage_assignments WHERE deceased_id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	a, err := store.Assignments().GetByDeceasedForUpdate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.ID)
	assert.Equal(t, int64(2), a.StorageUnitID)
	assert.Equal(t, model.AssignmentStatusActive, a.Status)
	assert.Nil(t, a.ReleaseDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientGetNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`FROM deceased_patients WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := store.Patients().Get(context.Background(), 99)
	assert.Nil(t, p)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientCreateDuplicateMRNumber(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`INSERT INTO deceased_patients`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := store.Patients().Create(context.Background(), &model.DeceasedPatient{MRNumber: "MR-2026-0001"})
	assert.True(t, errors.HasCode(err, errors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxMRSequence(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX`).
		WithArgs("MR-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(41))

	seq, err := store.Patients().MaxMRSequence(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, 41, seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingRow(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`UPDATE deceased_patients SET status`).
		WithArgs(model.PatientStatusReleased, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Patients().UpdateStatus(context.Background(), 5, model.PatientStatusReleased)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxClaimsWithSkipLocked(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "error_message", "created_at", "processed_at", "updated_at", "retry_count",
	}).AddRow("6f1c5a8e-8f0e-4a53-9c55-1d2b7f0a9e11", model.EventStorageAssigned, []byte(`{"deceased_id":1}`),
		"PENDING", nil, now, nil, now, 0)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(model.OutboxStatusPending, 10).
		WillReturnRows(rows)

	events, err := store.Outbox().GetPendingEventsWithLock(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventStorageAssigned, events[0].EventType)
	assert.JSONEq(t, `{"deceased_id":1}`, string(events[0].Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}
