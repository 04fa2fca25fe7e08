package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/repository"
)

// BaseRepository provides common functionality for all repositories. db is
// either the pool or an open transaction.
type BaseRepository struct {
	db sqlx.ExtContext
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db sqlx.ExtContext) BaseRepository {
	return BaseRepository{db: db}
}

// queries binds every repository to the same connection or transaction.
type queries struct {
	base  BaseRepository
	after *[]func()
}

func newQueries(db sqlx.ExtContext) queries {
	return queries{base: NewBaseRepository(db)}
}

func newTxQueries(tx sqlx.ExtContext, after *[]func()) queries {
	return queries{base: NewBaseRepository(tx), after: after}
}

func (q queries) AfterCommit(fn func()) {
	if q.after == nil {
		fn()
		return
	}
	*q.after = append(*q.after, fn)
}

func (q queries) Patients() repository.PatientRepository { return &patientRepository{q.base} }

func (q queries) StorageUnits() repository.StorageUnitRepository {
	return &storageUnitRepository{q.base}
}

func (q queries) Assignments() repository.AssignmentRepository {
	return &assignmentRepository{q.base}
}

func (q queries) Postmortems() repository.PostmortemRepository {
	return &postmortemRepository{q.base}
}

func (q queries) Releases() repository.ReleaseRepository { return &releaseRepository{q.base} }

func (q queries) Tasks() repository.TaskRepository { return &taskRepository{q.base} }

func (q queries) Alerts() repository.AlertRepository { return &alertRepository{q.base} }

func (q queries) Users() repository.UserRepository { return &userRepository{q.base} }

func (q queries) Outbox() repository.OutboxRepository { return &outboxRepository{q.base} }

func (q queries) Dashboard() repository.DashboardRepository { return &dashboardRepository{q.base} }

func (q queries) Reports() repository.ReportRepository { return &reportRepository{q.base} }
