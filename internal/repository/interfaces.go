package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/mortuary-api/internal/model"
)

// All repository interfaces in one file
type (
	// PatientRepository handles deceased patient records
	PatientRepository interface {
		Create(ctx context.Context, patient *model.DeceasedPatient) error
		Get(ctx context.Context, id int64) (*model.DeceasedPatient, error)
		GetForUpdate(ctx context.Context, id int64) (*model.DeceasedPatient, error)
		GetByMRNumber(ctx context.Context, mrNumber string) (*model.DeceasedPatient, error)
		Update(ctx context.Context, patient *model.DeceasedPatient) error
		UpdateStatus(ctx context.Context, id int64, status model.PatientStatus) error
		List(ctx context.Context, filter model.DeceasedFilter) ([]*model.DeceasedPatient, error)
		// MaxMRSequence returns the highest per-year sequence issued, 0 when none.
		MaxMRSequence(ctx context.Context, year int) (int, error)
		// UnclaimedCandidates lists patients registered before cutoff that are
		// neither released nor unclaimed and have no release request.
		UnclaimedCandidates(ctx context.Context, cutoff time.Time) ([]*model.DeceasedPatient, error)
	}

	StorageUnitRepository interface {
		Create(ctx context.Context, unit *model.StorageUnit) error
		Get(ctx context.Context, id int64) (*model.StorageUnit, error)
		GetForUpdate(ctx context.Context, id int64) (*model.StorageUnit, error)
		Update(ctx context.Context, unit *model.StorageUnit) error
		UpdateStatus(ctx context.Context, id int64, status model.UnitStatus) error
		List(ctx context.Context, filter model.StorageUnitFilter) ([]*model.StorageUnit, error)
	}

	AssignmentRepository interface {
		// Create fails with AlreadyAssigned when the patient already has a row.
		Create(ctx context.Context, assignment *model.StorageAssignment) error
		Get(ctx context.Context, id int64) (*model.StorageAssignment, error)
		GetForUpdate(ctx context.Context, id int64) (*model.StorageAssignment, error)
		GetByDeceased(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error)
		GetByDeceasedForUpdate(ctx context.Context, deceasedID int64) (*model.StorageAssignment, error)
		Update(ctx context.Context, assignment *model.StorageAssignment) error
		List(ctx context.Context, filter model.AssignmentFilter) ([]*model.StorageAssignment, error)
		CountActiveForUnit(ctx context.Context, unitID int64) (int, error)
	}

	PostmortemRepository interface {
		Create(ctx context.Context, pm *model.Postmortem) error
		Get(ctx context.Context, id int64) (*model.Postmortem, error)
		GetForUpdate(ctx context.Context, id int64) (*model.Postmortem, error)
		GetByDeceased(ctx context.Context, deceasedID int64) (*model.Postmortem, error)
		Update(ctx context.Context, pm *model.Postmortem) error
		List(ctx context.Context, filter model.PostmortemFilter) ([]*model.Postmortem, error)
	}

	ReleaseRepository interface {
		Create(ctx context.Context, req *model.BodyReleaseRequest) error
		Get(ctx context.Context, id int64) (*model.BodyReleaseRequest, error)
		GetForUpdate(ctx context.Context, id int64) (*model.BodyReleaseRequest, error)
		GetByDeceased(ctx context.Context, deceasedID int64) (*model.BodyReleaseRequest, error)
		Update(ctx context.Context, req *model.BodyReleaseRequest) error
		List(ctx context.Context, filter model.ReleaseFilter) ([]*model.BodyReleaseRequest, error)
	}

	TaskRepository interface {
		Create(ctx context.Context, task *model.Task) error
		Get(ctx context.Context, id int64) (*model.Task, error)
		Update(ctx context.Context, task *model.Task) error
		List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error)
	}

	AlertRepository interface {
		Create(ctx context.Context, alert *model.SystemAlert) error
		Get(ctx context.Context, id int64) (*model.SystemAlert, error)
		Update(ctx context.Context, alert *model.SystemAlert) error
		List(ctx context.Context, filter model.AlertFilter) ([]*model.SystemAlert, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context) ([]*model.User, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock claims pending events for the current
		// transaction, skipping rows locked by other processors.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryCount int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	DashboardRepository interface {
		Stats(ctx context.Context) (*model.DashboardStats, error)
	}

	ReportRepository interface {
		Summary(ctx context.Context, period model.Period) (*model.ReportSummary, error)
	}
)

// Queries groups the repositories bound to one connection or transaction.
type Queries interface {
	Patients() PatientRepository
	StorageUnits() StorageUnitRepository
	Assignments() AssignmentRepository
	Postmortems() PostmortemRepository
	Releases() ReleaseRepository
	Tasks() TaskRepository
	Alerts() AlertRepository
	Users() UserRepository
	Outbox() OutboxRepository
	Dashboard() DashboardRepository
	Reports() ReportRepository

	// AfterCommit runs fn once the surrounding transaction has committed.
	// Outside a transaction fn runs immediately. Rolled back work drops it.
	AfterCommit(fn func())
}

// Store is the unit-of-work entry point. WithTx commits when fn returns nil
// and rolls back on error or panic. Queries passed to fn must not escape it.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close() error
}
