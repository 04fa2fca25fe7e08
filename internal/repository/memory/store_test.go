package memory

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

func seedPatient(t *testing.T, s *Store, mr string) *model.DeceasedPatient {
	t.Helper()
	p := &model.DeceasedPatient{
		MRNumber:         mr,
		FullName:         "John Doe",
		Gender:           model.GenderMale,
		DateOfDeath:      time.Now().Add(-time.Hour),
		RegistrationDate: time.Now(),
		Status:           model.PatientStatusRegistered,
	}
	require.NoError(t, s.Patients().Create(context.Background(), p))
	return p
}

func seedUnit(t *testing.T, s *Store, number string) *model.StorageUnit {
	t.Helper()
	u := &model.StorageUnit{UnitNumber: number, Section: "A", Status: model.UnitStatusAvailable}
	require.NoError(t, s.StorageUnits().Create(context.Background(), u))
	return u
}

func TestPatientUniqueMRNumber(t *testing.T) {
	s := NewStore()
	seedPatient(t, s, "MR-2024-0001")

	err := s.Patients().Create(context.Background(), &model.DeceasedPatient{MRNumber: "MR-2024-0001"})
	assert.True(t, errors.HasCode(err, errors.ErrConflict))

	max, err := s.Patients().MaxMRSequence(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, max)
}

func TestAssignmentUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p1 := seedPatient(t, s, "MR-2024-0001")
	p2 := seedPatient(t, s, "MR-2024-0002")
	unit := seedUnit(t, s, "A-01")

	require.NoError(t, s.Assignments().Create(ctx, &model.StorageAssignment{
		DeceasedID: p1.ID, StorageUnitID: unit.ID, Status: model.AssignmentStatusActive, AssignedAt: time.Now(),
	}))

	err := s.Assignments().Create(ctx, &model.StorageAssignment{
		DeceasedID: p1.ID, StorageUnitID: unit.ID + 1, Status: model.AssignmentStatusActive,
	})
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyAssigned))

	err = s.Assignments().Create(ctx, &model.StorageAssignment{
		DeceasedID: p2.ID, StorageUnitID: unit.ID, Status: model.AssignmentStatusActive,
	})
	assert.True(t, errors.HasCode(err, errors.ErrUnitUnavailable))

	n, err := s.Assignments().CountActiveForUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPatient(t, s, "MR-2024-0001")
	unit := seedUnit(t, s, "A-01")

	boom := stderrors.New("boom")
	err := s.WithTx(ctx, func(q repository.Queries) error {
		if err := q.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusOccupied); err != nil {
			return err
		}
		if err := q.Patients().UpdateStatus(ctx, p.ID, model.PatientStatusPendingRelease); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.StorageUnits().Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitStatusAvailable, got.Status)

	patient, err := s.Patients().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusRegistered, patient.Status)
}

func TestFailOnIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	unit := seedUnit(t, s, "A-01")

	s.FailOn("storage_units.update_status", errors.Storage(nil))
	err := s.WithTx(ctx, func(q repository.Queries) error {
		return q.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusMaintenance)
	})
	assert.True(t, errors.HasCode(err, errors.ErrStorage))

	require.NoError(t, s.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusMaintenance))
	got, err := s.StorageUnits().Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitStatusMaintenance, got.Status)
}

func TestReadersSeeOnlyCommittedState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPatient(t, s, "MR-2024-0001")
	unit := seedUnit(t, s, "A-01")

	inside := make(chan struct{})
	proceed := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.WithTx(ctx, func(q repository.Queries) error {
			if err := q.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusOccupied); err != nil {
				return err
			}
			close(inside)
			<-proceed
			return q.Assignments().Create(ctx, &model.StorageAssignment{
				DeceasedID: p.ID, StorageUnitID: unit.ID, Status: model.AssignmentStatusActive, AssignedAt: time.Now(),
			})
		})
	}()

	<-inside
	got, err := s.StorageUnits().Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitStatusAvailable, got.Status)
	_, err = s.Assignments().GetByDeceased(ctx, p.ID)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))

	close(proceed)
	wg.Wait()

	got, err = s.StorageUnits().Get(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitStatusOccupied, got.Status)
	a, err := s.Assignments().GetByDeceased(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, a.StorageUnitID)
}

func TestOutboxPendingOrderAndCleanup(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first := &model.OutboxEvent{EventType: model.EventPatientRegistered, Payload: []byte(`{}`)}
	require.NoError(t, s.Outbox().Create(ctx, first))
	time.Sleep(time.Millisecond)
	second := &model.OutboxEvent{EventType: model.EventStorageAssigned, Payload: []byte(`{}`)}
	require.NoError(t, s.Outbox().Create(ctx, second))

	pending, err := s.Outbox().GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, s.Outbox().UpdateStatus(ctx, first.ID, model.OutboxStatusProcessed, nil, 0))
	pending, err = s.Outbox().GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	n, err := s.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDashboardStatsOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUnit(t, s, "A-01")
	occupied := seedUnit(t, s, "A-02")
	require.NoError(t, s.StorageUnits().UpdateStatus(ctx, occupied.ID, model.UnitStatusOccupied))

	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(48 * time.Hour)
	for _, task := range []*model.Task{
		{Title: "routine", Priority: model.TaskPriorityRoutine, Status: model.TaskStatusPending, DueDate: &soon},
		{Title: "urgent-later", Priority: model.TaskPriorityUrgent, Status: model.TaskStatusPending, DueDate: &later},
		{Title: "urgent-soon", Priority: model.TaskPriorityUrgent, Status: model.TaskStatusPending, DueDate: &soon},
		{Title: "done", Priority: model.TaskPriorityUrgent, Status: model.TaskStatusCompleted},
	} {
		require.NoError(t, s.Tasks().Create(ctx, task))
	}
	for _, alert := range []*model.SystemAlert{
		{Title: "warn", Severity: model.AlertSeverityWarning, Status: model.AlertStatusActive, CreatedAt: time.Now()},
		{Title: "crit", Severity: model.AlertSeverityCritical, Status: model.AlertStatusActive, CreatedAt: time.Now().Add(-time.Hour)},
		{Title: "info", Severity: model.AlertSeverityInfo, Status: model.AlertStatusActive, CreatedAt: time.Now()},
	} {
		require.NoError(t, s.Alerts().Create(ctx, alert))
	}

	stats, err := s.Dashboard().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.OccupiedUnits)
	assert.Equal(t, 1, stats.AvailableUnits)

	require.Len(t, stats.PendingTasks, 3)
	assert.Equal(t, "urgent-soon", stats.PendingTasks[0].Title)
	assert.Equal(t, "urgent-later", stats.PendingTasks[1].Title)
	assert.Equal(t, "routine", stats.PendingTasks[2].Title)

	require.Len(t, stats.ActiveAlerts, 2)
	assert.Equal(t, "crit", stats.ActiveAlerts[0].Title)
}

func TestAfterCommitRunsOnlyOnCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	unit := seedUnit(t, s, "A-01")

	var seen []model.UnitStatus
	err := s.WithTx(ctx, func(q repository.Queries) error {
		q.AfterCommit(func() {
			got, err := s.StorageUnits().Get(ctx, unit.ID)
			require.NoError(t, err)
			seen = append(seen, got.Status)
		})
		return q.StorageUnits().UpdateStatus(ctx, unit.ID, model.UnitStatusMaintenance)
	})
	require.NoError(t, err)
	assert.Equal(t, []model.UnitStatus{model.UnitStatusMaintenance}, seen)

	ran := false
	err = s.WithTx(ctx, func(q repository.Queries) error {
		q.AfterCommit(func() { ran = true })
		return stderrors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, ran)

	s.AfterCommit(func() { ran = true })
	assert.True(t, ran)
}
