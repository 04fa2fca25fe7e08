package deceased

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, event.NewService(logger.Nop()), metrics.Noop(), logger.Nop(), 0), store
}

func validRequest(mr string) *model.CreateDeceasedRequest {
	return &model.CreateDeceasedRequest{
		MRNumber:           mr,
		FullName:           "Jane Roe",
		Age:                71,
		Gender:             model.GenderFemale,
		DateOfDeath:        time.Now().Add(-2 * time.Hour),
		CauseOfDeath:       "cardiac arrest",
		WardFrom:           "ICU",
		AttendingPhysician: "Dr. Smith",
	}
}

func TestValidMRNumber(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"MR-2024-0001", true},
		{"MR-1999-9999", true},
		{"MR-2024-001", false},
		{"mr-2024-0001", false},
		{"MR-24-0001", false},
		{"MR-2024-0001x", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidMRNumber(tt.in))
		})
	}
}

func TestRegister(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	year := time.Now().UTC().Year()

	first, err := svc.Register(ctx, validRequest(""), model.Int64Ptr(1))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("MR-%04d-0001", year), first.MRNumber)
	assert.Equal(t, model.PatientStatusRegistered, first.Status)
	assert.Equal(t, int64(1), *first.RegisteredByID)

	second, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("MR-%04d-0002", year), second.MRNumber)

	supplied := fmt.Sprintf("MR-%04d-0040", year)
	_, err = svc.Register(ctx, validRequest(supplied), nil)
	require.NoError(t, err)

	next, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("MR-%04d-0041", year), next.MRNumber)

	pending, err := store.Outbox().GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 4)
	assert.Equal(t, model.EventPatientRegistered, pending[0].EventType)
}

func TestRegisterRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRequest("MR-2024-0007"), nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, validRequest("MR-2024-0007"), nil)
	assert.ErrorIs(t, err, errors.ErrConflictKind)

	_, err = svc.Register(ctx, validRequest("2024-0007"), nil)
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))

	future := validRequest("")
	future.DateOfDeath = time.Now().Add(48 * time.Hour)
	_, err = svc.Register(ctx, future, nil)
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))
}

func TestRegisterRetriesGeneratedNumber(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	store.FailOn("patients.create", errors.Conflict("mr number taken", nil))
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)
	assert.True(t, ValidMRNumber(p.MRNumber))
}

func TestListValidatesStatus(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), model.DeceasedFilter{Status: "buried"})
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))

	out, err := svc.List(context.Background(), model.DeceasedFilter{Status: model.PatientStatusRegistered})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)

	name := "Jane A. Roe"
	pendingRelease := model.PatientStatusPendingRelease
	updated, err := svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{FullName: &name, Status: &pendingRelease}, nil)
	require.NoError(t, err)
	assert.Equal(t, name, updated.FullName)
	assert.Equal(t, model.PatientStatusPendingRelease, updated.Status)

	back := model.PatientStatusRegistered
	_, err = svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{Status: &back}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransitionKind)

	released := model.PatientStatusReleased
	_, err = svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{Status: &released}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransitionKind)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusPendingRelease, got.Status)

	_, err = svc.Update(ctx, 999, &model.UpdateDeceasedRequest{FullName: &name}, nil)
	assert.ErrorIs(t, err, errors.ErrNotFoundKind)
}

func TestMarkUnclaimed(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)

	marked, err := svc.MarkUnclaimed(ctx, p.ID, model.Int64Ptr(5))
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusUnclaimed, marked.Status)

	tasks, err := store.Tasks().List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "Follow up on unclaimed body: "+p.MRNumber, task.Title)
	assert.Equal(t, model.TaskPriorityUrgent, task.Priority)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, model.EntityDeceased, *task.RelatedEntityType)
	assert.Equal(t, p.ID, *task.RelatedEntityID)
	assert.Equal(t, int64(5), *task.AssignedToID)
	require.NotNil(t, task.DueDate)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, defaultFollowUpDays), *task.DueDate, time.Minute)

	// a second mark changes nothing and opens no new task
	_, err = svc.MarkUnclaimed(ctx, p.ID, nil)
	require.NoError(t, err)
	tasks, err = store.Tasks().List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestUpdateToUnclaimedOpensFollowUpTask(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)

	unclaimed := model.PatientStatusUnclaimed
	updated, err := svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{Status: &unclaimed}, model.Int64Ptr(3))
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusUnclaimed, updated.Status)

	tasks, err := store.Tasks().List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Follow up on unclaimed body: "+p.MRNumber, tasks[0].Title)
	assert.Equal(t, int64(3), *tasks[0].AssignedToID)

	pending, err := store.Outbox().GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	var types []string
	for _, e := range pending {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.EventPatientUnclaimed)

	// writing unclaimed again is a no-op
	_, err = svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{Status: &unclaimed}, nil)
	require.NoError(t, err)
	tasks, err = store.Tasks().List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	autopsy := model.PatientStatusPendingAutopsy
	_, err = svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{Status: &autopsy}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransitionKind)
}

func TestMarkUnclaimedIsAtomic(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)

	store.FailOn("tasks.create", errors.Storage(nil))
	_, err = svc.MarkUnclaimed(ctx, p.ID, nil)
	assert.ErrorIs(t, err, errors.ErrStorageKind)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusRegistered, got.Status)
}

func TestMarkUnclaimedReleased(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)
	require.NoError(t, store.Patients().UpdateStatus(ctx, p.ID, model.PatientStatusReleased))

	_, err = svc.MarkUnclaimed(ctx, p.ID, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransitionKind)
}

func TestUnclaimedCandidates(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	old := &model.DeceasedPatient{
		MRNumber:         "MR-2024-0001",
		FullName:         "Old",
		Gender:           model.GenderOther,
		DateOfDeath:      time.Now().AddDate(0, 0, -40),
		RegistrationDate: time.Now().AddDate(0, 0, -40),
		Status:           model.PatientStatusRegistered,
	}
	recent := &model.DeceasedPatient{
		MRNumber:         "MR-2024-0002",
		FullName:         "Recent",
		Gender:           model.GenderOther,
		DateOfDeath:      time.Now().AddDate(0, 0, -1),
		RegistrationDate: time.Now().AddDate(0, 0, -1),
		Status:           model.PatientStatusRegistered,
	}
	require.NoError(t, store.Patients().Create(ctx, old))
	require.NoError(t, store.Patients().Create(ctx, recent))

	out, err := svc.UnclaimedCandidates(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, old.ID, out[0].ID)
}

func TestUpdateEventCarriesChanges(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, validRequest(""), nil)
	require.NoError(t, err)

	ward := "ER"
	_, err = svc.Update(ctx, p.ID, &model.UpdateDeceasedRequest{WardFrom: &ward}, nil)
	require.NoError(t, err)

	pending, err := store.Outbox().GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	updated := pending[1]
	assert.Equal(t, model.EventPatientUpdated, updated.EventType)

	var payload struct {
		Changes map[string]struct {
			Old string `json:"old"`
			New string `json:"new"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(updated.Payload, &payload))
	require.Len(t, payload.Changes, 1)
	assert.Equal(t, "ICU", payload.Changes["ward_from"].Old)
	assert.Equal(t, "ER", payload.Changes["ward_from"].New)
}
