package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/service/alert"
	"github.com/jwalitptl/mortuary-api/internal/service/deceased"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

type noopNotifier struct{}

func (noopNotifier) AlertRaised(context.Context, *model.SystemAlert) {}

type sweepFixture struct {
	store  *memory.Store
	alerts *alert.Service
	sweep  *UnclaimedSweep
}

func newSweepFixture(t *testing.T, autoMark bool) *sweepFixture {
	t.Helper()
	store := memory.NewStore()
	events := event.NewService(logger.Nop())
	m := metrics.Noop()
	alerts := alert.NewService(store, events, noopNotifier{})
	sweep, err := NewUnclaimedSweep(
		deceased.NewService(store, events, m, logger.Nop(), 0),
		alerts,
		UnclaimedSweepConfig{AutoMark: autoMark, RetentionDays: 30, WarningDays: 14, CriticalDays: 21, SystemActorID: 1},
		m,
		logger.Nop(),
	)
	require.NoError(t, err)
	return &sweepFixture{store: store, alerts: alerts, sweep: sweep}
}

func (f *sweepFixture) patient(t *testing.T, daysAgo int) *model.DeceasedPatient {
	t.Helper()
	registered := time.Now().UTC().AddDate(0, 0, -daysAgo).Add(-time.Hour)
	p := &model.DeceasedPatient{
		MRNumber:         fmt.Sprintf("MR-2024-%04d", daysAgo),
		FullName:         "John Doe",
		Gender:           model.GenderMale,
		DateOfDeath:      registered,
		RegistrationDate: registered,
		Status:           model.PatientStatusRegistered,
	}
	require.NoError(t, f.store.Patients().Create(context.Background(), p))
	return p
}

func (f *sweepFixture) alertsFor(t *testing.T, id int64) []*model.SystemAlert {
	t.Helper()
	all, err := f.alerts.List(context.Background(), model.AlertFilter{})
	require.NoError(t, err)
	var out []*model.SystemAlert
	for _, a := range all {
		if a.RelatedEntityID != nil && *a.RelatedEntityID == id {
			out = append(out, a)
		}
	}
	return out
}

func TestSweepRaisesAlertsByAge(t *testing.T) {
	f := newSweepFixture(t, false)
	ctx := context.Background()
	fresh := f.patient(t, 3)
	warning := f.patient(t, 15)
	critical := f.patient(t, 22)

	require.NoError(t, f.sweep.Run(ctx))
	require.NoError(t, f.sweep.Run(ctx))

	assert.Empty(t, f.alertsFor(t, fresh.ID))

	w := f.alertsFor(t, warning.ID)
	require.Len(t, w, 1)
	assert.Equal(t, model.AlertSeverityWarning, w[0].Severity)
	assert.Equal(t, model.AlertTypeStorage, w[0].Type)

	c := f.alertsFor(t, critical.ID)
	require.Len(t, c, 1)
	assert.Equal(t, model.AlertSeverityCritical, c[0].Severity)
}

func TestSweepEscalates(t *testing.T) {
	f := newSweepFixture(t, false)
	ctx := context.Background()
	p := f.patient(t, 15)

	require.NoError(t, f.sweep.Run(ctx))
	f.sweep.now = func() time.Time { return time.Now().AddDate(0, 0, 7) }
	require.NoError(t, f.sweep.Run(ctx))

	got := f.alertsFor(t, p.ID)
	require.Len(t, got, 2)
	severities := []model.AlertSeverity{got[0].Severity, got[1].Severity}
	assert.ElementsMatch(t, []model.AlertSeverity{model.AlertSeverityWarning, model.AlertSeverityCritical}, severities)
}

func TestSweepAutoMarks(t *testing.T) {
	f := newSweepFixture(t, true)
	ctx := context.Background()
	old := f.patient(t, 31)
	young := f.patient(t, 20)

	require.NoError(t, f.sweep.Run(ctx))

	got, err := f.store.Patients().Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusUnclaimed, got.Status)

	got, err = f.store.Patients().Get(ctx, young.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusRegistered, got.Status)

	tasks, err := f.store.Tasks().List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, old.ID, *tasks[0].RelatedEntityID)
	assert.Equal(t, int64(1), *tasks[0].AssignedToID)
}

func TestSweepSkipsPatientsWithRelease(t *testing.T) {
	f := newSweepFixture(t, true)
	ctx := context.Background()
	p := f.patient(t, 40)
	require.NoError(t, f.store.Releases().Create(ctx, &model.BodyReleaseRequest{
		DeceasedID:        p.ID,
		NextOfKinName:     "Mary Doe",
		NextOfKinRelation: "spouse",
		NextOfKinContact:  "+1 555 0100",
		ApprovalStatus:    model.ApprovalStatusPending,
	}))

	require.NoError(t, f.sweep.Run(ctx))
	assert.Empty(t, f.alertsFor(t, p.ID))
}

func TestNewUnclaimedSweepValidates(t *testing.T) {
	_, err := NewUnclaimedSweep(nil, nil, UnclaimedSweepConfig{WarningDays: 21, CriticalDays: 14}, metrics.Noop(), nil)
	assert.Error(t, err)

	_, err = NewUnclaimedSweep(nil, nil, UnclaimedSweepConfig{WarningDays: 14, CriticalDays: 21, AutoMark: true}, metrics.Noop(), nil)
	assert.Error(t, err)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	f := newSweepFixture(t, false)
	f.sweep.config.Schedule = "every tuesday"
	assert.Error(t, f.sweep.Start(context.Background()))
}

func TestNewUnclaimedSweepRejectsBadSchedule(t *testing.T) {
	_, err := NewUnclaimedSweep(nil, nil, UnclaimedSweepConfig{Schedule: "*/5 * *", WarningDays: 14, CriticalDays: 21}, metrics.Noop(), nil)
	assert.Error(t, err)
}
