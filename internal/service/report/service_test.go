package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

func addPatient(t *testing.T, store *memory.Store, mr, ward string, registered time.Time) *model.DeceasedPatient {
	t.Helper()
	p := &model.DeceasedPatient{
		MRNumber:         mr,
		FullName:         "Test Patient",
		Gender:           model.GenderOther,
		DateOfDeath:      registered.Add(-time.Hour),
		RegistrationDate: registered,
		WardFrom:         ward,
		Status:           model.PatientStatusRegistered,
	}
	require.NoError(t, store.Patients().Create(context.Background(), p))
	return p
}

func TestSummary(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	inside := addPatient(t, store, "MR-2024-0001", "ICU", now.AddDate(0, 0, -2))
	addPatient(t, store, "MR-2024-0002", "ER", now.AddDate(0, 0, -1))
	addPatient(t, store, "MR-2024-0003", "ICU", now.AddDate(0, 0, -60))
	require.NoError(t, store.Postmortems().Create(ctx, &model.Postmortem{
		DeceasedID: inside.ID, Status: model.PostmortemStatusScheduled, IsForensic: true,
	}))

	summary, err := NewService(store.Reports()).Summary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Registrations)
	assert.Equal(t, 1, summary.PatientsByWard["ICU"])
	assert.Equal(t, 1, summary.PatientsByWard["ER"])
	assert.Equal(t, 2, summary.PatientsByStatus[string(model.PatientStatusRegistered)])
	assert.Equal(t, 1, summary.PostmortemsByStatus[string(model.PostmortemStatusScheduled)])
	assert.Equal(t, 1, summary.ForensicPostmortems)
	assert.WithinDuration(t, now.Add(-defaultWindow), summary.Period.From, time.Minute)
}

func TestSummaryRejectsInvertedPeriod(t *testing.T) {
	svc := NewService(memory.NewStore().Reports())
	now := time.Now()

	_, err := svc.Summary(context.Background(), now, now.Add(-time.Hour))
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))
}
