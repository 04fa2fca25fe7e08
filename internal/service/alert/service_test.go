package alert

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []int64
}

func (n *recordingNotifier) AlertRaised(_ context.Context, alert *model.SystemAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert.ID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func newTestService() (*Service, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewService(memory.NewStore(), event.NewService(logger.Nop()), n), n
}

func unclaimedAlert(deceasedID int64, severity model.AlertSeverity) *model.CreateAlertRequest {
	entity := model.EntityDeceased
	return &model.CreateAlertRequest{
		Type:              model.AlertTypeStorage,
		Title:             "Unclaimed body",
		Message:           "No release request has been filed",
		Severity:          severity,
		RelatedEntityType: &entity,
		RelatedEntityID:   &deceasedID,
	}
}

func TestRaiseOnce(t *testing.T) {
	svc, notifier := newTestService()
	ctx := context.Background()

	first, created, err := svc.RaiseOnce(ctx, unclaimedAlert(1, model.AlertSeverityWarning))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.AlertStatusActive, first.Status)

	again, created, err := svc.RaiseOnce(ctx, unclaimedAlert(1, model.AlertSeverityWarning))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, created, err = svc.RaiseOnce(ctx, unclaimedAlert(1, model.AlertSeverityCritical))
	require.NoError(t, err)
	assert.True(t, created, "a different severity is a different alert")

	_, created, err = svc.RaiseOnce(ctx, unclaimedAlert(2, model.AlertSeverityWarning))
	require.NoError(t, err)
	assert.True(t, created, "a different patient is a different alert")

	// resolved alerts still count as raised
	_, err = svc.Update(ctx, first.ID, &model.UpdateAlertRequest{Status: model.AlertStatusResolved}, nil)
	require.NoError(t, err)
	_, created, err = svc.RaiseOnce(ctx, unclaimedAlert(1, model.AlertSeverityWarning))
	require.NoError(t, err)
	assert.False(t, created)

	all, err := svc.List(ctx, model.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 3, notifier.count())
}

func TestRaiseOnceWithoutEntity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, unclaimedAlert(1, model.AlertSeverityInfo))
	require.NoError(t, err)

	_, created, err := svc.RaiseOnce(ctx, &model.CreateAlertRequest{
		Type: model.AlertTypeStorage, Title: "Capacity", Message: "Section A is full", Severity: model.AlertSeverityInfo,
	})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	a, err := svc.Create(ctx, &model.CreateAlertRequest{
		Type: model.AlertTypeTemperature, Title: "Freezer warm", Message: "Unit B-02 at -2C", Severity: model.AlertSeverityCritical,
	})
	require.NoError(t, err)

	acked, err := svc.Update(ctx, a.ID, &model.UpdateAlertRequest{Status: model.AlertStatusAcknowledged}, model.Int64Ptr(4))
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusAcknowledged, acked.Status)
	assert.Equal(t, int64(4), *acked.AcknowledgedByID)
	assert.NotNil(t, acked.AcknowledgedAt)
	assert.Nil(t, acked.ResolvedAt)

	resolved, err := svc.Update(ctx, a.ID, &model.UpdateAlertRequest{Status: model.AlertStatusResolved}, model.Int64Ptr(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), *resolved.ResolvedByID)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = svc.Update(ctx, a.ID, &model.UpdateAlertRequest{Status: model.AlertStatusActive}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransitionKind)

	_, err = svc.Update(ctx, a.ID, &model.UpdateAlertRequest{Status: "snoozed"}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrBadRequest))

	_, err = svc.Update(ctx, 404, &model.UpdateAlertRequest{Status: model.AlertStatusResolved}, nil)
	assert.ErrorIs(t, err, errors.ErrNotFoundKind)
}
