package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
)

func TestTaskLifecycle(t *testing.T) {
	svc := NewService(memory.NewStore(), event.NewService(logger.Nop()))
	ctx := context.Background()

	task, err := svc.Create(ctx, &model.CreateTaskRequest{Title: "Restock body bags", AssignedToID: model.Int64Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPriorityMedium, task.Priority)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)

	inProgress := model.TaskStatusInProgress
	task, err = svc.Update(ctx, task.ID, &model.UpdateTaskRequest{Status: &inProgress})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)

	completed := model.TaskStatusCompleted
	task, err = svc.Update(ctx, task.ID, &model.UpdateTaskRequest{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.WithinDuration(t, time.Now(), *task.CompletedAt, time.Minute)

	mine, err := svc.List(ctx, model.TaskFilter{AssignedToID: 3, Status: model.TaskStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.Update(ctx, 99, &model.UpdateTaskRequest{Status: &completed})
	assert.ErrorIs(t, err, errors.ErrNotFoundKind)
}
