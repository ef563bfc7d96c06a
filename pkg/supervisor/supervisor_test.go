package supervisor_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/supervisor"
)

type fakeStore struct {
	tasks map[uuid.UUID]*models.Task
	job   *models.Job
}

func (f *fakeStore) ListTasksByJob(_ context.Context, _ uuid.UUID) ([]*models.Task, error) {
	out := make([]*models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) CASTaskStatus(_ context.Context, id uuid.UUID, from, to config.TaskStatus) (bool, error) {
	t := f.tasks[id]
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (f *fakeStore) CASTaskRejected(_ context.Context, id uuid.UUID, from config.TaskStatus, feedback string, maxRejections int) (config.TaskStatus, bool, error) {
	t := f.tasks[id]
	if t.Status != from {
		return "", false, nil
	}
	t.RejectionCount++
	t.Feedback = &feedback
	if t.RejectionCount >= maxRejections {
		t.Status = config.TaskStatusApprovedDegraded
		return config.TaskStatusApprovedDegraded, true, nil
	}
	t.Status = config.TaskStatusResearchingRetry
	return config.TaskStatusResearchingRetry, true, nil
}

func (f *fakeStore) CASJobStatus(_ context.Context, _ uuid.UUID, from, to config.JobStatus) (bool, error) {
	if f.job.Status != from {
		return false, nil
	}
	f.job.Status = to
	return true, nil
}

func (f *fakeStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return f.job, nil
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) Enqueue(_ context.Context, kind string, _ any) error {
	f.enqueued = append(f.enqueued, kind)
	return nil
}

func TestDispatch_AdvancesPendingTaskToHypothesizing(t *testing.T) {
	jobID := uuid.New()
	task := &models.Task{ID: uuid.New(), JobID: jobID, Status: config.TaskStatusPending}
	store := &fakeStore{tasks: map[uuid.UUID]*models.Task{task.ID: task}, job: &models.Job{ID: jobID, Status: config.JobStatusProcessing}}
	q := &fakeQueue{}

	require.NoError(t, supervisor.Dispatch(context.Background(), store, q, jobID, 3))

	assert.Equal(t, config.TaskStatusHypothesizingStarted, task.Status)
	assert.Contains(t, q.enqueued, supervisor.KindGenerateHypothesis)
}

func TestDispatch_RejectedTaskRetriesUntilBudgetExhausted(t *testing.T) {
	jobID := uuid.New()
	task := &models.Task{ID: uuid.New(), JobID: jobID, Status: config.TaskStatusRejected, RejectionCount: 2}
	store := &fakeStore{tasks: map[uuid.UUID]*models.Task{task.ID: task}, job: &models.Job{ID: jobID, Status: config.JobStatusProcessing}}
	q := &fakeQueue{}

	require.NoError(t, supervisor.Dispatch(context.Background(), store, q, jobID, 3))

	assert.Equal(t, config.TaskStatusApprovedDegraded, task.Status)
	assert.NotContains(t, q.enqueued, supervisor.KindPerformResearch)
}

func TestDispatch_AllApprovedEnqueuesAggregateReport(t *testing.T) {
	jobID := uuid.New()
	task := &models.Task{ID: uuid.New(), JobID: jobID, Status: config.TaskStatusApproved}
	store := &fakeStore{tasks: map[uuid.UUID]*models.Task{task.ID: task}, job: &models.Job{ID: jobID, Status: config.JobStatusProcessing}}
	q := &fakeQueue{}

	require.NoError(t, supervisor.Dispatch(context.Background(), store, q, jobID, 3))

	assert.Equal(t, config.JobStatusGenerating, store.job.Status)
	assert.Contains(t, q.enqueued, supervisor.KindAggregateReport)
}

func TestDispatch_NoTasksDoesNotEnqueueAggregate(t *testing.T) {
	jobID := uuid.New()
	store := &fakeStore{tasks: map[uuid.UUID]*models.Task{}, job: &models.Job{ID: jobID, Status: config.JobStatusProcessing}}
	q := &fakeQueue{}

	require.NoError(t, supervisor.Dispatch(context.Background(), store, q, jobID, 3))

	assert.Empty(t, q.enqueued)
	assert.Equal(t, config.JobStatusProcessing, store.job.Status)
}
