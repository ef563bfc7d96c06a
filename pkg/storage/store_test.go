package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
	"github.com/deepresearch/engine/pkg/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := storage.Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStore_JobLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := models.NewJob("will cats replace cars")
	require.NoError(t, store.CreateJob(ctx, job))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.Idea, got.Idea)
	require.Equal(t, config.JobStatusPending, got.Status)

	won, err := store.CASJobStatus(ctx, job.ID, config.JobStatusPending, config.JobStatusProcessing)
	require.NoError(t, err)
	require.True(t, won)

	// A second CAS from the same stale "from" status must lose the race.
	won, err = store.CASJobStatus(ctx, job.ID, config.JobStatusPending, config.JobStatusProcessing)
	require.NoError(t, err)
	require.False(t, won)

	report := models.PlainTextReport("cats will not replace cars")
	require.NoError(t, store.SetJobReport(ctx, job.ID, report))

	got, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, got.Report.IsPlainText())
}

func TestStore_TaskRejectionBoundedRetry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := models.NewJob("idea")
	require.NoError(t, store.CreateJob(ctx, job))

	task := models.NewTask(job.ID, "subquestion one")
	require.NoError(t, store.CreateTasks(ctx, []*models.Task{task}))

	won, err := store.CASTaskStatus(ctx, task.ID, config.TaskStatusPending, config.TaskStatusReviewStarted)
	require.NoError(t, err)
	require.True(t, won)

	const maxRejections = 3
	to, won, err := store.CASTaskRejected(ctx, task.ID, config.TaskStatusReviewStarted, "needs more evidence", maxRejections)
	require.NoError(t, err)
	require.True(t, won)
	require.Equal(t, config.TaskStatusResearchingRetry, to)

	to, won, err = store.CASTaskRejected(ctx, task.ID, config.TaskStatusResearchingRetry, "still weak", maxRejections)
	require.NoError(t, err)
	require.True(t, won)
	require.Equal(t, config.TaskStatusResearchingRetry, to)

	to, won, err = store.CASTaskRejected(ctx, task.ID, config.TaskStatusResearchingRetry, "third strike", maxRejections)
	require.NoError(t, err)
	require.True(t, won)
	require.Equal(t, config.TaskStatusApprovedDegraded, to)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, got.Status.IsTerminalSuccess())
	require.Equal(t, 3, got.RejectionCount)
}

func TestStore_ChunksSaveAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := models.NewJob("idea")
	require.NoError(t, store.CreateJob(ctx, job))

	embA := make([]float32, models.EmbeddingDimension)
	embA[0] = 1
	embB := make([]float32, models.EmbeddingDimension)
	embB[1] = 1

	chunks := []*models.Chunk{
		models.NewChunk(job.ID, "paragraph about cats and cars and the future of transportation", embA),
		models.NewChunk(job.ID, "an entirely unrelated paragraph about sourdough starters", embB),
	}
	require.NoError(t, store.SaveChunks(ctx, chunks))

	results, err := store.SearchChunks(ctx, job.ID, embA, nil, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, chunks[0].Content, results[0].Content)
}

func TestStore_AllTasksTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := models.NewJob("idea")
	require.NoError(t, store.CreateJob(ctx, job))

	t1 := models.NewTask(job.ID, "q1")
	t2 := models.NewTask(job.ID, "q2")
	require.NoError(t, store.CreateTasks(ctx, []*models.Task{t1, t2}))

	done, err := store.AllTasksTerminal(ctx, job.ID)
	require.NoError(t, err)
	require.False(t, done)

	won, err := store.CASTaskStatus(ctx, t1.ID, config.TaskStatusPending, config.TaskStatusApproved)
	require.NoError(t, err)
	require.True(t, won)
	won, err = store.CASTaskStatus(ctx, t2.ID, config.TaskStatusPending, config.TaskStatusApprovedDegraded)
	require.NoError(t, err)
	require.True(t, won)

	done, err = store.AllTasksTerminal(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, done)
}
