//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/DylanDHubert/edu-sub002/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDocument creates a document row for jobs to reference
func setupTestDocument(ctx context.Context, t *testing.T, docRepo *DocumentRepository, groupID string) *domain.Document {
	doc := domain.NewDocument(
		uuid.NewString(), groupID, "", "manual.pdf", "application/pdf",
		domain.StrategyStandard, "path/manual.pdf",
		time.Now().UTC().Truncate(time.Microsecond),
	)
	require.NoError(t, docRepo.Create(ctx, doc))
	return doc
}

func TestIngestionJobRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	jobRepo := NewIngestionJobRepository(pool)

	groupID := uuid.NewString()

	t.Run("create and get round-trip", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		job := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "",
			time.Now().UTC().Truncate(time.Microsecond))
		require.NoError(t, jobRepo.Create(ctx, job))

		got, err := jobRepo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, domain.IngestionJobStatusPending, got.Status)
		assert.Equal(t, int32(0), got.RetryCount)
		assert.Equal(t, domain.DefaultMaxRetries, got.MaxRetries)
		assert.Nil(t, got.StartedAt)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("rejects second active job for the same document", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		first := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, first))

		second := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		err := jobRepo.Create(ctx, second)
		assert.ErrorIs(t, err, domain.ErrActiveJobExists)
	})

	t.Run("update status stamps started_at and completed_at", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		job := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, job))

		require.NoError(t, jobRepo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 10, domain.StepCheckingStatus, ""))
		got, err := jobRepo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestionJobStatusProcessing, got.Status)
		assert.Equal(t, 10, got.Progress)
		assert.Equal(t, domain.StepCheckingStatus, got.Step)
		require.NotNil(t, got.StartedAt)
		startedAt := *got.StartedAt

		// A later progress update must not move started_at.
		require.NoError(t, jobRepo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 50, domain.StepDownloadingResult, ""))
		got, err = jobRepo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, startedAt, *got.StartedAt)

		require.NoError(t, jobRepo.MarkCompleted(ctx, job.ID))
		got, err = jobRepo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestionJobStatusCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("terminal jobs are never moved by update status", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		job := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, job))
		require.NoError(t, jobRepo.MarkFailed(ctx, job.ID, "provider rejected file"))

		err := jobRepo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 10, "", "")
		assert.ErrorIs(t, err, domain.ErrJobTerminal)

		got, err := jobRepo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestionJobStatusFailed, got.Status)
		assert.Equal(t, "provider rejected file", got.Error)
	})

	t.Run("runnable jobs come back oldest first and exclude terminal", func(t *testing.T) {
		localGroup := uuid.NewString()
		base := time.Now().UTC().Add(-time.Hour)

		var ids []string
		for i := 0; i < 3; i++ {
			doc := setupTestDocument(ctx, t, docRepo, localGroup)
			job := domain.NewIngestionJob(uuid.NewString(), doc.ID, localGroup, "", "",
				base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, jobRepo.Create(ctx, job))
			ids = append(ids, job.ID)
		}
		require.NoError(t, jobRepo.MarkCompleted(ctx, ids[1]))

		jobs, err := jobRepo.GetRunnableJobs(ctx, 10)
		require.NoError(t, err)

		var seen []string
		for _, j := range jobs {
			if j.GroupID == localGroup {
				seen = append(seen, j.ID)
			}
		}
		assert.Equal(t, []string{ids[0], ids[2]}, seen)
	})

	t.Run("stuck processing jobs are reclaimed as failed", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		job := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, job))
		require.NoError(t, jobRepo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusProcessing, 10, "", ""))
		require.NoError(t, docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing))

		// Backdate started_at past the staleness threshold.
		stale := time.Now().UTC().Add(-4 * time.Hour)
		_, err := pool.Exec(ctx, `UPDATE ingestion_jobs SET started_at = $1 WHERE id = $2`, stale, job.ID)
		require.NoError(t, err)

		jobs, err := jobRepo.GetRunnableJobs(ctx, 100)
		require.NoError(t, err)
		for _, j := range jobs {
			assert.NotEqual(t, job.ID, j.ID, "reclaimed job must not be runnable")
		}

		got, err := jobRepo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestionJobStatusFailed, got.Status)
		assert.Contains(t, got.Error, "timed out")
		require.NotNil(t, got.CompletedAt)

		// The owning document must not keep claiming to process.
		gotDoc, err := docRepo.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusFailed, gotDoc.Status)
	})

	t.Run("retry re-enters failed job and enforces the budget", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		job := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, job))

		for i := int32(0); i < domain.DefaultMaxRetries; i++ {
			require.NoError(t, jobRepo.MarkFailed(ctx, job.ID, "boom"))
			require.NoError(t, jobRepo.Retry(ctx, job.ID))

			got, err := jobRepo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.IngestionJobStatusProcessing, got.Status)
			assert.Equal(t, i+1, got.RetryCount)
			assert.Equal(t, 0, got.Progress)
			assert.Empty(t, got.Error)
			assert.Nil(t, got.CompletedAt)
		}

		require.NoError(t, jobRepo.MarkFailed(ctx, job.ID, "boom"))
		err := jobRepo.Retry(ctx, job.ID)
		assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	})

	t.Run("retry of a non-failed job is rejected", func(t *testing.T) {
		doc := setupTestDocument(ctx, t, docRepo, groupID)
		job := domain.NewIngestionJob(uuid.NewString(), doc.ID, groupID, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, job))

		err := jobRepo.Retry(ctx, job.ID)
		assert.ErrorIs(t, err, domain.ErrJobTerminal)
	})

	t.Run("group batch status", func(t *testing.T) {
		localGroup := uuid.NewString()

		// Zero jobs counts as complete.
		status, err := jobRepo.GroupBatchStatus(ctx, localGroup, "")
		require.NoError(t, err)
		assert.True(t, status.IsComplete)
		assert.Equal(t, 0, status.Total)

		docA := setupTestDocument(ctx, t, docRepo, localGroup)
		docB := setupTestDocument(ctx, t, docRepo, localGroup)
		jobA := domain.NewIngestionJob(uuid.NewString(), docA.ID, localGroup, "", "", time.Now().UTC())
		jobB := domain.NewIngestionJob(uuid.NewString(), docB.ID, localGroup, "", "", time.Now().UTC())
		require.NoError(t, jobRepo.Create(ctx, jobA))
		require.NoError(t, jobRepo.Create(ctx, jobB))

		status, err = jobRepo.GroupBatchStatus(ctx, localGroup, "")
		require.NoError(t, err)
		assert.False(t, status.IsComplete)
		assert.Equal(t, 2, status.Total)
		assert.Equal(t, 2, status.Pending)

		require.NoError(t, jobRepo.MarkCompleted(ctx, jobA.ID))
		require.NoError(t, jobRepo.MarkFailed(ctx, jobB.ID, "boom"))

		status, err = jobRepo.GroupBatchStatus(ctx, localGroup, "")
		require.NoError(t, err)
		assert.True(t, status.IsComplete)
		assert.Equal(t, 1, status.Completed)
		assert.Equal(t, 1, status.Failed)
	})
}
