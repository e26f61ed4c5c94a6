package repository

import (
	"context"
	"errors"
	"time"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// stuckJobThreshold is how long a job may sit in processing before the next
// poll reclaims it as failed.
const stuckJobThreshold = 3 * time.Hour

const stuckJobError = "job timed out: processing exceeded staleness threshold"

type IngestionJobRepository struct {
	db dbtx
}

func NewIngestionJobRepository(pool *pgxpool.Pool) *IngestionJobRepository {
	return &IngestionJobRepository{db: pool}
}

func NewIngestionJobRepositoryWithTx(tx pgx.Tx) *IngestionJobRepository {
	return &IngestionJobRepository{db: tx}
}

func (r *IngestionJobRepository) Create(ctx context.Context, job *domain.IngestionJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingestion_jobs
			(id, document_id, group_id, sub_collection_id, provider_job_id, status, progress,
			 step, error, retry_count, max_retries, created_at, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID,
		job.DocumentID,
		job.GroupID,
		nullableString(job.SubCollectionID),
		nullableString(job.ProviderJobID),
		job.Status,
		job.Progress,
		nullableString(job.Step),
		nullableString(job.Error),
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrActiveJobExists
		}
		return err
	}
	return nil
}

func (r *IngestionJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestionJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx,
		selectJobColumns+` FROM ingestion_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// GetLatestByDocument returns the most recent job for a document, terminal or
// not. Status polling reads through this.
func (r *IngestionJobRepository) GetLatestByDocument(ctx context.Context, documentID string) (*domain.IngestionJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx,
		selectJobColumns+`
		 FROM ingestion_jobs WHERE document_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		documentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// GetRunnableJobs reclaims stuck jobs, then returns up to limit jobs still in
// pending or processing state, oldest first. Reclamation runs on every call so
// staleness is self-healing.
func (r *IngestionJobRepository) GetRunnableJobs(ctx context.Context, limit int) ([]*domain.IngestionJob, error) {
	if limit <= 0 {
		limit = 10
	}

	if err := r.reclaimStuck(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		selectJobColumns+`
		 FROM ingestion_jobs
		 WHERE status IN ($1, $2)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		domain.IngestionJobStatusPending, domain.IngestionJobStatusProcessing, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// reclaimStuck fails jobs stuck in processing past the staleness threshold
// and fails their owning documents in the same statement, so a crashed worker
// never leaves a failed job behind a document still claiming to process.
func (r *IngestionJobRepository) reclaimStuck(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`WITH stuck AS (
			 SELECT id, document_id
			 FROM ingestion_jobs
			 WHERE status = $1 AND started_at < $2
			 FOR UPDATE SKIP LOCKED
		 ),
		 reclaimed AS (
			 UPDATE ingestion_jobs
			 SET status = $3,
			     error = $4,
			     completed_at = $5
			 FROM stuck
			 WHERE ingestion_jobs.id = stuck.id
			 RETURNING stuck.document_id
		 )
		 UPDATE documents
		 SET status = $6, updated_at = $5
		 FROM reclaimed
		 WHERE documents.id = reclaimed.document_id`,
		domain.IngestionJobStatusProcessing,
		now.Add(-stuckJobThreshold),
		domain.IngestionJobStatusFailed,
		stuckJobError,
		now,
		domain.DocumentStatusFailed,
	)
	return err
}

// UpdateStatus transitions a job's state and progress. Entering processing for
// the first time stamps started_at; entering a terminal state stamps
// completed_at. A job already terminal is never moved by this call.
func (r *IngestionJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestionJobStatus, progress int, step, errMsg string) error {
	now := time.Now().UTC()

	var startedAt, completedAt *time.Time
	if status == domain.IngestionJobStatusProcessing {
		startedAt = &now
	}
	if status == domain.IngestionJobStatusCompleted || status == domain.IngestionJobStatusFailed {
		completedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET status = $1,
		     progress = $2,
		     step = COALESCE($3, step),
		     error = $4,
		     started_at = COALESCE(started_at, $5),
		     completed_at = $6
		 WHERE id = $7 AND status NOT IN ($8, $9)`,
		status, progress, nullableString(step), nullableString(errMsg), startedAt, completedAt, id,
		domain.IngestionJobStatusCompleted, domain.IngestionJobStatusFailed,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		// Distinguish a missing row from a terminal one.
		if _, lookupErr := r.GetByID(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return domain.ErrJobTerminal
	}
	return nil
}

func (r *IngestionJobRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.UpdateStatus(ctx, id, domain.IngestionJobStatusCompleted, 100, "", "")
}

func (r *IngestionJobRepository) MarkFailed(ctx context.Context, id, reason string) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.UpdateStatus(ctx, id, domain.IngestionJobStatusFailed, job.Progress, "", reason)
}

// SetProviderJobID records the external provider's job handle after submission.
func (r *IngestionJobRepository) SetProviderJobID(ctx context.Context, id, providerJobID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingestion_jobs SET provider_job_id = $1 WHERE id = $2`,
		nullableString(providerJobID), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// Retry re-enters a failed job into processing as a logically new attempt on
// the same row. The retry budget is enforced in the statement itself so two
// concurrent triggers cannot both spend the last attempt.
func (r *IngestionJobRepository) Retry(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET status = $1,
		     progress = 0,
		     step = NULL,
		     error = NULL,
		     retry_count = retry_count + 1,
		     started_at = $2,
		     completed_at = NULL
		 WHERE id = $3 AND status = $4 AND retry_count < max_retries`,
		domain.IngestionJobStatusProcessing, time.Now().UTC(), id, domain.IngestionJobStatusFailed,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		job, lookupErr := r.GetByID(ctx, id)
		if lookupErr != nil {
			return lookupErr
		}
		if job.Status != domain.IngestionJobStatusFailed {
			return domain.ErrJobTerminal
		}
		return domain.ErrRetriesExhausted
	}
	return nil
}

// GroupBatchStatus reports aggregate job counts for a group/sub-collection.
// A group with zero jobs counts as complete; callers that care about the
// vacuous case check Total themselves.
func (r *IngestionJobRepository) GroupBatchStatus(ctx context.Context, groupID, subCollectionID string) (*domain.BatchStatus, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*)
		 FROM ingestion_jobs
		 WHERE group_id = $1 AND ($2::text IS NULL OR sub_collection_id = $2)
		 GROUP BY status`,
		groupID, nullableString(subCollectionID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var status domain.BatchStatus
	for rows.Next() {
		var s domain.IngestionJobStatus
		var count int
		if err := rows.Scan(&s, &count); err != nil {
			return nil, err
		}
		status.Total += count
		switch s {
		case domain.IngestionJobStatusPending:
			status.Pending = count
		case domain.IngestionJobStatusProcessing:
			status.Processing = count
		case domain.IngestionJobStatusCompleted:
			status.Completed = count
		case domain.IngestionJobStatusFailed:
			status.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	status.IsComplete = status.Pending == 0 && status.Processing == 0
	return &status, nil
}

const selectJobColumns = `SELECT id, document_id, group_id, sub_collection_id, provider_job_id,
		        status, progress, step, error, retry_count, max_retries,
		        created_at, started_at, completed_at`

func scanJob(row rowScanner) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	var subCollectionID, providerJobID, step, errMsg pgtype.Text
	err := row.Scan(
		&job.ID, &job.DocumentID, &job.GroupID, &subCollectionID, &providerJobID,
		&job.Status, &job.Progress, &step, &errMsg, &job.RetryCount, &job.MaxRetries,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if subCollectionID.Valid {
		job.SubCollectionID = subCollectionID.String
	}
	if providerJobID.Valid {
		job.ProviderJobID = providerJobID.String
	}
	if step.Valid {
		job.Step = step.String
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
