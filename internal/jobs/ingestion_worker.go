package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/DylanDHubert/edu-sub002/internal/domain"
)

const (
	// DefaultBatchSize is the number of runnable jobs claimed per poll cycle
	DefaultBatchSize = 10
)

// IngestionJobSource claims the next batch of runnable ingestion jobs.
// Claiming also sweeps processing jobs whose worker disappeared, so stuck
// work surfaces as failed instead of blocking its document forever.
type IngestionJobSource interface {
	GetRunnableJobs(ctx context.Context, limit int) ([]*domain.IngestionJob, error)
}

// JobRunner advances a single ingestion job through its pipeline.
type JobRunner interface {
	ProcessJob(ctx context.Context, job *domain.IngestionJob) error
}

// IngestionWorker processes ingestion jobs in batches
type IngestionWorker struct {
	source    IngestionJobSource
	runner    JobRunner
	batchSize int
}

// NewIngestionWorker creates a new IngestionWorker instance. A non-positive
// batchSize falls back to DefaultBatchSize.
func NewIngestionWorker(source IngestionJobSource, runner JobRunner, batchSize int) *IngestionWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IngestionWorker{
		source:    source,
		runner:    runner,
		batchSize: batchSize,
	}
}

// ProcessJobs implements the JobProcessor interface. One job's failure never
// aborts the rest of the batch; the runner records it against the job itself.
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.source.GetRunnableJobs(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch runnable jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d runnable ingestion jobs", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.runner.ProcessJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}
