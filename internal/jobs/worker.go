package jobs

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// JobProcessor defines the interface for processing a batch of jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed schedule. Runs are singleton: a
// slow batch delays the next tick instead of overlapping it.
type Worker struct {
	processor    JobProcessor
	scheduler    *gocron.Scheduler
	pollInterval time.Duration
	cancel       context.CancelFunc
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	return &Worker{
		processor:    processor,
		scheduler:    scheduler,
		pollInterval: pollInterval,
	}
}

// Start schedules the processor and begins polling in the background.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	_, err := w.scheduler.Every(w.pollInterval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.processor.ProcessJobs(ctx); err != nil {
			log.Printf("Error processing jobs: %v", err)
		}
	})
	if err != nil {
		return err
	}

	w.scheduler.StartAsync()
	log.Printf("Worker started with poll interval: %v", w.pollInterval)
	return nil
}

// Stop gracefully stops the worker, waiting for an in-flight batch.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.scheduler.Stop()
	log.Println("Worker shutdown complete")
}
