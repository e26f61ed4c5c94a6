package admin

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DylanDHubert/edu-sub002/internal/config"
	"github.com/DylanDHubert/edu-sub002/internal/jobs"
	"github.com/spf13/cobra"
)

// WorkerCmd returns the worker command. It runs a single ingestion batch
// by default so it can be triggered from cron; --watch keeps it polling.
func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker",
		Long:  "Process a batch of runnable ingestion jobs and exit, or poll continuously with --watch",
		RunE:  runWorker,
	}

	cmd.Flags().Bool("watch", false, "Keep polling for runnable jobs instead of exiting after one batch")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	pipe, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipe.Close()

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		if err := pipe.worker.ProcessJobs(ctx); err != nil {
			return fmt.Errorf("failed to process jobs: %w", err)
		}
		log.Println("batch complete")
		return nil
	}

	worker := jobs.NewWorker(pipe.worker, cfg.WorkerInterval)
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	log.Printf("worker polling every %s", cfg.WorkerInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("stopping worker...")
	worker.Stop()
	return nil
}
