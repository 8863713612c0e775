package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenforge/docindex/internal/core/domain"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the job queue",
}

var queueStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the worker pool until interrupted",
	Long: `Recovers any interrupted operations from the intent log, then starts
the worker pool and drains queued jobs until SIGINT/SIGTERM.`,
	RunE: runQueueStart,
}

var queueStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Cancel all pending jobs",
	Long: `Marks every pending job Cancelled so a running worker pool winds down
after finishing its in-flight jobs. Running jobs are cancelled
cooperatively: each finishes or rolls back at its next step boundary.`,
	RunE: runQueueStop,
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job counts by state",
	RunE:  runQueueStatus,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove completed, failed, and cancelled jobs",
	RunE:  runQueueClear,
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueCancel,
}

func init() {
	queueCmd.AddCommand(queueStartCmd)
	queueCmd.AddCommand(queueStopCmd)
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueClearCmd)
	queueCmd.AddCommand(queueCancelCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueStart(cmd *cobra.Command, _ []string) error {
	if workerPool == nil || indexManager == nil || jobStore == nil {
		return errors.New("queue services not configured")
	}

	ctx := context.Background()

	// Reconcile first: interrupted intents replay before new work runs,
	// and orphaned Running jobs from a dead process become claimable.
	recovered, err := indexManager.Recover(ctx)
	if err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}
	if recovered > 0 {
		cmd.Printf("recovered %d interrupted operation(s)\n", recovered)
	}
	reaped, err := jobStore.ReapExpiredLeases(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("lease reconciliation failed: %w", err)
	}
	if reaped > 0 {
		cmd.Printf("requeued %d orphaned running job(s)\n", reaped)
	}

	workerPool.Start(ctx)
	cmd.Println("worker pool running; press Ctrl-C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	cmd.Println("stopping...")
	workerPool.Stop()

	// A drain that left failed jobs behind is a partial success.
	failed := domain.JobFailed
	failedJobs, err := jobStore.List(ctx, &failed)
	if err == nil && len(failedJobs) > 0 {
		return fmt.Errorf("%w: %d job(s) dead-lettered", ErrPartialSuccess, len(failedJobs))
	}
	return nil
}

func runQueueStop(cmd *cobra.Command, _ []string) error {
	if jobStore == nil {
		return errors.New("job store not configured")
	}

	ctx := context.Background()

	pending := domain.JobPending
	jobs, err := jobStore.List(ctx, &pending)
	if err != nil {
		return fmt.Errorf("listing pending jobs: %w", err)
	}
	cancelled := 0
	for _, job := range jobs {
		if err := jobStore.Cancel(ctx, job.ID); err == nil {
			cancelled++
		}
	}

	// Running jobs get the cooperative treatment: flag them and let
	// each worker unwind at its next step boundary.
	running := domain.JobRunning
	jobs, err = jobStore.List(ctx, &running)
	if err != nil {
		return fmt.Errorf("listing running jobs: %w", err)
	}
	requested := 0
	for _, job := range jobs {
		if err := jobStore.Cancel(ctx, job.ID); err == nil {
			requested++
		}
	}

	cmd.Printf("cancelled %d pending job(s)\n", cancelled)
	if requested > 0 {
		cmd.Printf("requested cancellation of %d running job(s)\n", requested)
	}
	return nil
}

func runQueueStatus(cmd *cobra.Command, _ []string) error {
	if jobStore == nil {
		return errors.New("job store not configured")
	}

	ctx := context.Background()
	jobs, err := jobStore.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}

	counts := make(map[domain.JobState]int)
	for _, job := range jobs {
		counts[job.State]++
	}

	cmd.Printf("Jobs: %d total\n", len(jobs))
	for _, state := range []domain.JobState{
		domain.JobPending, domain.JobRunning, domain.JobSucceeded,
		domain.JobFailed, domain.JobCancelled,
	} {
		cmd.Printf("  %-10s %d\n", state.String()+":", counts[state])
	}
	return nil
}

func runQueueClear(cmd *cobra.Command, _ []string) error {
	if jobStore == nil {
		return errors.New("job store not configured")
	}

	n, err := jobStore.Clear(context.Background())
	if err != nil {
		return fmt.Errorf("clearing jobs: %w", err)
	}
	cmd.Printf("removed %d terminal job(s)\n", n)
	return nil
}

func runQueueCancel(cmd *cobra.Command, args []string) error {
	if jobStore == nil {
		return errors.New("job store not configured")
	}

	ctx := context.Background()
	if err := jobStore.Cancel(ctx, args[0]); err != nil {
		return fmt.Errorf("cancelling job: %w", err)
	}

	job, err := jobStore.Get(ctx, args[0])
	if err != nil {
		cmd.Printf("cancelled %s\n", args[0])
		return nil
	}
	if job.State == domain.JobRunning {
		cmd.Printf("requested cancellation of running job %s; its worker will stop at the next step boundary\n", job.ID)
	} else {
		cmd.Printf("cancelled %s\n", job.ID)
	}
	return nil
}
