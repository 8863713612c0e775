package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var statusDetailed bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and queue status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusDetailed, "detailed", "d", false, "include per-component counts")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if registryPort == nil {
		return errors.New("registry not configured")
	}

	ctx := context.Background()

	records, err := registryPort.ListDocuments(ctx, driven.DocumentFilter{})
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	byState := make(map[domain.DocumentState]int)
	totalChunks := 0
	for _, rec := range records {
		byState[rec.State]++
		totalChunks += len(rec.ChunkIDs)
	}

	cmd.Printf("Documents: %d (%d chunks)\n", len(records), totalChunks)
	for _, state := range []domain.DocumentState{
		domain.StatePending, domain.StateIndexing, domain.StateReady,
		domain.StateFailed, domain.StateRemoving, domain.StateCorrupt,
	} {
		if n := byState[state]; n > 0 || statusDetailed {
			cmd.Printf("  %-10s %d\n", state.String()+":", n)
		}
	}

	if !statusDetailed {
		return nil
	}

	if jobStore != nil {
		jobs, err := jobStore.List(ctx, nil)
		if err == nil {
			jobCounts := make(map[domain.JobState]int)
			for _, job := range jobs {
				jobCounts[job.State]++
			}
			cmd.Printf("\nQueue: %d job(s)\n", len(jobs))
			for _, state := range []domain.JobState{
				domain.JobPending, domain.JobRunning, domain.JobSucceeded,
				domain.JobFailed, domain.JobCancelled,
			} {
				cmd.Printf("  %-10s %d\n", state.String()+":", jobCounts[state])
			}
		}
	}

	if cachePort != nil {
		entries, bytes, err := cachePort.Stats(ctx)
		if err == nil {
			cmd.Printf("\nCache: %d entr%s, %d bytes\n", entries, plural(entries, "y", "ies"), bytes)
		}
	}

	if vectorPort != nil {
		if n, err := vectorPort.Count(ctx); err == nil {
			cmd.Printf("\nVector index: %d chunks (%d dimensions)\n", n, vectorPort.Dimensions())
		}
	}
	if keywordPort != nil {
		if n, err := keywordPort.Count(ctx); err == nil {
			k1, b := keywordPort.Params()
			cmd.Printf("Keyword index: %d chunks (BM25 k1=%.2f b=%.2f)\n", n, k1, b)
		}
	}

	return nil
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
