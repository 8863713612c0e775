package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenforge/docindex/internal/core/domain"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Consistency checks, repair, and cleanup",
}

var maintenanceCheckCmd = &cobra.Command{
	Use:   "consistency-check",
	Short: "Compare registry state against both index adapters",
	Long: `Diffs the registry's chunk ownership against what the vector and
keyword adapters report, in both directions. Exits with code 4 when any
document needs repair.`,
	RunE: runConsistencyCheck,
}

var maintenanceRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair documents that failed the consistency check",
	RunE:  runRepair,
}

var cleanupClearCache bool

var maintenanceCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Sweep expired cache entries, compact the intent log, clear terminal jobs",
	RunE:  runCleanup,
}

func init() {
	maintenanceCleanupCmd.Flags().BoolVar(&cleanupClearCache, "clear-cache", false, "drop every cache entry, not just expired ones")
	maintenanceCmd.AddCommand(maintenanceCheckCmd)
	maintenanceCmd.AddCommand(maintenanceRepairCmd)
	maintenanceCmd.AddCommand(maintenanceCleanupCmd)
	rootCmd.AddCommand(maintenanceCmd)
}

func runConsistencyCheck(cmd *cobra.Command, _ []string) error {
	if indexManager == nil {
		return errors.New("index manager not configured")
	}

	report, err := indexManager.VerifyConsistency(context.Background())
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	dirty := 0
	for _, entry := range report.Entries {
		if entry.Status == domain.ConsistencyOK {
			continue
		}
		dirty++
		cmd.Printf("  %s: %s", entry.DocumentID, entry.Status)
		if entry.Detail != "" {
			cmd.Printf(" (%s)", entry.Detail)
		}
		cmd.Println()
	}

	if dirty == 0 {
		cmd.Printf("Consistent: %d document(s) checked\n", len(report.Entries))
		return nil
	}
	return fmt.Errorf("%w: %d of %d document(s) inconsistent", ErrRepairRequired, dirty, len(report.Entries))
}

func runRepair(cmd *cobra.Command, _ []string) error {
	if indexManager == nil {
		return errors.New("index manager not configured")
	}

	ctx := context.Background()
	report, err := indexManager.VerifyConsistency(ctx)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	repaired, failed := 0, 0
	for _, entry := range report.Entries {
		if entry.Status == domain.ConsistencyOK {
			continue
		}
		if _, err := indexManager.Repair(ctx, entry.DocumentID); err != nil {
			cmd.Printf("  repair %s failed: %v\n", entry.DocumentID, err)
			failed++
			continue
		}
		cmd.Printf("  repaired %s (%s); re-add its source to rebuild the index\n", entry.DocumentID, entry.Status)
		repaired++
	}

	switch {
	case repaired == 0 && failed == 0:
		cmd.Println("Nothing to repair.")
		return nil
	case failed > 0:
		return fmt.Errorf("%w: repaired %d, failed %d", ErrPartialSuccess, repaired, failed)
	default:
		cmd.Printf("Repaired %d document(s)\n", repaired)
		return nil
	}
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	ranAny := false

	if cachePort != nil {
		if cleanupClearCache {
			cleared, err := cachePort.Clear(ctx)
			if err != nil {
				return fmt.Errorf("cache clear failed: %w", err)
			}
			cmd.Printf("cache: cleared %d entr%s\n", cleared, plural(cleared, "y", "ies"))
		} else {
			swept, err := cachePort.Sweep(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("cache sweep failed: %w", err)
			}
			cmd.Printf("cache: swept %d expired entr%s\n", swept, plural(swept, "y", "ies"))
		}
		ranAny = true
	}

	if intentLog != nil {
		compacted, err := intentLog.Compact(ctx)
		if err != nil {
			return fmt.Errorf("intent log compaction failed: %w", err)
		}
		cmd.Printf("intent log: compacted %d record(s)\n", compacted)
		ranAny = true
	}

	if jobStore != nil {
		cleared, err := jobStore.Clear(ctx)
		if err != nil {
			return fmt.Errorf("job clear failed: %w", err)
		}
		cmd.Printf("queue: removed %d terminal job(s)\n", cleared)
		ranAny = true
	}

	if !ranAny {
		return errors.New("no maintenance services configured")
	}
	return nil
}
