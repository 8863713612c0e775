package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var (
	ingestEnqueue  bool
	ingestPriority int
	ingestMode     string
	ingestForce    bool
)

var addCmd = &cobra.Command{
	Use:   "add [path-or-url]",
	Short: "Ingest a document",
	Long: `Reads a document from a local path or URL, extracts and chunks its
text, and indexes the chunks in both the vector and keyword indexes.
Re-adding an unchanged document is a cheap no-op; changed content or
options replace the previous version atomically.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var updateCmd = &cobra.Command{
	Use:   "update [path-or-url]",
	Short: "Re-ingest a document if it changed",
	Long: `Semantically equivalent to add: change detection decides whether any
work happens. Provided as a separate verb for script readability.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var removeCmd = &cobra.Command{
	Use:   "remove [path-or-url | doc-id]",
	Short: "Remove a document from all indexes",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	for _, cmd := range []*cobra.Command{addCmd, updateCmd, removeCmd} {
		cmd.Flags().BoolVar(&ingestEnqueue, "enqueue", false, "queue the operation for a running worker pool instead of executing now")
		cmd.Flags().IntVar(&ingestPriority, "priority", 0, "queue priority (higher runs first, only with --enqueue)")
	}
	for _, cmd := range []*cobra.Command{addCmd, updateCmd} {
		cmd.Flags().StringVar(&ingestMode, "mode", "auto", "extraction mode: auto, generic, markdown, or datasheet")
	}
	updateCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "reprocess even if nothing changed")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
}

// parseSource classifies the argument as a URL or a local path.
func parseSource(arg string) domain.Source {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return domain.NewURLSource(arg)
	}
	return domain.NewPathSource(arg)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if jobExecutor == nil {
		return errors.New("ingest service not configured")
	}

	source := parseSource(args[0])
	ctx := context.Background()

	kind := domain.JobAdd
	if cmd.Name() == "update" {
		kind = domain.JobUpdate
	}

	if ingestEnqueue {
		return enqueue(ctx, cmd, kind, source, "")
	}

	opts := jobExecutor.Options()
	switch strings.ToLower(ingestMode) {
	case "", "auto":
		opts.Mode = driven.ModeAuto
	case "generic":
		opts.Mode = driven.ModeGeneric
	case "markdown":
		opts.Mode = driven.ModeMarkdown
	case "datasheet":
		opts.Mode = driven.ModeDatasheet
	default:
		return usageErrorf("unknown extraction mode %q (valid: auto, generic, markdown, datasheet)", ingestMode)
	}
	opts.Force = ingestForce

	rec, err := jobExecutor.IngestWith(ctx, source, opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("%s %s\n", rec.State, rec.ID)
	cmd.Printf("  Source: %s\n", rec.Source.Value)
	cmd.Printf("  Chunks: %d\n", len(rec.ChunkIDs))
	if rec.PageCount > 0 {
		cmd.Printf("  Pages: %d\n", rec.PageCount)
	}
	if rec.Error != "" {
		cmd.Printf("  Error: %s\n", rec.Error)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if jobExecutor == nil || indexManager == nil || registryPort == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	arg := args[0]

	// A doc_ prefix names a document directly; anything else is a source.
	if strings.HasPrefix(arg, "doc_") {
		if ingestEnqueue {
			return enqueue(ctx, cmd, domain.JobRemove, domain.Source{}, domain.DocumentID(arg))
		}
		if err := indexManager.Remove(ctx, domain.DocumentID(arg)); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		cmd.Printf("removed %s\n", arg)
		return nil
	}

	source := parseSource(arg)
	if ingestEnqueue {
		return enqueue(ctx, cmd, domain.JobRemove, source, "")
	}

	rec, err := registryPort.GetDocumentBySource(ctx, source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("nothing indexed for %s\n", source.Value)
			return nil
		}
		return fmt.Errorf("remove failed: %w", err)
	}
	if err := indexManager.Remove(ctx, rec.ID); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	cmd.Printf("removed %s (%s)\n", rec.ID, rec.Source.Value)
	return nil
}

func enqueue(ctx context.Context, cmd *cobra.Command, kind domain.JobKind, source domain.Source, docID domain.DocumentID) error {
	if jobStore == nil {
		return errors.New("job store not configured")
	}
	maxAttempts := 5
	if configStore != nil {
		maxAttempts = configStore.Config().Workers.MaxAttempts
	}
	job, err := jobStore.Enqueue(ctx, domain.Job{
		Kind:        kind,
		Source:      source,
		DocumentID:  docID,
		Priority:    ingestPriority,
		MaxAttempts: maxAttempts,
		State:       domain.JobPending,
	})
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	cmd.Printf("queued %s job %s\n", job.Kind, job.ID)
	return nil
}
