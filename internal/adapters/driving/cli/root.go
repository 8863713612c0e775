// Package cli implements the admin command surface: add, update,
// remove, search, queue, status, maintenance, and config, built on
// cobra in the same shape as the rest of the driving adapters.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	filecfg "github.com/lumenforge/docindex/internal/adapters/driven/config/file"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
	"github.com/lumenforge/docindex/internal/core/services"
	"github.com/lumenforge/docindex/internal/logger"
)

// Exit codes for the CLI surface.
const (
	ExitOK             = 0
	ExitUsage          = 2
	ExitPartial        = 3
	ExitRepairRequired = 4
	ExitFatal          = 5
)

// Sentinel errors commands return so Execute can map them to exit codes.
var (
	// ErrPartialSuccess reports that some, but not all, requested work
	// completed (e.g. a queue drain with failed jobs left behind).
	ErrPartialSuccess = errors.New("partial success")

	// ErrRepairRequired reports that a consistency check found
	// disagreements needing `maintenance repair`.
	ErrRepairRequired = errors.New("consistency repair required")
)

// Services is everything the commands dispatch to, wired by the cmd
// package at startup.
type Services struct {
	Executor    *services.JobExecutor
	Manager     *services.IndexManager
	Search      *services.HybridSearch
	Pool        *services.WorkerPool
	Jobs        driven.JobStore
	Registry    driven.Registry
	Cache       driven.ArtifactCache
	Intents     driven.IntentLog
	Vector      driven.VectorAdapter
	Keyword     driven.KeywordAdapter
	ConfigStore *filecfg.ConfigStore
}

var (
	jobExecutor   *services.JobExecutor
	indexManager  *services.IndexManager
	searchService *services.HybridSearch
	workerPool    *services.WorkerPool
	jobStore      driven.JobStore
	registryPort  driven.Registry
	cachePort     driven.ArtifactCache
	intentLog     driven.IntentLog
	vectorPort    driven.VectorAdapter
	keywordPort   driven.KeywordAdapter
	configStore   *filecfg.ConfigStore
)

// SetServices wires the concrete services the commands run against.
func SetServices(s Services) {
	jobExecutor = s.Executor
	indexManager = s.Manager
	searchService = s.Search
	workerPool = s.Pool
	jobStore = s.Jobs
	registryPort = s.Registry
	cachePort = s.Cache
	intentLog = s.Intents
	vectorPort = s.Vector
	keywordPort = s.Keyword
	configStore = s.ConfigStore
}

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "docindex",
	Short: "Document ingestion and hybrid search",
	Long: `docindex ingests documents (PDFs, Markdown, URLs) into parallel
vector and keyword indexes and serves hybrid search over them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	switch {
	case errors.Is(err, ErrPartialSuccess):
		return ExitPartial
	case errors.Is(err, ErrRepairRequired):
		return ExitRepairRequired
	case isUsageError(err):
		return ExitUsage
	default:
		return ExitFatal
	}
}

// isUsageError distinguishes bad invocations (unknown command, bad
// flag, wrong arg count, unparseable argument) from runtime failures.
func isUsageError(err error) bool {
	var usage *usageError
	return errors.As(err, &usage)
}

// usageError wraps validation failures of the command line itself.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}
