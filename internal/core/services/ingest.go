package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
	"github.com/lumenforge/docindex/internal/logger"
)

// IngestOptions is the processing-option surface whose fingerprint
// participates in DocumentID derivation: change any of these and the
// same bytes produce a distinct document identity.
type IngestOptions struct {
	Mode         driven.ExtractMode
	Prompt       string
	ChunkSize    int
	ChunkOverlap int

	// ExtractorVersion identifies the configured extractor backend and
	// revision. Folding it into the options fingerprint makes a cached
	// artifact from an older extractor read as a miss instead of being
	// served stale.
	ExtractorVersion string

	// Force skips change detection and reprocesses unconditionally.
	// Not part of the options fingerprint: forcing doesn't change what
	// the pipeline produces, only whether it runs.
	Force bool
}

// Fingerprint renders the options into the stable hash recorded as the
// record's OptionsFP.
func (o IngestOptions) Fingerprint() string {
	return domain.OptionsFingerprint(map[string]string{
		"mode":              o.Mode.String(),
		"prompt":            o.Prompt,
		"chunk_size":        strconv.Itoa(o.ChunkSize),
		"chunk_overlap":     strconv.Itoa(o.ChunkOverlap),
		"extractor_version": o.ExtractorVersion,
	})
}

// estimatedPageSize approximates how many raw bytes one page of a
// document occupies, for sizing extraction deadlines before the
// extractor has reported a real page count.
const estimatedPageSize = 50 << 10

// JobExecutor turns queued Jobs into IndexManager calls: it reads the
// source bytes, derives the extraction deadline from the document's
// size, and dispatches on the job kind. It is the Handler the Worker
// Pool runs.
type JobExecutor struct {
	manager  *IndexManager
	reader   driven.SourceReader
	registry driven.Registry
	opts     IngestOptions
	timeouts domain.TimeoutsConfig
}

// NewJobExecutor builds a JobExecutor.
func NewJobExecutor(manager *IndexManager, reader driven.SourceReader, registry driven.Registry, opts IngestOptions, timeouts domain.TimeoutsConfig) *JobExecutor {
	if timeouts.Base <= 0 {
		timeouts.Base = 30 * time.Second
	}
	if timeouts.PerPage <= 0 {
		timeouts.PerPage = 2 * time.Second
	}
	return &JobExecutor{
		manager:  manager,
		reader:   reader,
		registry: registry,
		opts:     opts,
		timeouts: timeouts,
	}
}

// Handle runs one job to completion. It satisfies the Handler contract:
// transient taxonomy errors retry, everything else counts against the
// job's attempt budget.
func (e *JobExecutor) Handle(ctx context.Context, job domain.Job) error {
	switch job.Kind {
	case domain.JobAdd, domain.JobUpdate:
		_, err := e.IngestWith(ctx, job.Source, e.opts)
		return err
	case domain.JobRemove:
		return e.remove(ctx, job)
	case domain.JobRepair:
		_, err := e.manager.Repair(ctx, job.DocumentID)
		return err
	default:
		return domain.NewTaxonomyError(domain.KindValidation,
			fmt.Errorf("%w: job kind %v", domain.ErrInvalidInput, job.Kind))
	}
}

// Options returns the executor's configured ingest options, for
// callers that want to override a field per invocation.
func (e *JobExecutor) Options() IngestOptions {
	return e.opts
}

// Ingest reads source and runs it through the Index Manager with the
// configured options, for both direct CLI calls and queued jobs.
func (e *JobExecutor) Ingest(ctx context.Context, source domain.Source) (domain.DocumentRecord, error) {
	return e.IngestWith(ctx, source, e.opts)
}

// IngestWith is Ingest with per-call options (e.g. a forced Datasheet
// mode). The options fingerprint is derived from opts, so a mode
// override correctly yields a distinct document identity.
func (e *JobExecutor) IngestWith(ctx context.Context, source domain.Source, opts IngestOptions) (domain.DocumentRecord, error) {
	content, err := e.reader.Read(ctx, source)
	if err != nil {
		return domain.DocumentRecord{}, classifyReadError(err)
	}

	deadline := e.deadlineFor(len(content.Data))
	opCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	mode := opts.Mode
	if mode == driven.ModeAuto {
		mode = modeForMime(content.MimeType)
	}

	logger.Debug("ingest: source=%s mime=%s mode=%s deadline=%s", source, content.MimeType, mode, deadline)

	return e.manager.Add(opCtx, source, content.Data, AddOptions{
		Mode:       mode,
		Prompt:     opts.Prompt,
		MimeHint:   content.MimeType,
		OptionsFP:  opts.Fingerprint(),
		DocContext: source.Value,
		ModTime:    content.ModTime,
		Force:      opts.Force,
	})
}

func (e *JobExecutor) remove(ctx context.Context, job domain.Job) error {
	docID := job.DocumentID
	if docID == "" {
		rec, err := e.registry.GetDocumentBySource(ctx, job.Source)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Already gone; removal is idempotent.
				return nil
			}
			return err
		}
		docID = rec.ID
	}
	if err := e.manager.Remove(ctx, docID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// deadlineFor computes the extraction deadline from the base + per-page
// formula, estimating the page count from the raw byte size.
func (e *JobExecutor) deadlineFor(size int) time.Duration {
	pages := size / estimatedPageSize
	if pages < 1 {
		pages = 1
	}
	return e.timeouts.Base + time.Duration(pages)*e.timeouts.PerPage
}

// modeForMime picks the extraction mode for ModeAuto ingests.
func modeForMime(mime string) driven.ExtractMode {
	switch mime {
	case "text/markdown", "text/x-markdown":
		return driven.ModeMarkdown
	case "application/pdf":
		return driven.ModeGeneric
	default:
		return driven.ModeAuto
	}
}

func classifyReadError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidInput):
		return domain.NewTaxonomyError(domain.KindValidation, err)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return domain.NewTaxonomyError(domain.KindTransient, err)
	default:
		return err
	}
}
