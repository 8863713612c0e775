package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
	"github.com/lumenforge/docindex/internal/logger"
)

// IndexManager is the orchestrator that turns one Source observation
// into durable writes across the Registry, the Fingerprint Store, the
// Artifact Cache, and the two search adapters. Every mutating
// operation is first Announced to the IntentLog, then Executed step by
// step with each completion marked, then Committed; a crash between
// Announce and Commit leaves a trail Recover can replay idempotently.
type IndexManager struct {
	detector    *ChangeDetector
	registry    driven.Registry
	fingerprint driven.FingerprintStore
	cache       driven.ArtifactCache
	intents     driven.IntentLog
	vector      driven.VectorAdapter
	keyword     driven.KeywordAdapter
	extractor   driven.ContentExtractor
	vectorizer  driven.Vectorizer
	keywordGen  driven.KeywordGenerator
	chunker     *Chunker
	cacheTTL    time.Duration
	newOpID     func() string
}

// Deps bundles the collaborators an IndexManager is built from.
type Deps struct {
	Registry    driven.Registry
	Fingerprint driven.FingerprintStore
	Cache       driven.ArtifactCache
	Intents     driven.IntentLog
	Vector      driven.VectorAdapter
	Keyword     driven.KeywordAdapter
	Extractor   driven.ContentExtractor
	Vectorizer  driven.Vectorizer
	KeywordGen  driven.KeywordGenerator
	Chunker     *Chunker
	CacheTTL    time.Duration
	NewOpID     func() string
}

// NewIndexManager builds an IndexManager from deps. KeywordGen may be
// nil: augmentation is optional and a nil generator simply skips it.
func NewIndexManager(deps Deps) *IndexManager {
	if deps.Chunker == nil {
		deps.Chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 30 * 24 * time.Hour
	}
	if deps.NewOpID == nil {
		deps.NewOpID = defaultOpID
	}
	return &IndexManager{
		detector:    NewChangeDetector(deps.Registry, deps.Fingerprint),
		registry:    deps.Registry,
		fingerprint: deps.Fingerprint,
		cache:       deps.Cache,
		intents:     deps.Intents,
		vector:      deps.Vector,
		keyword:     deps.Keyword,
		extractor:   deps.Extractor,
		vectorizer:  deps.Vectorizer,
		keywordGen:  deps.KeywordGen,
		chunker:     deps.Chunker,
		cacheTTL:    deps.CacheTTL,
		newOpID:     deps.NewOpID,
	}
}

func defaultOpID() string {
	return "op_" + uuid.NewString()
}

// hasVector reports whether the vector leg is configured at all. With
// no Vectorizer (or no vector adapter) the pipeline degrades to
// keyword-only indexing instead of failing: plans simply omit the
// vector steps.
func (m *IndexManager) hasVector() bool {
	return m.vector != nil && m.vectorizer != nil
}

// AddOptions carries the options fingerprint and extraction mode an Add
// or Update call should reprocess the source under.
type AddOptions struct {
	Mode       driven.ExtractMode
	Prompt     string
	MimeHint   string
	OptionsFP  string
	DocContext string

	// ModTime is the source's declared modification time (file mtime,
	// Last-Modified header). It is recorded on the fingerprint as
	// advisory metadata; a read timestamp here would make every re-add
	// of identical bytes look like metadata drift.
	ModTime time.Time

	// Force skips change detection and reprocesses unconditionally,
	// superseding whatever record the source currently has.
	Force bool
}

// Add ingests source: a fresh read, classification against the last
// recorded state, and (for any ChangeKind that requires it) a full
// Plan→Announce→Execute→Commit cycle. It returns the resulting record
// unconditionally, including for Unchanged (the prior record with only
// UpdatedAt advanced).
func (m *IndexManager) Add(ctx context.Context, source domain.Source, content []byte, opts AddOptions) (domain.DocumentRecord, error) {
	fp := domain.ComputeFingerprint(content, int64(len(content)), opts.ModTime)

	if opts.Force {
		var prior *domain.DocumentRecord
		if rec, err := m.registry.GetDocumentBySource(ctx, source); err == nil {
			prior = &rec
		}
		return m.reindex(ctx, source, content, fp, prior, opts)
	}

	kind, prior, err := m.detector.Detect(ctx, source, fp, opts.OptionsFP)
	if err != nil {
		return domain.DocumentRecord{}, err
	}

	logger.Debug("index manager: source=%s change=%s", source, kind)

	switch kind {
	case domain.Unchanged:
		if prior != nil {
			// No work, but the touch is recorded: UpdatedAt advances,
			// everything else stays byte-identical.
			rec := *prior
			rec.UpdatedAt = time.Now()
			if err := m.registry.PutDocument(ctx, rec); err != nil {
				return domain.DocumentRecord{}, err
			}
			return rec, nil
		}
		return domain.DocumentRecord{}, nil
	case domain.MetadataOnly:
		rec := *prior
		rec.Fingerprint = fp
		rec.UpdatedAt = time.Now()
		if err := m.registry.PutDocument(ctx, rec); err != nil {
			return domain.DocumentRecord{}, err
		}
		if err := m.fingerprint.Put(ctx, source, fp); err != nil {
			return domain.DocumentRecord{}, err
		}
		return rec, nil
	case domain.Corrupt:
		if prior == nil {
			// A fingerprint with no registry record: drop the orphan
			// entry and ingest from scratch.
			if err := m.fingerprint.Delete(ctx, source); err != nil {
				return domain.DocumentRecord{}, err
			}
			return m.reindex(ctx, source, content, fp, nil, opts)
		}
		repaired, err := m.Repair(ctx, prior.ID)
		if err != nil {
			return domain.DocumentRecord{}, err
		}
		return m.reindex(ctx, source, content, fp, &repaired, opts)
	case domain.NewDocument, domain.ContentChanged, domain.OptionsChanged:
		return m.reindex(ctx, source, content, fp, prior, opts)
	default:
		return domain.DocumentRecord{}, fmt.Errorf("index manager: unhandled change kind %v", kind)
	}
}

// reindex runs the full pipeline (extract, chunk, embed, augment) and
// writes the resulting chunks to both adapters and the Registry under a
// single Intent, deleting the prior generation's artifacts if this is a
// ContentChanged or OptionsChanged reindex rather than a first ingest.
func (m *IndexManager) reindex(
	ctx context.Context, source domain.Source, content []byte, fp domain.Fingerprint,
	prior *domain.DocumentRecord, opts AddOptions,
) (domain.DocumentRecord, error) {
	docID := domain.NewDocumentID(source, fp, opts.OptionsFP)

	extractResult, err := m.extractWithCache(ctx, content, fp, opts)
	if err != nil {
		return domain.DocumentRecord{}, domain.NewTaxonomyError(domain.KindExtraction, err)
	}

	pairs := make([]domain.Pair, 0, len(extractResult.Pairs))
	for _, p := range extractResult.Pairs {
		pairs = append(pairs, domain.Pair{Label: p.Label, Value: p.Value})
	}

	meta := domain.ChunkMetadata{
		Source:      source,
		Language:    "",
		ParseMethod: extractResult.ParseMethod,
	}
	chunks := m.chunker.Chunk(docID, extractResult.Text, meta, pairs)

	if err := m.augment(ctx, chunks, opts.DocContext); err != nil {
		logger.Warn("index manager: augmentation failed, indexing without keywords: %v", err)
	}

	embeddings, err := m.embed(ctx, chunks)
	if err != nil {
		return domain.DocumentRecord{}, domain.NewTaxonomyError(domain.KindTransient, err)
	}

	steps := m.planSteps(prior)
	chunkIDs := make([]domain.ChunkID, 0, len(chunks))
	for _, c := range chunks {
		chunkIDs = append(chunkIDs, c.ID)
	}

	rec := domain.DocumentRecord{
		ID:          docID,
		Source:      source,
		Fingerprint: fp,
		OptionsFP:   opts.OptionsFP,
		State:       domain.StateIndexing,
		ChunkIDs:    chunkIDs,
		MimeType:    opts.MimeHint,
		ParseMethod: extractResult.ParseMethod,
		PageCount:   extractResult.PageCount,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if prior != nil {
		rec.CreatedAt = prior.CreatedAt
	}

	opID := m.newOpID()
	intent := domain.IntentRecord{
		OpID:       opID,
		DocumentID: docID,
		Kind:       domain.JobAdd,
		Steps:      steps,
		Done:       make([]bool, len(steps)),
		State:      domain.IntentAnnounced,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if prior != nil {
		intent.Kind = domain.JobUpdate
	}
	if err := m.intents.Announce(ctx, intent); err != nil {
		return domain.DocumentRecord{}, err
	}

	if err := m.execute(ctx, opID, steps, prior, rec, chunks, embeddings, source, fp); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrCancelled) {
			// Cooperative cancellation at a step boundary: the Intent
			// stays Announced so Recover or a retry can resume it, and
			// the record is not latched Failed.
			return rec, domain.NewTaxonomyError(domain.KindCancellation, err)
		}
		rec.State = domain.StateFailed
		rec.Error = err.Error()
		_ = m.registry.PutDocument(ctx, rec)
		return rec, err
	}

	if err := m.intents.Commit(ctx, opID); err != nil {
		return rec, err
	}

	rec.State = domain.StateReady
	rec.Error = ""
	if err := m.registry.PutDocument(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// planSteps builds the step sequence for an Add/Update intent. A prior
// record contributes delete steps ahead of the write steps that replace
// it, so Execute tears down the old generation before the new one goes
// live under its new DocumentID.
func (m *IndexManager) planSteps(prior *domain.DocumentRecord) []domain.IntentStep {
	steps := make([]domain.IntentStep, 0, 7)
	if prior != nil {
		if m.hasVector() {
			steps = append(steps, domain.StepVectorDelete)
		}
		steps = append(steps, domain.StepKeywordDelete)
	}
	steps = append(steps, domain.StepCachePut)
	if m.hasVector() {
		steps = append(steps, domain.StepVectorWrite)
	}
	steps = append(steps,
		domain.StepKeywordWrite,
		domain.StepRegistryWrite,
		domain.StepFingerprintCommit,
	)
	return steps
}

// execute runs each planned step in order, marking it done in the
// IntentLog as soon as it durably completes. Steps are idempotent:
// Add/Delete against an adapter with the same IDs twice is a no-op on
// the second pass, which is what makes Recover safe to replay blindly
// from the first not-done step.
func (m *IndexManager) execute(
	ctx context.Context, opID string, steps []domain.IntentStep,
	prior *domain.DocumentRecord, rec domain.DocumentRecord,
	chunks []domain.Chunk, embeddings [][]float32, source domain.Source, fp domain.Fingerprint,
) error {
	writes := make([]driven.ChunkWrite, len(chunks))
	for i, c := range chunks {
		writes[i] = driven.ChunkWrite{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
		}
		if i < len(embeddings) {
			writes[i].Embedding = embeddings[i]
		}
	}

	for idx, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch step {
		case domain.StepVectorDelete:
			err = m.vector.Delete(ctx, prior.ID)
		case domain.StepKeywordDelete:
			err = m.keyword.Delete(ctx, prior.ID)
		case domain.StepCachePut:
			// Cache writes happened in extractWithCache; this step only
			// exists to leave a durable marker Recover can trust.
		case domain.StepVectorWrite:
			err = m.vector.Add(ctx, writes)
		case domain.StepKeywordWrite:
			err = m.keyword.Add(ctx, writes)
		case domain.StepRegistryWrite:
			// The superseded generation's record and chunk rows go
			// first, so at most one record per source is ever Ready.
			if prior != nil && prior.ID != rec.ID {
				err = m.deleteRegistryDocument(ctx, prior.ID)
			}
			if err == nil {
				err = m.registry.PutChunks(ctx, chunks)
			}
			if err == nil {
				err = m.registry.PutDocument(ctx, rec)
			}
		case domain.StepFingerprintCommit:
			err = m.fingerprint.Put(ctx, source, fp)
		}
		if err != nil {
			return err
		}
		if err := m.intents.MarkStepDone(ctx, opID, idx); err != nil {
			return err
		}
	}
	return nil
}

// deleteRegistryDocument removes a record and its chunk rows, treating
// an already-absent record as success so replays stay idempotent.
func (m *IndexManager) deleteRegistryDocument(ctx context.Context, id domain.DocumentID) error {
	chunks, err := m.registry.GetChunks(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	ids := make([]domain.ChunkID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := m.registry.DeleteChunks(ctx, ids); err != nil {
		return err
	}
	if err := m.registry.DeleteDocument(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// extractWithCache consults the Artifact Cache before calling the
// configured ContentExtractor, and populates it afterwards so a retried
// ingest of unchanged bytes under unchanged options skips extraction.
func (m *IndexManager) extractWithCache(ctx context.Context, content []byte, fp domain.Fingerprint, opts AddOptions) (driven.ExtractResult, error) {
	key := driven.ArtifactKey{ContentHash: fp.String(), OptionsFP: opts.OptionsFP, Stage: "extract"}
	if m.cache != nil {
		if cached, err := m.cache.Get(ctx, key); err == nil {
			return decodeExtractResult(cached)
		} else if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("index manager: cache get failed, extracting fresh: %v", err)
		}
	}

	result, err := m.extractor.Extract(ctx, content, opts.MimeHint, opts.Mode, opts.Prompt)
	if err != nil {
		return driven.ExtractResult{}, err
	}

	if m.cache != nil {
		if encoded, encErr := encodeExtractResult(result); encErr == nil {
			if err := m.cache.Put(ctx, key, encoded, m.cacheTTL); err != nil {
				logger.Warn("index manager: cache put failed: %v", err)
			}
		}
	}

	return result, nil
}

// augment asks the configured KeywordGenerator for extra search terms
// per chunk and appends them to the chunk's text in place. It is best
// effort: a nil generator, or any error, leaves chunks exactly as
// produced by the chunker.
func (m *IndexManager) augment(ctx context.Context, chunks []domain.Chunk, docContext string) error {
	if m.keywordGen == nil {
		return nil
	}
	for i := range chunks {
		terms, err := m.keywordGen.Augment(ctx, chunks[i].Text, docContext)
		if err != nil {
			return err
		}
		for _, t := range terms {
			chunks[i].Text += " " + t
		}
	}
	return nil
}

func (m *IndexManager) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if !m.hasVector() {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := m.vectorizer.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if len(v) != m.vectorizer.Dimensions() {
			return nil, domain.ErrDimensionMismatch
		}
	}
	return vectors, nil
}

// Remove tears a document down from both adapters and the Registry via
// the same Announce/Execute/Commit discipline as reindex, so a crash
// mid-removal is resumable rather than leaving the adapters and
// Registry disagreeing.
func (m *IndexManager) Remove(ctx context.Context, id domain.DocumentID) error {
	rec, err := m.registry.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	rec.State = domain.StateRemoving
	if err := m.registry.PutDocument(ctx, rec); err != nil {
		return err
	}

	opID := m.newOpID()
	steps := make([]domain.IntentStep, 0, 3)
	if m.vector != nil {
		steps = append(steps, domain.StepVectorDelete)
	}
	steps = append(steps, domain.StepKeywordDelete, domain.StepRegistryWrite)
	intent := domain.IntentRecord{
		OpID:       opID,
		DocumentID: id,
		Kind:       domain.JobRemove,
		Steps:      steps,
		Done:       make([]bool, len(steps)),
		State:      domain.IntentAnnounced,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := m.intents.Announce(ctx, intent); err != nil {
		return err
	}

	for idx, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch step {
		case domain.StepVectorDelete:
			err = m.vector.Delete(ctx, id)
		case domain.StepKeywordDelete:
			err = m.keyword.Delete(ctx, id)
		case domain.StepRegistryWrite:
			err = m.deleteRegistryDocument(ctx, id)
		}
		if err != nil {
			return err
		}
		if err := m.intents.MarkStepDone(ctx, opID, idx); err != nil {
			return err
		}
	}

	if err := m.fingerprint.Delete(ctx, rec.Source); err != nil {
		logger.Warn("index manager: fingerprint delete failed for %s: %v", id, err)
	}

	return m.intents.Commit(ctx, opID)
}

// Recover replays every IntentLog record still Announced, resuming each
// one from its first not-done step. It is meant to run once at startup,
// before the Worker Pool accepts new jobs, so a crash mid-operation
// never leaves the adapters and Registry permanently disagreeing.
func (m *IndexManager) Recover(ctx context.Context) (int, error) {
	incomplete, err := m.intents.ListIncomplete(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, intent := range incomplete {
		if err := m.recoverOne(ctx, intent); err != nil {
			logger.Warn("index manager: recover op %s failed: %v", intent.OpID, err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// recoverOne resumes intent from its first not-done step using only
// adapter-idempotent operations: the vector/keyword delete-by-doc and
// add-by-chunk calls that Execute itself relies on. A step this
// function cannot safely retry blind (cache/registry/fingerprint
// writes whose source payload isn't carried on the IntentRecord) is
// left for the operator to resolve via Repair instead.
func (m *IndexManager) recoverOne(ctx context.Context, intent domain.IntentRecord) error {
	next := intent.NextStep()
	if next == -1 {
		return m.intents.Commit(ctx, intent.OpID)
	}

	for idx := next; idx < len(intent.Steps); idx++ {
		step := intent.Steps[idx]
		var err error
		switch step {
		case domain.StepVectorDelete:
			if m.vector != nil {
				err = m.vector.Delete(ctx, intent.DocumentID)
			}
		case domain.StepKeywordDelete:
			err = m.keyword.Delete(ctx, intent.DocumentID)
		case domain.StepCachePut, domain.StepVectorWrite, domain.StepKeywordWrite,
			domain.StepRegistryWrite, domain.StepFingerprintCommit:
			// These steps need the chunk/embedding payload that lived
			// only in memory when the crash happened; mark the record
			// Corrupt instead of guessing, so Repair regenerates it,
			// and retire the intent so it doesn't replay forever.
			if err := m.markCorrupt(ctx, intent.DocumentID, "recover: step "+step.String()+" needs reprocessing"); err != nil {
				return err
			}
			return m.intents.RollBack(ctx, intent.OpID)
		}
		if err != nil {
			return err
		}
		if err := m.intents.MarkStepDone(ctx, intent.OpID, idx); err != nil {
			return err
		}
	}
	return m.intents.Commit(ctx, intent.OpID)
}

func (m *IndexManager) markCorrupt(ctx context.Context, id domain.DocumentID, detail string) error {
	rec, err := m.registry.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	return m.registry.SetState(ctx, rec.ID, domain.StateCorrupt, detail)
}

// Repair resolves a Corrupt record by deleting whatever the adapters
// hold for it and restoring it to Pending so the next Add call
// re-extracts and rebuilds it from scratch — the unconditional, always-
// correct fallback when an intent can't be replayed precisely.
func (m *IndexManager) Repair(ctx context.Context, id domain.DocumentID) (domain.DocumentRecord, error) {
	rec, err := m.registry.GetDocument(ctx, id)
	if err != nil {
		return domain.DocumentRecord{}, err
	}

	if m.vector != nil {
		if err := m.vector.Delete(ctx, id); err != nil {
			return domain.DocumentRecord{}, err
		}
	}
	if err := m.keyword.Delete(ctx, id); err != nil {
		return domain.DocumentRecord{}, err
	}
	chunks, err := m.registry.GetChunks(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.DocumentRecord{}, err
	}
	ids := make([]domain.ChunkID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := m.registry.DeleteChunks(ctx, ids); err != nil {
		return domain.DocumentRecord{}, err
	}

	rec.State = domain.StatePending
	rec.ChunkIDs = nil
	rec.Error = ""
	rec.UpdatedAt = time.Now()
	if err := m.registry.PutDocument(ctx, rec); err != nil {
		return domain.DocumentRecord{}, err
	}
	if err := m.fingerprint.Delete(ctx, rec.Source); err != nil {
		logger.Warn("index manager: fingerprint delete failed during repair of %s: %v", id, err)
	}

	return rec, nil
}

// VerifyConsistency diffs the Registry's chunk ownership against what
// each adapter reports holding, in both directions: chunks the Registry
// expects but an adapter lacks (MissingIn*), and chunks an adapter
// holds that no longer belong to any Registry record (OrphanIn*).
func (m *IndexManager) VerifyConsistency(ctx context.Context) (domain.ConsistencyReport, error) {
	records, err := m.registry.ListDocuments(ctx, driven.DocumentFilter{})
	if err != nil {
		return domain.ConsistencyReport{}, err
	}

	registryDocs := make(map[domain.DocumentID]domain.DocumentRecord, len(records))
	for _, rec := range records {
		registryDocs[rec.ID] = rec
	}

	report := domain.ConsistencyReport{}

	for _, rec := range records {
		status, detail := m.checkDocument(ctx, rec)
		report.Entries = append(report.Entries, domain.ConsistencyEntry{
			DocumentID: rec.ID, Status: status, Detail: detail,
		})
	}

	var vectorDocs []domain.DocumentID
	if m.vector != nil {
		vectorDocs, err = m.vector.ListDocuments(ctx)
	}
	if err == nil {
		for _, doc := range vectorDocs {
			if _, ok := registryDocs[doc]; !ok {
				report.Entries = append(report.Entries, domain.ConsistencyEntry{
					DocumentID: doc, Status: domain.OrphanInVector, Detail: "vector adapter holds chunks for a document absent from the registry",
				})
			}
		}
	} else if !errors.Is(err, domain.ErrNotImplemented) {
		logger.Warn("index manager: vector ListDocuments failed: %v", err)
	}

	keywordDocs, err := m.keyword.ListDocuments(ctx)
	if err == nil {
		for _, doc := range keywordDocs {
			if _, ok := registryDocs[doc]; !ok {
				report.Entries = append(report.Entries, domain.ConsistencyEntry{
					DocumentID: doc, Status: domain.OrphanInKeyword, Detail: "keyword adapter holds chunks for a document absent from the registry",
				})
			}
		}
	} else if !errors.Is(err, domain.ErrNotImplemented) {
		logger.Warn("index manager: keyword ListDocuments failed: %v", err)
	}

	return report, nil
}

func (m *IndexManager) checkDocument(ctx context.Context, rec domain.DocumentRecord) (domain.ConsistencyStatus, string) {
	if rec.State == domain.StateReady && len(rec.ChunkIDs) == 0 {
		return domain.StateInconsistent, "ready with no chunk ids"
	}
	if rec.State != domain.StateReady {
		return domain.ConsistencyOK, ""
	}
	for _, chunkID := range rec.ChunkIDs {
		if m.vector != nil {
			has, err := m.vector.Exists(ctx, chunkID)
			if err == nil && !has {
				return domain.MissingInVector, "chunk " + string(chunkID) + " absent from vector adapter"
			}
		}
		has, err := m.keyword.Exists(ctx, chunkID)
		if err == nil && !has {
			return domain.MissingInKeyword, "chunk " + string(chunkID) + " absent from keyword adapter"
		}
	}
	return domain.ConsistencyOK, ""
}
