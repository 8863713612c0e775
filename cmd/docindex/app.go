package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/lumenforge/docindex/cgo/hnsw"
	"github.com/lumenforge/docindex/cgo/xapian"
	filecfg "github.com/lumenforge/docindex/internal/adapters/driven/config/file"
	ollamaembed "github.com/lumenforge/docindex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/lumenforge/docindex/internal/adapters/driven/embedding/openai"
	"github.com/lumenforge/docindex/internal/adapters/driven/extractor/local"
	"github.com/lumenforge/docindex/internal/adapters/driven/extractor/router"
	"github.com/lumenforge/docindex/internal/adapters/driven/fetch"
	indexmem "github.com/lumenforge/docindex/internal/adapters/driven/index/memory"
	"github.com/lumenforge/docindex/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/lumenforge/docindex/internal/adapters/driven/llm/ollama"
	openaillm "github.com/lumenforge/docindex/internal/adapters/driven/llm/openai"
	"github.com/lumenforge/docindex/internal/adapters/driven/ratelimit"
	storagemem "github.com/lumenforge/docindex/internal/adapters/driven/storage/memory"
	"github.com/lumenforge/docindex/internal/adapters/driven/storage/sqlite"
	"github.com/lumenforge/docindex/internal/adapters/driving/cli"
	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
	"github.com/lumenforge/docindex/internal/core/services"
	"github.com/lumenforge/docindex/internal/logger"
)

// app owns every constructed service plus the resources that need an
// explicit shutdown order: adapters first, then the shared store.
type app struct {
	services cli.Services
	store    *sqlite.Store
	vector   driven.VectorAdapter
	keyword  driven.KeywordAdapter
}

// buildApp wires the whole dependency graph: config, storage, the two
// index adapters, the external-capability clients, and the core
// services, in that order.
func buildApp() (*app, error) {
	configStore, err := filecfg.NewConfigStore(os.Getenv("DOCINDEX_CONFIG_DIR"))
	if err != nil {
		return nil, err
	}
	cfg := configStore.Config()

	a := &app{}
	ephemeral := os.Getenv("DOCINDEX_EPHEMERAL") != ""

	var (
		fingerprints driven.FingerprintStore
		cache        driven.ArtifactCache
		registry     driven.Registry
		jobs         driven.JobStore
		intents      driven.IntentLog
	)
	if ephemeral {
		fingerprints = storagemem.NewFingerprintStore()
		cache = storagemem.NewArtifactCache()
		registry = storagemem.NewRegistry()
		jobs = storagemem.NewJobStore()
		intents = storagemem.NewIntentLog()
	} else {
		store, err := sqlite.NewStore(os.Getenv("DOCINDEX_DATA_DIR"))
		if err != nil {
			return nil, err
		}
		a.store = store
		fingerprints = store.FingerprintStore()
		cache = store.ArtifactCache().WithCompression(cfg.Cache.Compress)
		registry = store.Registry()
		jobs = store.JobStore()
		intents = store.IntentLog()
	}
	if !cfg.Cache.Enabled {
		cache = nil
	}

	a.vector, a.keyword = buildIndexes(cfg.Vector.Dimensions, cfg.Paths)

	vectorizer, visionExtractor, keywordGen := buildClients(cfg.Vector.Dimensions)

	extractor := router.New(visionExtractor, local.New())

	manager := services.NewIndexManager(services.Deps{
		Registry:    registry,
		Fingerprint: fingerprints,
		Cache:       cache,
		Intents:     intents,
		Vector:      a.vector,
		Keyword:     a.keyword,
		Extractor:   extractor,
		Vectorizer:  vectorizer,
		KeywordGen:  keywordGen,
		Chunker:     services.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		CacheTTL:    cfg.Cache.TTL,
	})

	executorVersion := "local/1"
	if visionExtractor != nil {
		executorVersion = "vision/1"
	}
	executor := services.NewJobExecutor(manager, fetch.New(nil), registry, services.IngestOptions{
		Mode:             driven.ModeAuto,
		ChunkSize:        cfg.Chunking.Size,
		ChunkOverlap:     cfg.Chunking.Overlap,
		ExtractorVersion: executorVersion,
	}, cfg.Timeouts)

	poolCfg := services.DefaultPoolConfig()
	poolCfg.Workers = cfg.Workers.Count
	pool := services.NewWorkerPool(jobs, executor.Handle, poolCfg)

	search := services.NewHybridSearch(a.vector, a.keyword, vectorizer,
		services.HybridConfigFromDomain(cfg.Hybrid))

	a.services = cli.Services{
		Executor:    executor,
		Manager:     manager,
		Search:      search,
		Pool:        pool,
		Jobs:        jobs,
		Registry:    registry,
		Cache:       cache,
		Intents:     intents,
		Vector:      a.vector,
		Keyword:     a.keyword,
		ConfigStore: configStore,
	}
	return a, nil
}

// buildIndexes opens the native HNSW and Xapian indexes under the data
// root, falling back to the pure-Go in-memory adapters when the native
// bindings are unavailable (CGO-free build) or fail to open.
func buildIndexes(dimensions int, paths domain.PathsConfig) (driven.VectorAdapter, driven.KeywordAdapter) {
	root := os.Getenv("DOCINDEX_DATA_DIR")
	ctx := context.Background()

	var vector driven.VectorAdapter
	var keyword driven.KeywordAdapter

	// The !cgo stubs construct fine but error on every call; probing
	// Count distinguishes them from a real native index.
	if idx, err := hnsw.New(dataDirFor(root, paths.Vector), dimensions, hnsw.PrecisionFloat32); err == nil {
		if _, probeErr := idx.Count(ctx); !errors.Is(probeErr, domain.ErrNotImplemented) {
			vector = idx
		}
	} else {
		logger.Warn("hnsw unavailable: %v", err)
	}
	if vector == nil {
		logger.Warn("using in-memory vector index")
		vector = indexmem.NewVectorIndex(dimensions)
	}

	if eng, err := xapian.New(dataDirFor(root, paths.Keyword)); err == nil {
		if _, probeErr := eng.Count(ctx); !errors.Is(probeErr, domain.ErrNotImplemented) {
			keyword = eng
		}
	} else {
		logger.Warn("xapian unavailable: %v", err)
	}
	if keyword == nil {
		logger.Warn("using in-memory keyword index")
		keyword = indexmem.NewKeywordIndex(0, 0)
	}

	return vector, keyword
}

// buildClients picks the external-capability backends from the
// environment: OpenAI when OPENAI_API_KEY is set, Anthropic for vision
// extraction when ANTHROPIC_API_KEY is set, Ollama when OLLAMA_HOST
// points at a local server. Absent all three, ingestion runs
// keyword-only with the local extractor.
func buildClients(dimensions int) (driven.Vectorizer, driven.ContentExtractor, driven.KeywordGenerator) {
	limiter := ratelimit.NewLimiter(0, 0)

	var vectorizer driven.Vectorizer
	var extractor driven.ContentExtractor
	var keywordGen driven.KeywordGenerator

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if v, err := openaiembed.New(openaiembed.Config{APIKey: key, Dimensions: dimensions}); err == nil {
			vectorizer = ratelimit.NewVectorizer(v, limiter)
		}
		if c, err := openaillm.NewLLMClient(openaillm.LLMConfig{APIKey: key}); err == nil {
			extractor = c
			keywordGen = c
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c, err := anthropic.New(anthropic.Config{APIKey: key}); err == nil {
			extractor = c
			if keywordGen == nil {
				keywordGen = c
			}
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if vectorizer == nil {
			vectorizer = ratelimit.NewVectorizer(
				ollamaembed.New(ollamaembed.Config{BaseURL: host, Dimensions: dimensions}), limiter)
		}
		if extractor == nil {
			c := ollamallm.NewLLMClient(ollamallm.LLMConfig{BaseURL: host})
			extractor = c
			keywordGen = c
		}
	}

	if extractor != nil {
		extractor = ratelimit.NewExtractor(extractor, limiter)
	}
	if keywordGen != nil {
		keywordGen = ratelimit.NewKeywordGenerator(keywordGen, limiter)
	}

	return vectorizer, extractor, keywordGen
}

// Services returns the wired service set for the CLI.
func (a *app) Services() cli.Services {
	return a.services
}

// Close shuts everything down: adapters before the shared store.
func (a *app) Close() {
	if a.vector != nil {
		if err := a.vector.Close(); err != nil {
			logger.Warn("closing vector index: %v", err)
		}
	}
	if a.keyword != nil {
		if err := a.keyword.Close(); err != nil {
			logger.Warn("closing keyword index: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}
}

// dataDirFor resolves a store's on-disk directory under the data root.
func dataDirFor(root, name string) string {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return name
		}
		root = filepath.Join(home, ".docindex", "data")
	}
	return filepath.Join(root, name)
}
