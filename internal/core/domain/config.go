package domain

import "time"

// WorkersConfig controls the Worker Pool.
type WorkersConfig struct {
	Count       int `toml:"count"`
	MaxAttempts int `toml:"max_attempts"`
}

// ChunkingConfig controls the chunker.
type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// CacheConfig controls the Artifact Cache's retention policy.
type CacheConfig struct {
	Enabled  bool          `toml:"enabled"`
	TTL      time.Duration `toml:"ttl"`
	Compress bool          `toml:"compress"`
}

// VectorConfig controls the Vector Adapter.
type VectorConfig struct {
	Dimensions int `toml:"dimensions"`
}

// HybridConfig controls fusion ranking.
type HybridConfig struct {
	DefaultMethod  string  `toml:"default_method"`
	Alpha          float64 `toml:"alpha"`
	RRFK           int     `toml:"rrf_k"`
	ConsensusBoost float64 `toml:"consensus_boost"`
}

// TimeoutsConfig controls the per-call deadline formula: base + per_page * pages.
type TimeoutsConfig struct {
	Base    time.Duration `toml:"base"`
	PerPage time.Duration `toml:"per_page"`
}

// PathsConfig locates the seven on-disk stores.
type PathsConfig struct {
	Registry    string `toml:"registry"`
	Queue       string `toml:"queue"`
	Cache       string `toml:"cache"`
	Vector      string `toml:"vector"`
	Keyword     string `toml:"keyword"`
	Fingerprint string `toml:"fingerprint"`
	IntentLog   string `toml:"intent_log"`
}

// Config is the complete, TOML-serialisable configuration surface.
type Config struct {
	Workers  WorkersConfig  `toml:"workers"`
	Chunking ChunkingConfig `toml:"chunking"`
	Cache    CacheConfig    `toml:"cache"`
	Vector   VectorConfig   `toml:"vector"`
	Hybrid   HybridConfig   `toml:"hybrid"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Paths    PathsConfig    `toml:"paths"`
}

// DefaultConfig returns the compiled-in defaults `config reset` restores.
func DefaultConfig() Config {
	return Config{
		Workers: WorkersConfig{
			Count:       4,
			MaxAttempts: 5,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      30 * 24 * time.Hour,
			Compress: true,
		},
		Vector: VectorConfig{
			Dimensions: 1536,
		},
		Hybrid: HybridConfig{
			DefaultMethod:  "rrf",
			Alpha:          0.5,
			RRFK:           60,
			ConsensusBoost: 1.1,
		},
		Timeouts: TimeoutsConfig{
			Base:    30 * time.Second,
			PerPage: 2 * time.Second,
		},
		Paths: PathsConfig{
			Registry:    "registry.db",
			Queue:       "queue.db",
			Cache:       "cache",
			Vector:      "vector",
			Keyword:     "keyword",
			Fingerprint: "fingerprint.db",
			IntentLog:   "intent.log",
		},
	}
}
