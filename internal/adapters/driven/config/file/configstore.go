package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/lumenforge/docindex/internal/core/domain"
)

// ConfigStore is a file-based configuration store using TOML.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	config   domain.Config
}

// NewConfigStore loads (or initialises with defaults) the TOML config
// file under configDir. If configDir is empty, defaults to ~/.docindex.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".docindex")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		config:   domain.DefaultConfig(),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// Config returns a copy of the current configuration.
func (s *ConfigStore) Config() domain.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Path returns the config file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

func (s *ConfigStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	cfg := domain.DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", s.filePath, err)
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	return nil
}

// Save writes the current configuration back to disk.
func (s *ConfigStore) Save() error {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Reset restores the compiled-in defaults and writes them to disk.
func (s *ConfigStore) Reset() error {
	s.mu.Lock()
	s.config = domain.DefaultConfig()
	s.mu.Unlock()
	return s.Save()
}

// Get returns the string form of the value at a dotted key, or an
// error naming the valid keys if key is unknown.
func (s *ConfigStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := accessors[key]
	if !ok {
		return "", unknownKeyError(key)
	}
	return acc.get(&s.config), nil
}

// Set parses value into the field at a dotted key and writes the
// updated configuration to disk.
func (s *ConfigStore) Set(key, value string) error {
	s.mu.Lock()
	acc, ok := accessors[key]
	if !ok {
		s.mu.Unlock()
		return unknownKeyError(key)
	}
	if err := acc.set(&s.config, value); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("config: setting %s: %w", key, err)
	}
	s.mu.Unlock()
	return s.Save()
}

// List returns every dotted key with its current value, sorted by key.
func (s *ConfigStore) List() []KeyValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]KeyValue, 0, len(accessors))
	for key, acc := range accessors {
		out = append(out, KeyValue{Key: key, Value: acc.get(&s.config)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// KeyValue is one dotted config key with its rendered value.
type KeyValue struct {
	Key   string
	Value string
}

func unknownKeyError(key string) error {
	keys := make([]string, 0, len(accessors))
	for k := range accessors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Errorf("config: unknown key %q (valid keys: %v)", key, keys)
}

// accessor converts one config field to and from its CLI string form.
type accessor struct {
	get func(*domain.Config) string
	set func(*domain.Config, string) error
}

func intAccessor(get func(*domain.Config) *int) accessor {
	return accessor{
		get: func(c *domain.Config) string { return strconv.Itoa(*get(c)) },
		set: func(c *domain.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*get(c) = n
			return nil
		},
	}
}

func boolAccessor(get func(*domain.Config) *bool) accessor {
	return accessor{
		get: func(c *domain.Config) string { return strconv.FormatBool(*get(c)) },
		set: func(c *domain.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*get(c) = b
			return nil
		},
	}
}

func floatAccessor(get func(*domain.Config) *float64) accessor {
	return accessor{
		get: func(c *domain.Config) string { return strconv.FormatFloat(*get(c), 'g', -1, 64) },
		set: func(c *domain.Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*get(c) = f
			return nil
		},
	}
}

func stringAccessor(get func(*domain.Config) *string) accessor {
	return accessor{
		get: func(c *domain.Config) string { return *get(c) },
		set: func(c *domain.Config, v string) error {
			*get(c) = v
			return nil
		},
	}
}

func durationAccessor(get func(*domain.Config) *time.Duration) accessor {
	return accessor{
		get: func(c *domain.Config) string { return (*get(c)).String() },
		set: func(c *domain.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*get(c) = d
			return nil
		},
	}
}

var accessors = map[string]accessor{
	"workers.count":        intAccessor(func(c *domain.Config) *int { return &c.Workers.Count }),
	"workers.max_attempts": intAccessor(func(c *domain.Config) *int { return &c.Workers.MaxAttempts }),

	"chunking.size":    intAccessor(func(c *domain.Config) *int { return &c.Chunking.Size }),
	"chunking.overlap": intAccessor(func(c *domain.Config) *int { return &c.Chunking.Overlap }),

	"cache.enabled":  boolAccessor(func(c *domain.Config) *bool { return &c.Cache.Enabled }),
	"cache.ttl":      durationAccessor(func(c *domain.Config) *time.Duration { return &c.Cache.TTL }),
	"cache.compress": boolAccessor(func(c *domain.Config) *bool { return &c.Cache.Compress }),

	"vector.dimensions": intAccessor(func(c *domain.Config) *int { return &c.Vector.Dimensions }),

	"hybrid.default_method":  stringAccessor(func(c *domain.Config) *string { return &c.Hybrid.DefaultMethod }),
	"hybrid.alpha":           floatAccessor(func(c *domain.Config) *float64 { return &c.Hybrid.Alpha }),
	"hybrid.rrf_k":           intAccessor(func(c *domain.Config) *int { return &c.Hybrid.RRFK }),
	"hybrid.consensus_boost": floatAccessor(func(c *domain.Config) *float64 { return &c.Hybrid.ConsensusBoost }),

	"timeouts.base":     durationAccessor(func(c *domain.Config) *time.Duration { return &c.Timeouts.Base }),
	"timeouts.per_page": durationAccessor(func(c *domain.Config) *time.Duration { return &c.Timeouts.PerPage }),

	"paths.registry":    stringAccessor(func(c *domain.Config) *string { return &c.Paths.Registry }),
	"paths.queue":       stringAccessor(func(c *domain.Config) *string { return &c.Paths.Queue }),
	"paths.cache":       stringAccessor(func(c *domain.Config) *string { return &c.Paths.Cache }),
	"paths.vector":      stringAccessor(func(c *domain.Config) *string { return &c.Paths.Vector }),
	"paths.keyword":     stringAccessor(func(c *domain.Config) *string { return &c.Paths.Keyword }),
	"paths.fingerprint": stringAccessor(func(c *domain.Config) *string { return &c.Paths.Fingerprint }),
	"paths.intent_log":  stringAccessor(func(c *domain.Config) *string { return &c.Paths.IntentLog }),
}
