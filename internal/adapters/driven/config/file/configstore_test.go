package file

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_DefaultsWhenNoFile(t *testing.T) {
	s, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, 4, cfg.Workers.Count)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, "rrf", cfg.Hybrid.DefaultMethod)
}

func TestConfigStore_SetPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("workers.count", "8"))
	require.NoError(t, s.Set("hybrid.alpha", "0.7"))
	require.NoError(t, s.Set("cache.ttl", "48h"))
	require.NoError(t, s.Set("cache.compress", "false"))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)

	cfg := reloaded.Config()
	assert.Equal(t, 8, cfg.Workers.Count)
	assert.Equal(t, 0.7, cfg.Hybrid.Alpha)
	assert.Equal(t, 48*time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Compress)
}

func TestConfigStore_GetAndList(t *testing.T) {
	s, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	got, err := s.Get("workers.count")
	require.NoError(t, err)
	assert.Equal(t, "4", got)

	_, err = s.Get("no.such.key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid keys")

	kvs := s.List()
	require.NotEmpty(t, kvs)
	keys := make(map[string]bool, len(kvs))
	for _, kv := range kvs {
		keys[kv.Key] = true
	}
	for _, want := range []string{
		"workers.count", "workers.max_attempts", "chunking.size",
		"chunking.overlap", "cache.enabled", "cache.ttl", "cache.compress",
		"vector.dimensions", "hybrid.default_method", "hybrid.alpha",
		"hybrid.rrf_k", "hybrid.consensus_boost", "timeouts.base",
		"timeouts.per_page", "paths.registry", "paths.queue", "paths.cache",
		"paths.vector", "paths.keyword", "paths.fingerprint", "paths.intent_log",
	} {
		assert.True(t, keys[want], "missing key %s", want)
	}
}

func TestConfigStore_SetRejectsBadValues(t *testing.T) {
	s, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Set("workers.count", "not-a-number"))
	assert.Error(t, s.Set("cache.enabled", "maybe"))
	assert.Error(t, s.Set("cache.ttl", "fortnight"))
	assert.Error(t, s.Set("unknown.key", "1"))
}

func TestConfigStore_Reset(t *testing.T) {
	dir := t.TempDir()
	s, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("workers.count", "16"))
	require.NoError(t, s.Reset())

	assert.Equal(t, 4, s.Config().Workers.Count)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "count = 4")
}
