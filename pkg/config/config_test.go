package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig("/tmp/omendb")
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadTunables(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"low bloom bits", func(c *Config) { c.KV.BloomBitsPerKey = 4 }},
		{"zero block cache", func(c *Config) { c.KV.BlockCacheMB = 0 }},
		{"zero cache capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"zero ef_construction", func(c *Config) { c.Vector.DefaultEfConstruction = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/tmp/omendb")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errs.BadInput, errs.KindOf(err))
		})
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "omendb.yaml")
	yaml := "data_dir: " + dir + "\nkv:\n  block_cache_mb: 512\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 512, cfg.KV.BlockCacheMB)
	// Untouched fields keep their default.
	assert.Equal(t, 10_000, cfg.Cache.Capacity)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/omendb.yaml")
	require.Error(t, err)
	assert.Equal(t, errs.StorageIo, errs.KindOf(err))
}
