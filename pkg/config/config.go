// Package config loads and validates OmenDB's engine-wide tunables from a
// YAML file, the same format the teacher codebase's manifest loader uses.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/omendb/omendb/pkg/errs"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable named across spec.md's component sections.
// Fields are grouped by the subsystem they configure.
type Config struct {
	DataDir string `yaml:"data_dir"`

	KV       KVConfig       `yaml:"kv"`
	WAL      WALConfig      `yaml:"wal"`
	Cache    CacheConfig    `yaml:"cache"`
	Txn      TxnConfig      `yaml:"txn"`
	Vector   VectorConfig   `yaml:"vector"`
}

// KVConfig configures the LSM-backed KVStore (spec.md §4.1).
type KVConfig struct {
	BlockCacheMB    int `yaml:"block_cache_mb"`
	IndexCacheMB    int `yaml:"index_cache_mb"`
	BlockSizeKB     int `yaml:"block_size_kb"`
	WriteBufferMB   int `yaml:"write_buffer_mb"`
	BloomBitsPerKey int `yaml:"bloom_bits_per_key"`
	NumCompactors   int `yaml:"num_compactors"`
}

// WALConfig configures append-only log durability (spec.md §4.2).
type WALConfig struct {
	SegmentSizeBytes int64 `yaml:"segment_size_bytes"`
	SyncOnCommit     bool  `yaml:"sync_on_commit"`
}

// CacheConfig configures the RowCache (spec.md §4.3).
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// TxnConfig configures the MVCC transaction manager (spec.md §4.6).
type TxnConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	GCInterval     time.Duration `yaml:"gc_interval"`
}

// VectorConfig configures default HNSW/quantization parameters (spec.md §4.7-4.8)
// applied when CreateVectorIndex is called without explicit overrides.
type VectorConfig struct {
	DefaultM              int `yaml:"default_m"`
	DefaultEfConstruction int `yaml:"default_ef_construction"`
	DefaultEfSearch       int `yaml:"default_ef_search"`
	DefaultExpansionFactor int `yaml:"default_expansion_factor"`
}

// DefaultConfig returns the spec's documented defaults: bloom filter >= 10
// bits/key, block cache >= 256MB, 16KB blocks, 256MB write buffer,
// RowCache capacity 10000, ef_construction >= 200.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		KV: KVConfig{
			BlockCacheMB:    256,
			IndexCacheMB:    64,
			BlockSizeKB:     16,
			WriteBufferMB:   256,
			BloomBitsPerKey: 10,
			NumCompactors:   4,
		},
		WAL: WALConfig{
			SegmentSizeBytes: 64 << 20,
			SyncOnCommit:     true,
		},
		Cache: CacheConfig{
			Capacity: 10_000,
		},
		Txn: TxnConfig{
			DefaultTimeout: 30 * time.Second,
			GCInterval:     10 * time.Second,
		},
		Vector: VectorConfig{
			DefaultM:               32,
			DefaultEfConstruction:  200,
			DefaultEfSearch:        100,
			DefaultExpansionFactor: 200,
		},
	}
}

// LoadConfig reads and validates a YAML config file, applying
// DefaultConfig("") first so any field the file omits keeps its default.
func LoadConfig(path string) (*Config, error) {
	const op = "config.LoadConfig"
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewStorageIo(op, err)
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errs.NewBadInput(op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects tunables that would violate spec.md's stated minimums.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	switch {
	case c.DataDir == "":
		return errs.NewBadInput(op, errors.New("data_dir must not be empty"))
	case c.KV.BloomBitsPerKey < 10:
		return errs.NewBadInput(op, errors.New("kv.bloom_bits_per_key must be >= 10"))
	case c.KV.BlockCacheMB < 1:
		return errs.NewBadInput(op, errors.New("kv.block_cache_mb must be > 0"))
	case c.Cache.Capacity < 1:
		return errs.NewBadInput(op, errors.New("cache.capacity must be > 0"))
	case c.Vector.DefaultEfConstruction < 1:
		return errs.NewBadInput(op, errors.New("vector.default_ef_construction must be > 0"))
	}
	return nil
}
