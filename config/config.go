// Package config holds the typed configuration records the cache core
// consumes (spec §6.2), loaded from TOML via github.com/BurntSushi/toml.
package config

// Config is the root configuration record.
type Config struct {
	Cache      CacheConfig      `toml:"cache"`
	Persistent PersistentConfig `toml:"persistent"`
	Hash       HashConfig       `toml:"hash"`
}

// CacheConfig configures the server-side session cache (spec §6.2).
type CacheConfig struct {
	Enabled           bool     `toml:"enabled"`
	MemoryMiB         int      `toml:"memory_mib"`
	MinRectSizePixels int      `toml:"min_rect_size_pixels"`
	MaxAge            Duration `toml:"max_age"`
}

// PersistentConfig configures the viewer-side disk-backed cache and its
// multi-viewer coordinator (spec §6.2).
type PersistentConfig struct {
	Enabled     bool   `toml:"enabled"`
	MemoryMiB   int    `toml:"memory_mib"`
	DiskMiB     int    `toml:"disk_mib"`
	ShardMiB    int    `toml:"shard_mib"`
	Directory   string `toml:"directory"`
	Coordinate  bool   `toml:"coordinate"`
}

// HashConfig configures ContentHasher's sampling behavior (spec §6.2,
// §4.1).
type HashConfig struct {
	SampleAreaThreshold int `toml:"sample_area_threshold"`
	SampleStride        int `toml:"sample_stride"`
}

// MemoryBytes returns CacheConfig.MemoryMiB converted to bytes.
func (c CacheConfig) MemoryBytes() int64 { return int64(c.MemoryMiB) * 1024 * 1024 }

// MemoryBytes returns PersistentConfig.MemoryMiB converted to bytes.
func (p PersistentConfig) MemoryBytes() int64 { return int64(p.MemoryMiB) * 1024 * 1024 }

// DiskBytes returns PersistentConfig.DiskMiB converted to bytes.
func (p PersistentConfig) DiskBytes() int64 { return int64(p.DiskMiB) * 1024 * 1024 }

// ShardBytes returns PersistentConfig.ShardMiB converted to bytes.
func (p PersistentConfig) ShardBytes() int64 { return int64(p.ShardMiB) * 1024 * 1024 }
