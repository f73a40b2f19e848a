package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from the standard search path:
//  1. $XDG_CONFIG_HOME/rfbcache/config.toml
//  2. ~/.config/rfbcache/config.toml
//
// If no file exists, returns DefaultConfig().
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	return DefaultConfig(), nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from an io.Reader, starting from
// DefaultConfig() so any field the file omits keeps its documented
// default (spec §6.2).
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultConfig returns the spec's documented defaults (§6.2).
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled:           true,
			MemoryMiB:         2048,
			MinRectSizePixels: 4096,
			MaxAge:            Duration{0},
		},
		Persistent: PersistentConfig{
			Enabled:    true,
			MemoryMiB:  2048,
			DiskMiB:    2 * 2048,
			ShardMiB:   64,
			Directory:  defaultPersistentDirectory(),
			Coordinate: true,
		},
		Hash: HashConfig{
			SampleAreaThreshold: 262144,
			SampleStride:        4,
		},
	}
}

// applyEnvOverrides lets a small set of environment variables override the
// loaded file, mirroring the teacher's env-override hook.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RFBCACHE_PERSISTENT_DIRECTORY"); v != "" {
		cfg.Persistent.Directory = v
	}
	if v := os.Getenv("RFBCACHE_DISABLE"); v == "1" {
		cfg.Cache.Enabled = false
		cfg.Persistent.Enabled = false
	}
}

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "rfbcache", "config.toml"))

	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "rfbcache", "config.toml"))
	}
	return paths
}

func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

func defaultPersistentDirectory() string {
	home, _ := os.UserHomeDir()
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "rfbcache", "persist")
}
