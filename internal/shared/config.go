package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	gap "github.com/muesli/go-app-paths"
)

//go:embed config.example.toml
var exampleConf []byte

const megabyte = 1024 * 1024

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
	API      APIConfig      `toml:"api"`
	Player   PlayerConfig   `toml:"player"`
	Prefetch PrefetchConfig `toml:"prefetch"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// CacheConfig contains settings for the music, lyric and local-file caches.
type CacheConfig struct {
	Root           string        `toml:"root" env:"CLOUDPLAY_CACHE_ROOT"`
	SizeMB         int64         `toml:"size_mb" env:"CLOUDPLAY_CACHE_SIZE_MB"`
	LyricSizeMB    int64         `toml:"lyric_size_mb" env:"CLOUDPLAY_CACHE_LYRIC_SIZE_MB"`
	LocalDirectory string        `toml:"local_directory" env:"CLOUDPLAY_CACHE_LOCAL_DIRECTORY"`
	MemoTTL        time.Duration `toml:"memo_ttl" env:"CLOUDPLAY_CACHE_MEMO_TTL"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"CLOUDPLAY_DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// APIConfig contains settings for the remote music API proxy.
type APIConfig struct {
	BaseURL   string  `toml:"base_url" env:"CLOUDPLAY_API_BASE_URL"`
	UserID    int64   `toml:"user_id" env:"CLOUDPLAY_API_USER_ID"`
	RateLimit float64 `toml:"rate_limit" env:"CLOUDPLAY_API_RATE_LIMIT"`
	Quality   int     `toml:"quality" env:"CLOUDPLAY_API_QUALITY"`
}

// PlayerConfig selects the external playback program.
type PlayerConfig struct {
	Command string   `toml:"command" env:"CLOUDPLAY_PLAYER_COMMAND"`
	Args    []string `toml:"args"`
	Volume  int      `toml:"volume" env:"CLOUDPLAY_PLAYER_VOLUME"`
}

// PrefetchConfig controls background population of upcoming queue items.
type PrefetchConfig struct {
	Count   int `toml:"count" env:"CLOUDPLAY_PREFETCH_COUNT"`
	Workers int `toml:"workers" env:"CLOUDPLAY_PREFETCH_WORKERS"`
}

// MetricsConfig contains the optional prometheus listener address.
type MetricsConfig struct {
	Addr string `toml:"addr" env:"CLOUDPLAY_METRICS_ADDR"`
}

// MusicBudget returns the music cache budget in bytes.
func (c CacheConfig) MusicBudget() int64 { return c.SizeMB * megabyte }

// LyricBudget returns the lyric cache budget in bytes; zero means unbounded.
func (c CacheConfig) LyricBudget() int64 { return c.LyricSizeMB * megabyte }

// CacheRoot returns the configured cache root, falling back to the per-user cache directory.
func (c CacheConfig) CacheRoot() (string, error) {
	if c.Root != "" {
		return c.Root, nil
	}

	dir, err := gap.NewScope(gap.User, "cloudplay").CacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve user cache dir: %v", ErrInvalidConfig, err)
	}
	return dir, nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults, and CLOUDPLAY_* environment variables override both.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports configuration values the caches cannot work with.
func (c *Config) Validate() error {
	if c.Cache.SizeMB <= 0 {
		return fmt.Errorf("%w: cache.size_mb must be positive", ErrInvalidConfig)
	}
	if c.Cache.LyricSizeMB < 0 {
		return fmt.Errorf("%w: cache.lyric_size_mb must not be negative", ErrInvalidConfig)
	}
	if c.Cache.MemoTTL < 0 {
		return fmt.Errorf("%w: cache.memo_ttl must not be negative", ErrInvalidConfig)
	}
	if c.Cache.LocalDirectory != "" {
		info, err := os.Stat(c.Cache.LocalDirectory)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: cache.local_directory %q is not a directory", ErrInvalidConfig, c.Cache.LocalDirectory)
		}
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config fields from CLOUDPLAY_* environment variables.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
