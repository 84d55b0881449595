package ttscache

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all speech cache configuration options.
type Config struct {
	// Cache bounds
	MaxCacheBytes int64 `env:"TTSCACHE_MAX_BYTES" envDefault:"104857600"`
	MaxEntries    int   `env:"TTSCACHE_MAX_ENTRIES" envDefault:"256"`

	// Generation settings
	GenerationTimeout time.Duration `env:"TTSCACHE_GENERATION_TIMEOUT" envDefault:"30s"`

	// GenerationRate limits generation starts per second. Zero disables
	// the limiter.
	GenerationRate float64 `env:"TTSCACHE_GENERATION_RATE" envDefault:"0"`

	// FallbackArtifactSize is charged for artifacts whose serialized size
	// cannot be measured.
	FallbackArtifactSize int64 `env:"TTSCACHE_FALLBACK_SIZE" envDefault:"4096"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxCacheBytes:        100 * 1024 * 1024, // 100MB
		MaxEntries:           256,
		GenerationTimeout:    30 * time.Second,
		GenerationRate:       0,
		FallbackArtifactSize: 4096,
	}
}

// ConfigFromEnv loads configuration from TTSCACHE_* environment variables.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return DefaultConfig(), fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxCacheBytes <= 0 {
		return fmt.Errorf("%w: max cache bytes must be positive, got %d", ErrInvalidConfig, c.MaxCacheBytes)
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: max entries must be positive, got %d", ErrInvalidConfig, c.MaxEntries)
	}
	if c.GenerationTimeout < 10*time.Millisecond {
		return fmt.Errorf("%w: generation timeout must be at least 10ms, got %v", ErrInvalidConfig, c.GenerationTimeout)
	}
	if c.GenerationRate < 0 {
		return fmt.Errorf("%w: generation rate cannot be negative, got %f", ErrInvalidConfig, c.GenerationRate)
	}
	if c.FallbackArtifactSize <= 0 {
		return fmt.Errorf("%w: fallback artifact size must be positive, got %d", ErrInvalidConfig, c.FallbackArtifactSize)
	}
	return nil
}
