// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/FocuswithJustin/NarrativeCues/core/characters"
	apperrors "github.com/FocuswithJustin/NarrativeCues/core/errors"
)

// Config holds every environment-driven setting. CLI flags override these
// per command.
type Config struct {
	LogLevel  string `env:"NARRATIVE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"NARRATIVE_LOG_FORMAT" envDefault:"json"`

	// DB is the SQLite file holding stored snapshots and cached analyzer results.
	DB string `env:"NARRATIVE_DB" envDefault:"narrative.db"`

	// Strategy is "lemma" or "surface".
	Strategy string `env:"NARRATIVE_MATCH_STRATEGY" envDefault:"lemma"`

	AnalyzerCommand  string        `env:"NARRATIVE_ANALYZER_CMD"`
	AnalyzerTimeout  time.Duration `env:"NARRATIVE_ANALYZER_TIMEOUT" envDefault:"60s"`
	AnalyzerRetries  int           `env:"NARRATIVE_ANALYZER_RETRIES" envDefault:"2"`
	// AnalyzerCacheTTL is how long analyzer results are reused; zero disables the cache.
	AnalyzerCacheTTL time.Duration `env:"NARRATIVE_ANALYZER_CACHE_TTL" envDefault:"10m"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that the env tags cannot express.
func (c Config) Validate() error {
	if _, err := ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.AnalyzerTimeout <= 0 {
		return apperrors.NewValidation("NARRATIVE_ANALYZER_TIMEOUT", "must be positive")
	}
	if c.AnalyzerRetries < 0 {
		return apperrors.NewValidation("NARRATIVE_ANALYZER_RETRIES", "must not be negative")
	}
	if c.AnalyzerCacheTTL < 0 {
		return apperrors.NewValidation("NARRATIVE_ANALYZER_CACHE_TTL", "must not be negative")
	}
	return nil
}

// AnalyzerArgv splits AnalyzerCommand on whitespace. It returns nil when no
// analyzer is configured.
func (c Config) AnalyzerArgv() []string {
	return strings.Fields(c.AnalyzerCommand)
}

// ParseStrategy maps "lemma" and "surface" to a matching strategy.
func ParseStrategy(s string) (characters.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lemma":
		return characters.StrategyLemma, nil
	case "surface":
		return characters.StrategySurface, nil
	default:
		return 0, apperrors.NewValidation("strategy", fmt.Sprintf("unknown strategy %q", s))
	}
}
