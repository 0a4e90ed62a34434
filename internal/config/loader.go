package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PITCHELO_CONFIG is set
//  3. env (prefix PITCHELO_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PITCHELO_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PITCHELO_DATABASE_URL, PITCHELO_BATCH_SIZE, ...
	// Keys map to the koanf struct tags with underscores preserved.
	envProvider := env.Provider("PITCHELO_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "pitchelo_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: database_url must not be empty", ErrInvalidConfig)
	}
	if c.MaxGames <= 0 {
		return fmt.Errorf("%w: max_games must be > 0", ErrInvalidConfig)
	}
	if c.Blend < 0 || c.Blend > 1 {
		return fmt.Errorf("%w: blend must be in [0, 1]", ErrInvalidConfig)
	}
	switch c.ScalingPolicy {
	case "source", "participation", "margin":
	default:
		return fmt.Errorf("%w: unknown scaling_policy %q", ErrInvalidConfig, c.ScalingPolicy)
	}
	return nil
}
