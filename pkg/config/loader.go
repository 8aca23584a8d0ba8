package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the on-disk deliberation.yaml structure. Zero-value
// fields are left unset so mergo can overlay them onto Default() without
// clobbering built-in values.
type yamlConfig struct {
	Consensus  *ConsensusConfig         `yaml:"consensus"`
	OpenRouter *OpenRouterConfig        `yaml:"openrouter"`
	Agents     map[string]AgentSettings `yaml:"agents"`
}

// Initialize loads, merges, and validates configuration from configDir.
//
// Steps:
//  1. Read deliberation.yaml from configDir (missing file is not an error —
//     the built-in Default() bundle is used as-is).
//  2. Expand ${VAR} / $VAR environment references.
//  3. Parse YAML into the typed overlay.
//  4. Merge the overlay onto Default() (overlay wins field-by-field).
//  5. Validate.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := Default()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "deliberation.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("no deliberation.yaml found, using built-in defaults", "path", path)
			if verr := validate(cfg); verr != nil {
				return nil, fmt.Errorf("%w: %w", ErrValidationFailed, verr)
			}
			return cfg, nil
		}
		return nil, &LoadError{File: path, Err: err}
	}

	data = ExpandEnv(data)

	var overlay yamlConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("%w: %w", ErrInvalidYAML, err)}
	}

	if overlay.Consensus != nil {
		if err := mergo.Merge(&cfg.Consensus, *overlay.Consensus, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging consensus config: %w", err)
		}
	}
	if overlay.OpenRouter != nil {
		if err := mergo.Merge(&cfg.OpenRouter, *overlay.OpenRouter, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging openrouter config: %w", err)
		}
	}
	for role, settings := range overlay.Agents {
		cfg.Agents[role] = settings
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"discussion_rounds", cfg.Consensus.DiscussionRounds,
		"agents_configured", len(cfg.Agents))
	return cfg, nil
}

// validate checks invariants on the merged configuration.
func validate(cfg *Config) error {
	if cfg.Consensus.DiscussionRounds < 1 {
		return NewValidationError("consensus", "discussion_rounds",
			fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if cfg.Consensus.SummaryIntervalSeconds < 1 {
		return NewValidationError("consensus", "summary_interval_seconds",
			fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if cfg.OpenRouter.RequestsPerMinute < 1 {
		return NewValidationError("openrouter", "requests_per_minute",
			fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	for role, settings := range cfg.Agents {
		if settings.MaxTokens < 0 {
			return NewValidationError("agents."+role, "max_tokens",
				fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
		}
	}
	return nil
}
