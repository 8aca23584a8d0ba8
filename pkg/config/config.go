// Package config loads and exposes the typed configuration bundle consumed
// by the discussion engine. The engine never reads YAML or the environment
// directly — it is handed a *Config produced by Initialize.
package config

import "time"

// ConsensusConfig holds discussion-engine-wide timing and budget settings.
type ConsensusConfig struct {
	// DiscussionRounds feeds max_rounds; hard_cap_seconds = DiscussionRounds * 10.
	DiscussionRounds int `yaml:"discussion_rounds"`

	// SpecialistTimeoutSeconds is the outer wall-clock cap for external
	// observers awaiting completion. Not enforced by the engine itself.
	SpecialistTimeoutSeconds int `yaml:"specialist_timeout_seconds"`

	// SummaryIntervalSeconds is the SummaryLoop cadence.
	SummaryIntervalSeconds int `yaml:"summary_interval_seconds"`

	// TickIntervalSeconds is the deliberator worker loop cadence.
	TickIntervalSeconds float64 `yaml:"tick_interval_seconds"`
}

// HardCap returns the hard wall-clock cap for one discussion run.
func (c ConsensusConfig) HardCap() time.Duration {
	return time.Duration(c.DiscussionRounds) * 10 * time.Second
}

// SummaryInterval returns SummaryIntervalSeconds as a Duration.
func (c ConsensusConfig) SummaryInterval() time.Duration {
	return time.Duration(c.SummaryIntervalSeconds) * time.Second
}

// TickInterval returns TickIntervalSeconds as a Duration.
func (c ConsensusConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds * float64(time.Second))
}

// OpenRouterConfig holds the rate-limit coordinator's provider parameters.
// Named after the original system's provider; the engine itself is
// provider-agnostic (see pkg/llm).
type OpenRouterConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

// AgentSettings holds per-role configuration loaded from agents.<role>.*.
type AgentSettings struct {
	SystemPromptFile string `yaml:"system_prompt_file,omitempty"`

	// MaxTokens caps generated tokens; 0 means provider default (unlimited).
	MaxTokens int `yaml:"max_tokens"`

	// MaxIterations is advisory; AdmissionPolicy pins the hard cap to 3
	// regardless of this value.
	MaxIterations int `yaml:"max_iterations"`
}

// Config is the umbrella configuration bundle handed to the engine.
type Config struct {
	configDir string

	Consensus  ConsensusConfig
	OpenRouter OpenRouterConfig

	// Agents maps role name (e.g. "Divergent") to its settings.
	Agents map[string]AgentSettings
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// AgentFor returns the settings for a role, or zero-value settings with
// ok=false when the role has no explicit configuration.
func (c *Config) AgentFor(role string) (AgentSettings, bool) {
	s, ok := c.Agents[role]
	return s, ok
}
