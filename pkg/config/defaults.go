package config

import "time"

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Consensus: ConsensusConfig{
			DiscussionRounds:         3,
			SpecialistTimeoutSeconds: 300,
			SummaryIntervalSeconds:   10,
			TickIntervalSeconds:      2,
		},
		OpenRouter: OpenRouterConfig{
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Agents: map[string]AgentSettings{},
	}
}
