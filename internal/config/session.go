package config

import "time"

// SessionConfig configures the feedback-loop policy for one session.
type SessionConfig struct {
	// MaxRounds is the round budget; exceeding it without a final answer
	// fails the session.
	MaxRounds int `yaml:"max_rounds"`

	// MaxParseFailures is the consecutive-parse-failure budget.
	MaxParseFailures int `yaml:"max_parse_failures"`

	// Budget is the aggregate wall-clock limit for a whole session.
	Budget string `yaml:"budget"`

	// HistoryCharBudget bounds the rendered transcript fed back into
	// prompts; oldest non-essential turns are elided beyond it.
	HistoryCharBudget int `yaml:"history_char_budget"`

	// RecentTurnWindow is the number of most recent turns that always
	// survive truncation intact.
	RecentTurnWindow int `yaml:"recent_turn_window"`
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxRounds:         10,
		MaxParseFailures:  3,
		Budget:            "300s",
		HistoryCharBudget: 24000,
		RecentTurnWindow:  3,
	}
}

// GetBudget returns the session wall-clock budget as a duration.
func (c SessionConfig) GetBudget() time.Duration {
	return parseDuration(c.Budget, 300*time.Second)
}
