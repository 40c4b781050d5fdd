package agent

import (
	"time"

	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
)

// DefaultMaxTurns bounds the number of model calls in one run.
const DefaultMaxTurns = 10

// AgentOption configures optional runtime settings for Loop.
type AgentOption func(*loopSettings)

type loopSettings struct {
	logger          loggerpkg.Logger
	verbose         bool
	maxTurns        int
	modelTimeout    time.Duration
	toolTimeout     time.Duration
	toolConcurrency int
}

func defaultSettings() loopSettings {
	return loopSettings{
		logger:          loggerpkg.NopLogger{},
		maxTurns:        DefaultMaxTurns,
		toolConcurrency: 1,
	}
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) AgentOption {
	return func(s *loopSettings) {
		s.logger = loggerpkg.OrNop(l)
	}
}

// WithVerbose enables per-step debug logging.
func WithVerbose(v bool) AgentOption {
	return func(s *loopSettings) {
		s.verbose = v
	}
}

// WithMaxTurns sets the ceiling on model calls per run. Values below 1 become 1.
func WithMaxTurns(n int) AgentOption {
	return func(s *loopSettings) {
		if n <= 0 {
			n = 1
		}
		s.maxTurns = n
	}
}

// WithModelTimeout bounds each model call. Zero disables the bound.
func WithModelTimeout(d time.Duration) AgentOption {
	return func(s *loopSettings) {
		s.modelTimeout = d
	}
}

// WithToolTimeout bounds each tool call. Zero disables the bound.
func WithToolTimeout(d time.Duration) AgentOption {
	return func(s *loopSettings) {
		s.toolTimeout = d
	}
}

// WithToolConcurrency sets how many tool calls of one response may run at once.
func WithToolConcurrency(n int) AgentOption {
	return func(s *loopSettings) {
		if n <= 0 {
			n = 1
		}
		s.toolConcurrency = n
	}
}
