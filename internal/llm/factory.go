package llm

import (
	"context"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/llm/llmobs"
	"aster-trading-bot/internal/llm/noop"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/store"
)

// New selects the configured decider provider and wraps it with the
// observability middleware. Unknown providers fall back to noop.
func New(cfg *store.Config) interfaces.Decider {
	var decider interfaces.Decider
	switch cfg.Decider.Provider {
	case "", "noop":
		decider = noop.NewNoopDecider()
	default:
		logger.Warn(context.Background(), "Unknown decider provider, falling back to noop",
			"provider", cfg.Decider.Provider,
		)
		decider = noop.NewNoopDecider()
	}
	return llmobs.Wrap(decider)
}
