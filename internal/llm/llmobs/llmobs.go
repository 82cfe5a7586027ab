package llmobs

import (
	"context"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/trace"
	"aster-trading-bot/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

// Compile-time interface check
var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{
		decider: decider,
	}
}

// Decide makes a trading decision with observability
func (od *observableDecider) Decide(
	ctx context.Context,
	symbol string,
	position *types.Position,
	contextData map[string]any,
) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Decide")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting trading decision",
		"symbol", symbol,
		"has_position", position != nil,
	)

	decision, err := od.decider.Decide(ctx, symbol, position, contextData)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get trading decision", err,
			"symbol", symbol,
		)
		return types.Decision{}, err
	}

	logger.DebugSkip(ctx, 1, "Trading decision received",
		"symbol", symbol,
		"action", decision.Action,
		"confidence", decision.Confidence,
	)
	return decision, nil
}
