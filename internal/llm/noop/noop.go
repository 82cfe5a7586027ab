package noop

import (
	"context"

	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/types"
)

// NoopDecider is a fallback decider used when no LLM provider is configured
type NoopDecider struct{}

// NewNoopDecider returns a new instance that always decides HOLD
func NewNoopDecider() *NoopDecider {
	return &NoopDecider{}
}

// Decide implements the Decider interface. It always returns HOLD with 0 confidence
func (d *NoopDecider) Decide(ctx context.Context, symbol string, position *types.Position, contextData map[string]any) (types.Decision, error) {
	logger.Debug(ctx, "Noop decider called - always returns HOLD", "symbol", symbol)
	return types.Decision{
		Action:     "HOLD",
		Reason:     "noop_decider_fallback",
		Confidence: 0.0,
	}, nil
}
