package interfaces

import (
	"context"

	"aster-trading-bot/internal/types"
)

type Decider interface {
	Decide(ctx context.Context, symbol string, position *types.Position, contextData map[string]any) (types.Decision, error)
}
