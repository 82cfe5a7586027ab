package engine

import (
	"aster-trading-bot/internal/engine/engineobs"
	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/store"
)

// New builds the execution engine over the given gateway and wraps it with
// the observability middleware.
func New(cfg *store.Config, gw interfaces.Gateway) interfaces.Executor {
	return engineobs.Wrap(newEngine(cfg, gw, realClock{}))
}
