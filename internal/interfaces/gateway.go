package interfaces

import (
	"context"

	"aster-trading-bot/internal/types"
)

// Gateway is the exchange-facing contract the execution engine consumes.
// Implementations own transport, authentication, and wire formats; the engine
// only sees validated domain values.
type Gateway interface {
	OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	GetOrder(ctx context.Context, symbol, orderID string) (types.OrderStatus, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	Position(ctx context.Context, symbol string) (*types.Position, error)
	ChangeLeverage(ctx context.Context, symbol string, leverage int) error
	ExchangeInfo(ctx context.Context) (types.ExchangeInfo, error)
	AccountBalance(ctx context.Context) (types.AccountBalance, error)
}
