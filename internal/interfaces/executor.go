package interfaces

import (
	"context"

	"aster-trading-bot/internal/types"
)

// Executor turns notional-USD requests into filled exchange orders.
type Executor interface {
	MarketBuy(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error)
	MarketSell(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error)
	LimitBuy(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error)
	LimitSell(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error)
	OpenShort(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error)
	Entry(ctx context.Context, symbol string, notionalUSD float64) (types.ExecutionReport, error)
	ClosePosition(ctx context.Context, symbol string) (types.CloseReport, error)
	PositionValueUSD(ctx context.Context, symbol string) (float64, error)
	AccountBalance(ctx context.Context) (types.AccountBalance, error)
}
