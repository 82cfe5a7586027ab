package gatewayobs

import (
	"context"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/trace"
	"aster-trading-bot/internal/types"
)

// observableGateway wraps a Gateway with observability (logging & tracing)
type observableGateway struct {
	gw interfaces.Gateway
}

// Compile-time interface check
var _ interfaces.Gateway = (*observableGateway)(nil)

// Wrap wraps a gateway with observability middleware
func Wrap(gw interfaces.Gateway) interfaces.Gateway {
	return &observableGateway{
		gw: gw,
	}
}

func (og *observableGateway) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.OrderBook")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching order book", "symbol", symbol, "depth", depth)

	book, err := og.gw.OrderBook(ctx, symbol, depth)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order book", err, "symbol", symbol)
		return types.OrderBook{}, err
	}

	logger.DebugSkip(ctx, 1, "Order book fetched successfully",
		"symbol", symbol,
		"bids", len(book.Bids),
		"asks", len(book.Asks),
	)
	return book, nil
}

func (og *observableGateway) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", req.Side,
		"type", req.Type,
		"quantity", req.Quantity,
		"price", req.Price,
		"reduce_only", req.ReduceOnly,
	)

	resp, err := og.gw.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"quantity", req.Quantity,
		)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"symbol", req.Symbol,
		"order_id", resp.OrderID,
		"status", resp.Status,
	)
	return resp, nil
}

func (og *observableGateway) GetOrder(ctx context.Context, symbol, orderID string) (types.OrderStatus, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.GetOrder")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching order status", "symbol", symbol, "order_id", orderID)

	st, err := og.gw.GetOrder(ctx, symbol, orderID)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order status", err, "symbol", symbol, "order_id", orderID)
		return types.OrderStatus{}, err
	}

	logger.DebugSkip(ctx, 1, "Order status fetched",
		"symbol", symbol,
		"order_id", orderID,
		"status", st.Status,
		"executed_qty", st.ExecutedQty,
	)
	return st, nil
}

func (og *observableGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "gateway.CancelOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Cancelling order", "symbol", symbol, "order_id", orderID)

	if err := og.gw.CancelOrder(ctx, symbol, orderID); err != nil {
		logger.WarnSkip(ctx, 1, "Cancel failed", "symbol", symbol, "order_id", orderID, "error", err)
		return err
	}

	logger.InfoSkip(ctx, 1, "Order cancelled", "symbol", symbol, "order_id", orderID)
	return nil
}

func (og *observableGateway) Position(ctx context.Context, symbol string) (*types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.Position")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching position", "symbol", symbol)

	pos, err := og.gw.Position(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch position", err, "symbol", symbol)
		return nil, err
	}

	if pos == nil {
		logger.DebugSkip(ctx, 1, "No open position", "symbol", symbol)
	} else {
		logger.DebugSkip(ctx, 1, "Position fetched",
			"symbol", symbol,
			"quantity", pos.Quantity,
			"entry_price", pos.EntryPrice,
			"unrealized_pnl", pos.UnrealizedPnL,
		)
	}
	return pos, nil
}

func (og *observableGateway) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	ctx, span := trace.StartSpan(ctx, "gateway.ChangeLeverage")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Setting leverage", "symbol", symbol, "leverage", leverage)

	if err := og.gw.ChangeLeverage(ctx, symbol, leverage); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to set leverage", err, "symbol", symbol, "leverage", leverage)
		return err
	}
	return nil
}

func (og *observableGateway) ExchangeInfo(ctx context.Context) (types.ExchangeInfo, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.ExchangeInfo")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching exchange info")

	info, err := og.gw.ExchangeInfo(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch exchange info", err)
		return types.ExchangeInfo{}, err
	}

	logger.DebugSkip(ctx, 1, "Exchange info fetched", "symbols", len(info.Symbols))
	return info, nil
}

func (og *observableGateway) AccountBalance(ctx context.Context) (types.AccountBalance, error) {
	ctx, span := trace.StartSpan(ctx, "gateway.AccountBalance")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching account balance")

	bal, err := og.gw.AccountBalance(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account balance", err)
		return types.AccountBalance{}, err
	}

	logger.DebugSkip(ctx, 1, "Account balance fetched",
		"available", bal.Available,
		"total_equity", bal.TotalEquity,
	)
	return bal, nil
}
