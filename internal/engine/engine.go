package engine

import (
	"context"
	"fmt"
	"time"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/store"
	"aster-trading-bot/internal/tradelog"
	"aster-trading-bot/internal/types"
)

// Engine is the execution core: it owns precision resolution, sizing, the
// chase loop, and the chunked open/close planners, all wired to one gateway.
type Engine struct {
	cfg   *store.Config
	gw    interfaces.Gateway
	clock interfaces.Clock

	precision *precisionResolver
	quotes    *quoteSource
	sizer     *positionSizer
	chaser    *chaseExecutor
	chunks    *chunkPlanner
	closer    *positionCloser
}

var _ interfaces.Executor = (*Engine)(nil)

func newEngine(cfg *store.Config, gw interfaces.Gateway, clock interfaces.Clock) *Engine {
	precision := newPrecisionResolver(gw)
	quotes := newQuoteSource(gw)
	pollInterval := time.Duration(cfg.Chase.PollIntervalMs) * time.Millisecond
	cancelSettle := time.Duration(cfg.Chase.CancelSettleMs) * time.Millisecond
	interChunk := time.Duration(cfg.Close.InterChunkDelayMs) * time.Millisecond

	return &Engine{
		cfg:       cfg,
		gw:        gw,
		clock:     clock,
		precision: precision,
		quotes:    quotes,
		sizer:     newPositionSizer(quotes, precision, cfg.Trading.MinNotional),
		chaser:    newChaseExecutor(gw, quotes, precision, clock, cfg.Chase.MaxAttempts, pollInterval, cancelSettle),
		chunks:    newChunkPlanner(clock, interChunk),
		closer:    newPositionCloser(gw, precision, clock, cfg.Close.DustThreshold, cfg.Close.MaxChunks, interChunk),
	}
}

// MarketBuy opens or adds to a long position at market for notionalUSD of
// exposure.
func (e *Engine) MarketBuy(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	symbol = FormatSymbol(symbol)
	leverage := e.cfg.Trading.Leverage

	if err := e.gw.ChangeLeverage(ctx, symbol, leverage); err != nil {
		return types.OrderResp{}, fmt.Errorf("change leverage: %w", err)
	}

	sz, err := e.sizer.Size(ctx, symbol, notionalUSD, leverage)
	if err != nil {
		return types.OrderResp{}, err
	}

	logger.Info(ctx, "Market buy",
		"symbol", symbol,
		"quantity", sz.Quantity,
		"price", sz.Price,
		"notional", notionalUSD,
		"margin", sz.Margin,
		"leverage", leverage,
	)
	resp, err := e.gw.PlaceOrder(ctx, types.OrderReq{
		Symbol:   symbol,
		Side:     types.SideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: sz.Quantity,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place market buy", err, "symbol", symbol, "quantity", sz.Quantity)
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, symbol, string(types.SideBuy), sz.Quantity, sz.Price, resp.OrderID)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     string(types.SideBuy),
		Qty:      sz.Quantity,
		Price:    sz.Price,
		Notional: notionalUSD,
		Leverage: leverage,
		OrderID:  resp.OrderID,
		Reason:   "MARKET_BUY",
	})
	return resp, nil
}

// LimitBuy opens or adds to a long position by chasing the best bid.
func (e *Engine) LimitBuy(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	symbol = FormatSymbol(symbol)
	leverage := e.cfg.Trading.Leverage

	if err := e.gw.ChangeLeverage(ctx, symbol, leverage); err != nil {
		return types.OrderResp{}, fmt.Errorf("change leverage: %w", err)
	}

	sz, err := e.sizer.Size(ctx, symbol, notionalUSD, leverage)
	if err != nil {
		return types.OrderResp{}, err
	}

	logger.Info(ctx, "Limit buy, chasing best bid",
		"symbol", symbol,
		"quantity", sz.Quantity,
		"notional", notionalUSD,
		"margin", sz.Margin,
		"leverage", leverage,
	)
	fill, err := e.chaser.Chase(ctx, symbol, types.SideBuy, sz.Quantity)
	if err != nil {
		if fill != nil && fill.Quantity > 0 {
			e.recordPartialChase(ctx, symbol, fill, notionalUSD, leverage, "LIMIT_BUY_PARTIAL")
			return types.OrderResp{OrderID: fill.OrderID, Status: types.OrderStatusPartiallyFilled}, err
		}
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, symbol, string(types.SideBuy), fill.Quantity, fill.Price, fill.OrderID)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     string(types.SideBuy),
		Qty:      fill.Quantity,
		Price:    fill.Price,
		Notional: notionalUSD,
		Leverage: leverage,
		OrderID:  fill.OrderID,
		Reason:   "LIMIT_BUY_CHASE",
	})
	return types.OrderResp{OrderID: fill.OrderID, Status: types.OrderStatusFilled}, nil
}

// MarketSell closes an existing long (reduce-only) or, absent one, opens a
// short at market.
func (e *Engine) MarketSell(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	symbol = FormatSymbol(symbol)

	pos, err := e.gw.Position(ctx, symbol)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("fetch position: %w", err)
	}
	if pos.IsLong() {
		return e.reduceLong(ctx, symbol, notionalUSD, "MARKET_CLOSE_LONG")
	}
	return e.OpenShort(ctx, symbol, notionalUSD)
}

// LimitSell closes an existing long at market (immediate exit) or, absent
// one, opens a short by chasing the best ask.
func (e *Engine) LimitSell(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	symbol = FormatSymbol(symbol)

	pos, err := e.gw.Position(ctx, symbol)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("fetch position: %w", err)
	}
	if pos.IsLong() {
		// Exits take priority over price improvement.
		return e.reduceLong(ctx, symbol, notionalUSD, "MARKET_CLOSE_LONG")
	}

	leverage := e.cfg.Trading.Leverage
	sz, err := e.sizer.Size(ctx, symbol, notionalUSD, leverage)
	if err != nil {
		return types.OrderResp{}, err
	}

	logger.Info(ctx, "Limit sell, chasing best ask",
		"symbol", symbol,
		"quantity", sz.Quantity,
		"notional", notionalUSD,
		"margin", sz.Margin,
		"leverage", leverage,
	)
	fill, err := e.chaser.Chase(ctx, symbol, types.SideSell, sz.Quantity)
	if err != nil {
		if fill != nil && fill.Quantity > 0 {
			e.recordPartialChase(ctx, symbol, fill, notionalUSD, leverage, "LIMIT_SELL_PARTIAL")
			return types.OrderResp{OrderID: fill.OrderID, Status: types.OrderStatusPartiallyFilled}, err
		}
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, symbol, string(types.SideSell), fill.Quantity, fill.Price, fill.OrderID)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     string(types.SideSell),
		Qty:      fill.Quantity,
		Price:    fill.Price,
		Notional: notionalUSD,
		Leverage: leverage,
		OrderID:  fill.OrderID,
		Reason:   "LIMIT_SELL_CHASE",
	})
	return types.OrderResp{OrderID: fill.OrderID, Status: types.OrderStatusFilled}, nil
}

// OpenShort opens a short position at market for notionalUSD of exposure.
func (e *Engine) OpenShort(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	symbol = FormatSymbol(symbol)
	leverage := e.cfg.Trading.Leverage

	if err := e.gw.ChangeLeverage(ctx, symbol, leverage); err != nil {
		return types.OrderResp{}, fmt.Errorf("change leverage: %w", err)
	}

	sz, err := e.sizer.Size(ctx, symbol, notionalUSD, leverage)
	if err != nil {
		return types.OrderResp{}, err
	}

	logger.Info(ctx, "Opening short",
		"symbol", symbol,
		"quantity", sz.Quantity,
		"price", sz.Price,
		"notional", notionalUSD,
		"margin", sz.Margin,
		"leverage", leverage,
	)
	resp, err := e.gw.PlaceOrder(ctx, types.OrderReq{
		Symbol:   symbol,
		Side:     types.SideSell,
		Type:     types.OrderTypeMarket,
		Quantity: sz.Quantity,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open short", err, "symbol", symbol, "quantity", sz.Quantity)
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, symbol, string(types.SideSell), sz.Quantity, sz.Price, resp.OrderID)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     string(types.SideSell),
		Qty:      sz.Quantity,
		Price:    sz.Price,
		Notional: notionalUSD,
		Leverage: leverage,
		OrderID:  resp.OrderID,
		Reason:   "OPEN_SHORT",
	})
	return resp, nil
}

// recordPartialChase books the quantity an exhausted chase did fill so the
// position change is visible in the trade log even though the request as a
// whole failed.
func (e *Engine) recordPartialChase(ctx context.Context, symbol string, fill *types.Fill, notionalUSD float64, leverage int, reason string) {
	logger.Warn(ctx, "Chase exhausted, booking partial fill",
		"symbol", symbol,
		"side", fill.Side,
		"filled", fill.Quantity,
		"price", fill.Price,
	)
	logger.Trade(ctx, symbol, string(fill.Side), fill.Quantity, fill.Price, fill.OrderID)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:   symbol,
		Side:     string(fill.Side),
		Qty:      fill.Quantity,
		Price:    fill.Price,
		Notional: notionalUSD,
		Leverage: leverage,
		OrderID:  fill.OrderID,
		Reason:   reason,
	})
}

// reduceLong submits a reduce-only market sell for notionalUSD of the
// existing long. No minimum-notional check: a close must always be allowed
// through, however small.
func (e *Engine) reduceLong(ctx context.Context, symbol string, notionalUSD float64, reason string) (types.OrderResp, error) {
	quote, err := e.quotes.TopOfBook(ctx, symbol)
	if err != nil {
		return types.OrderResp{}, err
	}
	price := quote.Midpoint()
	if price <= 0 {
		return types.OrderResp{}, types.ErrQuoteUnavailable
	}

	spec := e.precision.Resolve(ctx, symbol)
	qty := quantize(notionalUSD/price, spec.QuantityDecimals)
	if qty <= 0 {
		return types.OrderResp{}, &types.SizeError{Symbol: symbol, Quantity: qty, Notional: notionalUSD}
	}

	logger.Info(ctx, "Closing long at market",
		"symbol", symbol,
		"quantity", qty,
		"notional", notionalUSD,
	)
	resp, err := e.gw.PlaceOrder(ctx, types.OrderReq{
		Symbol:     symbol,
		Side:       types.SideSell,
		Type:       types.OrderTypeMarket,
		Quantity:   qty,
		ReduceOnly: true,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to close long", err, "symbol", symbol, "quantity", qty)
		return types.OrderResp{}, err
	}

	logger.Trade(ctx, symbol, string(types.SideSell), qty, price, resp.OrderID)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:  symbol,
		Side:    string(types.SideSell),
		Qty:     qty,
		Price:   price,
		OrderID: resp.OrderID,
		Reason:  reason,
	})
	return resp, nil
}

// Entry acquires notionalUSD of long exposure, decomposed into chunks when
// the request exceeds the configured per-order ceiling. Chunks run strictly
// sequentially; the report says how many completed if one fails.
func (e *Engine) Entry(ctx context.Context, symbol string, notionalUSD float64) (types.ExecutionReport, error) {
	symbol = FormatSymbol(symbol)
	maxChunk := e.cfg.Trading.MaxUsdOrderSize

	placeOne := func(ctx context.Context, _ int, size float64) error {
		var err error
		if e.cfg.Trading.UseLimitOrders {
			_, err = e.LimitBuy(ctx, symbol, size)
		} else {
			_, err = e.MarketBuy(ctx, symbol, size)
		}
		return err
	}

	if maxChunk <= 0 || notionalUSD <= maxChunk {
		if err := placeOne(ctx, 0, notionalUSD); err != nil {
			return types.ExecutionReport{FailedAtChunk: 0}, err
		}
		return types.ExecutionReport{SucceededChunks: 1, FailedAtChunk: -1}, nil
	}

	plan := planChunks(notionalUSD, maxChunk)
	logger.Info(ctx, "Chunked entry",
		"symbol", symbol,
		"notional", notionalUSD,
		"chunks", plan.ChunkCount,
		"chunk_size", plan.ChunkSize,
		"use_limit", e.cfg.Trading.UseLimitOrders,
	)
	return e.chunks.execute(ctx, plan, placeOne)
}

// ClosePosition liquidates the symbol's entire position in chunks.
func (e *Engine) ClosePosition(ctx context.Context, symbol string) (types.CloseReport, error) {
	return e.closer.Close(ctx, FormatSymbol(symbol), e.cfg.Trading.MaxUsdOrderSize)
}

// PositionValueUSD returns the absolute USD exposure of the current
// position at mark price, zero when flat.
func (e *Engine) PositionValueUSD(ctx context.Context, symbol string) (float64, error) {
	pos, err := e.gw.Position(ctx, FormatSymbol(symbol))
	if err != nil {
		return 0, fmt.Errorf("fetch position: %w", err)
	}
	return pos.NotionalUSD(), nil
}

// AccountBalance reports futures account equity and margin usage.
func (e *Engine) AccountBalance(ctx context.Context) (types.AccountBalance, error) {
	return e.gw.AccountBalance(ctx)
}
