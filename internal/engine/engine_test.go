package engine

import (
	"context"
	"errors"
	"testing"

	"aster-trading-bot/internal/store"
	"aster-trading-bot/internal/types"
)

func newTestEngine(t *testing.T, gw *fakeGateway) *Engine {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	cfg := &store.Config{}
	cfg.Trading.Leverage = 5
	cfg.Trading.UsdSize = 25
	cfg.Trading.MaxUsdOrderSize = 10
	cfg.Trading.MinNotional = 5.0
	cfg.Chase.MaxAttempts = 5
	cfg.Chase.PollIntervalMs = 1
	cfg.Chase.CancelSettleMs = 1
	cfg.Close.DustThreshold = 1e-4
	cfg.Close.MaxChunks = 100
	cfg.Close.InterChunkDelayMs = 1

	return newEngine(cfg, gw, &fakeClock{})
}

func marketReadyGateway() *fakeGateway {
	gw := &fakeGateway{
		orderBookFn:    staticBook(99.0, 101.0), // midpoint 100
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	gw.placeOrderFn = func(req types.OrderReq) (types.OrderResp, error) {
		return types.OrderResp{OrderID: "ORD-1", Status: types.OrderStatusFilled}, nil
	}
	return gw
}

func TestMarketBuySetsLeverageAndSizes(t *testing.T) {
	gw := marketReadyGateway()
	leverageSet := 0
	gw.changeLeverageFn = func(symbol string, leverage int) error {
		leverageSet = leverage
		return nil
	}

	e := newTestEngine(t, gw)
	resp, err := e.MarketBuy(context.Background(), "btc", 25)
	if err != nil {
		t.Fatalf("Expected market buy to succeed, got %v", err)
	}
	if resp.OrderID == "" {
		t.Error("Expected an order ID")
	}
	if leverageSet != 5 {
		t.Errorf("Expected leverage set to 5 before the order, got %d", leverageSet)
	}

	if len(gw.placedOrders) != 1 {
		t.Fatalf("Expected one order, got %d", len(gw.placedOrders))
	}
	o := gw.placedOrders[0]
	if o.Symbol != "BTCUSDT" {
		t.Errorf("Expected canonical symbol BTCUSDT, got %s", o.Symbol)
	}
	if o.Type != types.OrderTypeMarket || o.Side != types.SideBuy {
		t.Errorf("Expected market buy, got %+v", o)
	}
	if o.Quantity != 0.25 {
		t.Errorf("Expected quantity 0.25 (25 USD at midpoint 100), got %v", o.Quantity)
	}
}

func TestMarketSellClosesLongReduceOnly(t *testing.T) {
	gw := marketReadyGateway()
	gw.positionFn = func(symbol string) (*types.Position, error) {
		return &types.Position{Symbol: symbol, Quantity: 0.5, MarkPrice: 100}, nil
	}

	e := newTestEngine(t, gw)
	if _, err := e.MarketSell(context.Background(), "BTC", 25); err != nil {
		t.Fatalf("Expected market sell to succeed, got %v", err)
	}

	o := gw.placedOrders[0]
	if !o.ReduceOnly {
		t.Error("Expected reduce-only close when a long exists")
	}
	if o.Side != types.SideSell || o.Type != types.OrderTypeMarket {
		t.Errorf("Expected market sell close, got %+v", o)
	}
}

func TestMarketSellOpensShortWhenFlat(t *testing.T) {
	gw := marketReadyGateway()

	e := newTestEngine(t, gw)
	if _, err := e.MarketSell(context.Background(), "BTC", 25); err != nil {
		t.Fatalf("Expected short entry to succeed, got %v", err)
	}

	o := gw.placedOrders[0]
	if o.ReduceOnly {
		t.Error("Expected a fresh short, not a reduce-only order")
	}
	if o.Side != types.SideSell {
		t.Errorf("Expected sell side, got %+v", o)
	}
}

func TestMarketSellSmallCloseBypassesMinimum(t *testing.T) {
	// Closing must always be allowed through, even under the entry minimum.
	gw := marketReadyGateway()
	gw.positionFn = func(symbol string) (*types.Position, error) {
		return &types.Position{Symbol: symbol, Quantity: 0.5, MarkPrice: 100}, nil
	}

	e := newTestEngine(t, gw)
	if _, err := e.MarketSell(context.Background(), "BTC", 2); err != nil {
		t.Fatalf("Expected small close to bypass min-notional, got %v", err)
	}
	if gw.placedOrders[0].Quantity != 0.02 {
		t.Errorf("Expected close quantity 0.02, got %v", gw.placedOrders[0].Quantity)
	}
}

func TestOpenShortRejectsBelowMinimum(t *testing.T) {
	gw := marketReadyGateway()

	e := newTestEngine(t, gw)
	_, err := e.OpenShort(context.Background(), "BTC", 1)
	if !types.IsTooSmall(err) {
		t.Fatalf("Expected min-notional rejection for a 1 USD short, got %v", err)
	}
	if len(gw.placedOrders) != 0 {
		t.Errorf("Expected no order after sizing rejection, got %d", len(gw.placedOrders))
	}
}

func TestLimitSellClosesLongAtMarket(t *testing.T) {
	gw := marketReadyGateway()
	gw.positionFn = func(symbol string) (*types.Position, error) {
		return &types.Position{Symbol: symbol, Quantity: 1.0, MarkPrice: 100}, nil
	}

	e := newTestEngine(t, gw)
	if _, err := e.LimitSell(context.Background(), "BTC", 50); err != nil {
		t.Fatalf("Expected limit sell with a long to close at market, got %v", err)
	}

	o := gw.placedOrders[0]
	if o.Type != types.OrderTypeMarket || !o.ReduceOnly {
		t.Errorf("Expected reduce-only market close, got %+v", o)
	}
}

func TestEntrySingleOrderUnderCap(t *testing.T) {
	gw := marketReadyGateway()

	e := newTestEngine(t, gw)
	report, err := e.Entry(context.Background(), "BTC", 8)
	if err != nil {
		t.Fatalf("Expected single-order entry, got %v", err)
	}
	if report.SucceededChunks != 1 || report.FailedAtChunk != -1 {
		t.Errorf("Expected one succeeded chunk, got %+v", report)
	}
	if len(gw.placedOrders) != 1 {
		t.Errorf("Expected one order, got %d", len(gw.placedOrders))
	}
}

func TestEntryChunksLargeNotional(t *testing.T) {
	gw := marketReadyGateway()

	e := newTestEngine(t, gw)
	// 23 USD with a 10 USD cap decomposes into 3 equal chunks.
	report, err := e.Entry(context.Background(), "BTC", 23)
	if err != nil {
		t.Fatalf("Expected chunked entry to succeed, got %v", err)
	}
	if report.SucceededChunks != 3 {
		t.Errorf("Expected 3 chunks, got %+v", report)
	}
	if len(gw.placedOrders) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(gw.placedOrders))
	}
	for _, o := range gw.placedOrders {
		if o.Type != types.OrderTypeMarket {
			t.Errorf("Expected market chunks by default, got %+v", o)
		}
	}
}

func TestPositionValueUSD(t *testing.T) {
	gw := marketReadyGateway()
	gw.positionFn = func(symbol string) (*types.Position, error) {
		return &types.Position{Symbol: symbol, Quantity: -0.5, MarkPrice: 200}, nil
	}

	e := newTestEngine(t, gw)
	v, err := e.PositionValueUSD(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Expected position value, got %v", err)
	}
	if v != 100 {
		t.Errorf("Expected 100 USD exposure for short 0.5 at 200, got %v", v)
	}
}

func TestPositionValueUSDFlat(t *testing.T) {
	gw := marketReadyGateway()

	e := newTestEngine(t, gw)
	v, err := e.PositionValueUSD(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Expected flat lookup to succeed, got %v", err)
	}
	if v != 0 {
		t.Errorf("Expected 0 exposure when flat, got %v", v)
	}
}

func TestAccountBalancePassthrough(t *testing.T) {
	gw := marketReadyGateway()

	e := newTestEngine(t, gw)
	bal, err := e.AccountBalance(context.Background())
	if err != nil {
		t.Fatalf("Expected balance, got %v", err)
	}
	if bal.Available != 10000 {
		t.Errorf("Expected gateway balance passed through, got %+v", bal)
	}
}

func TestLimitBuyBooksPartialOnExhaustion(t *testing.T) {
	gw := marketReadyGateway()
	gw.placeOrderFn = func(req types.OrderReq) (types.OrderResp, error) {
		return types.OrderResp{OrderID: "ORD-1", Status: types.OrderStatusNew}, nil
	}
	// 0.1 executes before the final cancel; the chase never completes.
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusCanceled, ExecutedQty: 0.1, AvgPrice: 99.0}, nil
	}

	e := newTestEngine(t, gw)
	resp, err := e.LimitBuy(context.Background(), "btc", 25)
	if !errors.Is(err, types.ErrMaxAttempts) {
		t.Fatalf("Expected ErrMaxAttempts, got %v", err)
	}
	if resp.Status != types.OrderStatusPartiallyFilled {
		t.Errorf("Expected partially filled response, got %+v", resp)
	}
	if resp.OrderID != "ORD-1" {
		t.Errorf("Expected the partial's order ID reported, got %q", resp.OrderID)
	}
}
