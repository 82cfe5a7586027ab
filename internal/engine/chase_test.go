package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"aster-trading-bot/internal/types"
)

func newTestChaser(gw *fakeGateway, maxAttempts int) *chaseExecutor {
	quotes := newQuoteSource(gw)
	precision := newPrecisionResolver(gw)
	return newChaseExecutor(gw, quotes, precision, &fakeClock{}, maxAttempts, time.Millisecond, time.Millisecond)
}

func TestChaseFillsAtStableQuote(t *testing.T) {
	gw := &fakeGateway{
		orderBookFn: staticBook(100.0, 100.1),
		exchangeInfoFn: func() (types.ExchangeInfo, error) {
			return btcExchangeInfo(), nil
		},
	}
	polls := 0
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		polls++
		if polls < 2 {
			return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusNew}, nil
		}
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusFilled, ExecutedQty: 0.5, AvgPrice: 100.0}, nil
	}

	c := newTestChaser(gw, 10)
	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 0.5)
	if err != nil {
		t.Fatalf("Expected chase to fill, got %v", err)
	}
	if fill.Quantity != 0.5 {
		t.Errorf("Expected fill quantity 0.5, got %v", fill.Quantity)
	}
	if fill.Price != 100.0 {
		t.Errorf("Expected fill price 100, got %v", fill.Price)
	}
	if len(gw.placedOrders) != 1 {
		t.Errorf("Expected exactly one order for a stable quote, got %d", len(gw.placedOrders))
	}
	if len(gw.cancelledIDs) != 0 {
		t.Errorf("Expected no cancels for a stable quote, got %d", len(gw.cancelledIDs))
	}
	placed := gw.placedOrders[0]
	if placed.Side != types.SideBuy || placed.Price != 100.0 {
		t.Errorf("Expected buy resting at best bid 100, got %+v", placed)
	}
	if placed.Type != types.OrderTypeLimit || placed.TimeInForce != types.TimeInForceGTC {
		t.Errorf("Expected GTC limit order, got %+v", placed)
	}
}

func TestChaseRepricesWhenQuoteMoves(t *testing.T) {
	bid := 100.00
	gw := &fakeGateway{
		exchangeInfoFn: func() (types.ExchangeInfo, error) {
			return types.ExchangeInfo{Symbols: []types.SymbolInfo{{
				Symbol: "BTCUSDT",
				Filters: []types.SymbolFilter{
					{FilterType: "PRICE_FILTER", TickSize: "0.01"},
					{FilterType: "LOT_SIZE", StepSize: "0.001"},
				},
			}}}, nil
		},
	}
	gw.orderBookFn = func(string, int) (types.OrderBook, error) {
		return types.OrderBook{
			Bids: []types.PriceLevel{{Price: bid, Size: 1}},
			Asks: []types.PriceLevel{{Price: bid + 0.05, Size: 1}},
		}, nil
	}
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		// Second order fills once it rests at the new price.
		if orderID == "ORD-2" {
			return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusFilled, ExecutedQty: 1.0, AvgPrice: 100.05}, nil
		}
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusCanceled}, nil
	}

	c := newTestChaser(gw, 10)

	// Move the bid after the first placement.
	placed := 0
	gw.placeOrderFn = func(req types.OrderReq) (types.OrderResp, error) {
		placed++
		if placed == 1 {
			bid = 100.05
		}
		return types.OrderResp{OrderID: gwOrderID(placed), Status: types.OrderStatusNew}, nil
	}

	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if err != nil {
		t.Fatalf("Expected chase to fill after reprice, got %v", err)
	}
	if fill.Price != 100.05 {
		t.Errorf("Expected fill at moved price 100.05, got %v", fill.Price)
	}

	if len(gw.placedOrders) != 2 {
		t.Fatalf("Expected two orders (original + reprice), got %d", len(gw.placedOrders))
	}
	if gw.placedOrders[0].Price != 100.00 || gw.placedOrders[1].Price != 100.05 {
		t.Errorf("Expected prices 100.00 then 100.05, got %v then %v",
			gw.placedOrders[0].Price, gw.placedOrders[1].Price)
	}

	// The first order must be cancelled before the second is placed.
	if len(gw.cancelledIDs) != 1 || gw.cancelledIDs[0] != "ORD-1" {
		t.Errorf("Expected ORD-1 cancelled exactly once, got %v", gw.cancelledIDs)
	}
}

func gwOrderID(n int) string {
	return map[int]string{1: "ORD-1", 2: "ORD-2", 3: "ORD-3"}[n]
}

func TestChaseCarriesResidualAfterPartialFill(t *testing.T) {
	bid := 100.00
	gw := &fakeGateway{
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	gw.orderBookFn = func(string, int) (types.OrderBook, error) {
		return types.OrderBook{
			Bids: []types.PriceLevel{{Price: bid, Size: 1}},
			Asks: []types.PriceLevel{{Price: bid + 0.1, Size: 1}},
		}, nil
	}
	placed := 0
	gw.placeOrderFn = func(req types.OrderReq) (types.OrderResp, error) {
		placed++
		if placed == 1 {
			bid = 100.10
		}
		return types.OrderResp{OrderID: gwOrderID(placed), Status: types.OrderStatusNew}, nil
	}
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		if orderID == "ORD-1" {
			// 0.4 executed before the cancel landed.
			return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusCanceled, ExecutedQty: 0.4, AvgPrice: 100.00}, nil
		}
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusFilled, ExecutedQty: 0.6, AvgPrice: 100.10}, nil
	}

	c := newTestChaser(gw, 10)
	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if err != nil {
		t.Fatalf("Expected chase to complete, got %v", err)
	}

	// The replacement must be for the residual only.
	if len(gw.placedOrders) != 2 {
		t.Fatalf("Expected two orders, got %d", len(gw.placedOrders))
	}
	if gw.placedOrders[1].Quantity != 0.6 {
		t.Errorf("Expected replacement for residual 0.6, got %v", gw.placedOrders[1].Quantity)
	}

	if fill.Quantity != 1.0 {
		t.Errorf("Expected total fill 1.0, got %v", fill.Quantity)
	}
	// Volume-weighted: 0.4*100.00 + 0.6*100.10 over 1.0.
	want := (0.4*100.00 + 0.6*100.10) / 1.0
	if diff := fill.Price - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected weighted average price %v, got %v", want, fill.Price)
	}
}

func TestChaseCancelFillRace(t *testing.T) {
	bid := 100.00
	gw := &fakeGateway{
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	gw.orderBookFn = func(string, int) (types.OrderBook, error) {
		return types.OrderBook{
			Bids: []types.PriceLevel{{Price: bid, Size: 1}},
			Asks: []types.PriceLevel{{Price: bid + 0.1, Size: 1}},
		}, nil
	}
	gw.placeOrderFn = func(req types.OrderReq) (types.OrderResp, error) {
		bid = 100.10
		return types.OrderResp{OrderID: "ORD-1", Status: types.OrderStatusNew}, nil
	}
	// Cancel is rejected because the order filled in the race window.
	gw.cancelOrderFn = func(symbol, orderID string) error {
		return errors.New("order does not exist")
	}
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusFilled, ExecutedQty: 1.0, AvgPrice: 100.00}, nil
	}

	c := newTestChaser(gw, 10)
	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if err != nil {
		t.Fatalf("Expected cancel/fill race to resolve as success, got %v", err)
	}
	if fill.Quantity != 1.0 {
		t.Errorf("Expected full fill from race resolution, got %v", fill.Quantity)
	}
	if len(gw.placedOrders) != 1 {
		t.Errorf("Expected no replacement after race fill, got %d orders", len(gw.placedOrders))
	}
}

func TestChaseExhaustsAttempts(t *testing.T) {
	gw := &fakeGateway{
		orderBookFn:    staticBook(100.0, 100.1),
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	// Never fills, never moves.
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusNew}, nil
	}

	c := newTestChaser(gw, 3)
	_, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if !errors.Is(err, types.ErrMaxAttempts) {
		t.Fatalf("Expected ErrMaxAttempts, got %v", err)
	}
	if !IsExhausted(err) {
		t.Error("Expected IsExhausted to report the failure")
	}

	// The resting order must not be left on the book.
	if len(gw.cancelledIDs) != 1 {
		t.Errorf("Expected best-effort cancel on exhaustion, got %v", gw.cancelledIDs)
	}
}

func TestChaseQuoteOutageConsumesAttempts(t *testing.T) {
	gw := &fakeGateway{
		orderBookFn: func(string, int) (types.OrderBook, error) {
			return types.OrderBook{}, errors.New("gateway down")
		},
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}

	c := newTestChaser(gw, 3)
	_, err := c.Chase(context.Background(), "BTCUSDT", types.SideSell, 1.0)
	if !errors.Is(err, types.ErrMaxAttempts) {
		t.Fatalf("Expected bounded failure on quote outage, got %v", err)
	}
	if len(gw.placedOrders) != 0 {
		t.Errorf("Expected no orders during quote outage, got %d", len(gw.placedOrders))
	}
}

func TestChaseSellRestsAtAsk(t *testing.T) {
	gw := &fakeGateway{
		orderBookFn:    staticBook(99.9, 100.1),
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusFilled, ExecutedQty: 1.0, AvgPrice: 100.1}, nil
	}

	c := newTestChaser(gw, 5)
	if _, err := c.Chase(context.Background(), "BTCUSDT", types.SideSell, 1.0); err != nil {
		t.Fatalf("Expected sell chase to fill, got %v", err)
	}
	if gw.placedOrders[0].Price != 100.1 {
		t.Errorf("Expected sell resting at best ask 100.1, got %v", gw.placedOrders[0].Price)
	}
}

func TestChaseExhaustionReportsPartialFill(t *testing.T) {
	bid := 100.00
	gw := &fakeGateway{
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	gw.orderBookFn = func(string, int) (types.OrderBook, error) {
		return types.OrderBook{
			Bids: []types.PriceLevel{{Price: bid, Size: 1}},
			Asks: []types.PriceLevel{{Price: bid + 0.1, Size: 1}},
		}, nil
	}
	placed := 0
	gw.placeOrderFn = func(req types.OrderReq) (types.OrderResp, error) {
		placed++
		if placed == 1 {
			bid = 100.10
		}
		return types.OrderResp{OrderID: gwOrderID(placed), Status: types.OrderStatusNew}, nil
	}
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		if orderID == "ORD-1" {
			// 0.4 executed before the cancel landed.
			return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusCanceled, ExecutedQty: 0.4, AvgPrice: 100.00}, nil
		}
		// The replacement never fills.
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusNew}, nil
	}

	c := newTestChaser(gw, 2)
	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if !errors.Is(err, types.ErrMaxAttempts) {
		t.Fatalf("Expected ErrMaxAttempts, got %v", err)
	}
	if fill == nil {
		t.Fatal("Expected the partial quantity reported alongside the error")
	}
	if fill.Quantity != 0.4 {
		t.Errorf("Expected partial fill 0.4, got %v", fill.Quantity)
	}
	if fill.Price != 100.00 {
		t.Errorf("Expected partial average price 100.00, got %v", fill.Price)
	}
	if len(gw.cancelledIDs) != 2 {
		t.Errorf("Expected both orders cancelled, got %v", gw.cancelledIDs)
	}
}

func TestChaseExhaustionAbsorbsLastOrderExecution(t *testing.T) {
	gw := &fakeGateway{
		orderBookFn:    staticBook(100.0, 100.1),
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	// The single resting order executes 0.3 before the final cancel lands.
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusCanceled, ExecutedQty: 0.3, AvgPrice: 100.0}, nil
	}

	c := newTestChaser(gw, 1)
	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if !errors.Is(err, types.ErrMaxAttempts) {
		t.Fatalf("Expected ErrMaxAttempts, got %v", err)
	}
	if fill == nil || fill.Quantity != 0.3 {
		t.Fatalf("Expected last order's 0.3 execution reported, got %+v", fill)
	}
}

func TestChaseExhaustionRaceFillSucceeds(t *testing.T) {
	gw := &fakeGateway{
		orderBookFn:    staticBook(100.0, 100.1),
		exchangeInfoFn: func() (types.ExchangeInfo, error) { return btcExchangeInfo(), nil },
	}
	// The order fills completely in the window between the last attempt and
	// the final cancel.
	gw.getOrderFn = func(symbol, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusFilled, ExecutedQty: 1.0, AvgPrice: 100.0}, nil
	}

	c := newTestChaser(gw, 1)
	fill, err := c.Chase(context.Background(), "BTCUSDT", types.SideBuy, 1.0)
	if err != nil {
		t.Fatalf("Expected race fill to count as success, got %v", err)
	}
	if fill.Quantity != 1.0 {
		t.Errorf("Expected full quantity 1.0, got %v", fill.Quantity)
	}
}
