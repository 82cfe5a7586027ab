package engine

import (
	"context"
	"fmt"
	"time"

	"aster-trading-bot/internal/types"
)

// fakeClock records sleeps without blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// fakeGateway is a scriptable gateway. Each method delegates to its func
// field when set and records the call.
type fakeGateway struct {
	orderBookFn      func(symbol string, depth int) (types.OrderBook, error)
	placeOrderFn     func(req types.OrderReq) (types.OrderResp, error)
	getOrderFn       func(symbol, orderID string) (types.OrderStatus, error)
	cancelOrderFn    func(symbol, orderID string) error
	positionFn       func(symbol string) (*types.Position, error)
	changeLeverageFn func(symbol string, leverage int) error
	exchangeInfoFn   func() (types.ExchangeInfo, error)

	placedOrders  []types.OrderReq
	cancelledIDs  []string
	exchangeCalls int
}

func (g *fakeGateway) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	if g.orderBookFn != nil {
		return g.orderBookFn(symbol, depth)
	}
	return types.OrderBook{}, fmt.Errorf("no order book scripted for %s", symbol)
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	g.placedOrders = append(g.placedOrders, req)
	if g.placeOrderFn != nil {
		return g.placeOrderFn(req)
	}
	return types.OrderResp{
		OrderID: fmt.Sprintf("ORD-%d", len(g.placedOrders)),
		Status:  types.OrderStatusNew,
	}, nil
}

func (g *fakeGateway) GetOrder(ctx context.Context, symbol, orderID string) (types.OrderStatus, error) {
	if g.getOrderFn != nil {
		return g.getOrderFn(symbol, orderID)
	}
	return types.OrderStatus{OrderID: orderID, Status: types.OrderStatusNew}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	g.cancelledIDs = append(g.cancelledIDs, orderID)
	if g.cancelOrderFn != nil {
		return g.cancelOrderFn(symbol, orderID)
	}
	return nil
}

func (g *fakeGateway) Position(ctx context.Context, symbol string) (*types.Position, error) {
	if g.positionFn != nil {
		return g.positionFn(symbol)
	}
	return nil, nil
}

func (g *fakeGateway) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	if g.changeLeverageFn != nil {
		return g.changeLeverageFn(symbol, leverage)
	}
	return nil
}

func (g *fakeGateway) ExchangeInfo(ctx context.Context) (types.ExchangeInfo, error) {
	g.exchangeCalls++
	if g.exchangeInfoFn != nil {
		return g.exchangeInfoFn()
	}
	return types.ExchangeInfo{}, nil
}

func (g *fakeGateway) AccountBalance(ctx context.Context) (types.AccountBalance, error) {
	return types.AccountBalance{Available: 10000, TotalEquity: 10000}, nil
}

// staticBook scripts a fixed top of book.
func staticBook(bid, ask float64) func(string, int) (types.OrderBook, error) {
	return func(string, int) (types.OrderBook, error) {
		return types.OrderBook{
			Bids: []types.PriceLevel{{Price: bid, Size: 1}},
			Asks: []types.PriceLevel{{Price: ask, Size: 1}},
		}, nil
	}
}
