package aster

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/types"
)

type Params struct {
	Mode         string
	BaseURL      string
	APIKey       string
	APISecret    string
	RecvWindowMs int
	Timeout      time.Duration
}

// Aster talks to an Aster (Binance-futures compatible) REST endpoint. In
// DRY_RUN mode no request leaves the process; orders fill instantly against
// a simulated book and positions are tracked in memory.
type Aster struct {
	p      Params
	client *resty.Client

	mu        sync.Mutex
	simOrders map[string]types.OrderStatus
	simPos    map[string]float64
	simPrice  map[string]float64
}

var _ interfaces.Gateway = (*Aster)(nil)

func New(p Params) *Aster {
	if p.RecvWindowMs <= 0 {
		p.RecvWindowMs = 5000
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(p.BaseURL).
		SetTimeout(p.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetRetryAfter(retryAfter).
		SetHeader("X-MBX-APIKEY", p.APIKey)

	return &Aster{
		p:         p,
		client:    client,
		simOrders: make(map[string]types.OrderStatus),
		simPos:    make(map[string]float64),
		simPrice:  make(map[string]float64),
	}
}

func (a *Aster) dryRun() bool { return a.p.Mode == "DRY_RUN" }

// retryAfter honors the exchange's Retry-After header on rate limits,
// falling back to the client's default backoff when it is absent.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil {
		return 0, nil
	}
	if s := resp.Header().Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, nil
		}
	}
	return 0, nil
}

// public performs an unsigned GET against a market-data endpoint.
func (a *Aster) public(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return checkResponse(path, resp)
}

// signed timestamps, signs, and sends an authenticated request. The
// signature covers the encoded query string including timestamp and
// recvWindow.
func (a *Aster) signed(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(a.p.RecvWindowMs))

	payload := params.Encode()
	params.Set("signature", sign(a.p.APISecret, payload))

	r := a.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params)
	if out != nil {
		r.SetResult(out)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return checkResponse(path, resp)
}

func checkResponse(path string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	var apiErr apiError
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil && apiErr.Msg != "" {
		return fmt.Errorf("%s: api error %d: %w", path, resp.StatusCode(), &apiErr)
	}
	return fmt.Errorf("%s: http %d: %s", path, resp.StatusCode(), resp.Body())
}

func (a *Aster) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	if a.dryRun() {
		return a.simOrderBook(symbol), nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	var raw depthResponse
	if err := a.public(ctx, "/fapi/v1/depth", params, &raw); err != nil {
		return types.OrderBook{}, err
	}

	return types.OrderBook{
		Bids: parseLevels(raw.Bids),
		Asks: parseLevels(raw.Asks),
	}, nil
}

func parseLevels(raw [][]string) []types.PriceLevel {
	levels := make([]types.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		levels = append(levels, types.PriceLevel{
			Price: parseF(pair[0]),
			Size:  parseF(pair[1]),
		})
	}
	return levels
}

func (a *Aster) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = "x-" + uuid.NewString()
	}

	if a.dryRun() {
		return a.simPlaceOrder(ctx, req), nil
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	params.Set("newClientOrderId", req.ClientOrderID)
	if req.Type == types.OrderTypeLimit {
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
		tif := req.TimeInForce
		if tif == "" {
			tif = types.TimeInForceGTC
		}
		params.Set("timeInForce", tif)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	var ack orderAck
	if err := a.signed(ctx, resty.MethodPost, "/fapi/v1/order", params, &ack); err != nil {
		return types.OrderResp{}, err
	}

	return types.OrderResp{
		OrderID:       strconv.FormatInt(ack.OrderID, 10),
		ClientOrderID: ack.ClientOrderID,
		Status:        ack.Status,
	}, nil
}

func (a *Aster) GetOrder(ctx context.Context, symbol, orderID string) (types.OrderStatus, error) {
	if a.dryRun() {
		return a.simGetOrder(orderID)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var ack orderAck
	if err := a.signed(ctx, resty.MethodGet, "/fapi/v1/order", params, &ack); err != nil {
		return types.OrderStatus{}, err
	}

	return types.OrderStatus{
		OrderID:     strconv.FormatInt(ack.OrderID, 10),
		Status:      ack.Status,
		ExecutedQty: parseF(ack.ExecutedQty),
		AvgPrice:    parseF(ack.AvgPrice),
	}, nil
}

func (a *Aster) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if a.dryRun() {
		return a.simCancelOrder(orderID)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	return a.signed(ctx, resty.MethodDelete, "/fapi/v1/order", params, nil)
}

// Position returns the symbol's open position, nil when flat.
func (a *Aster) Position(ctx context.Context, symbol string) (*types.Position, error) {
	if a.dryRun() {
		return a.simPosition(symbol), nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var risks []positionRisk
	if err := a.signed(ctx, resty.MethodGet, "/fapi/v2/positionRisk", params, &risks); err != nil {
		return nil, err
	}

	for _, r := range risks {
		if r.Symbol != symbol {
			continue
		}
		amt := parseF(r.PositionAmt)
		if amt == 0 {
			return nil, nil
		}
		return &types.Position{
			Symbol:        r.Symbol,
			Quantity:      amt,
			EntryPrice:    parseF(r.EntryPrice),
			MarkPrice:     parseF(r.MarkPrice),
			UnrealizedPnL: parseF(r.UnrealizedProfit),
		}, nil
	}
	return nil, nil
}

func (a *Aster) ChangeLeverage(ctx context.Context, symbol string, leverage int) error {
	if a.dryRun() {
		return nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	var ack leverageAck
	return a.signed(ctx, resty.MethodPost, "/fapi/v1/leverage", params, &ack)
}

func (a *Aster) ExchangeInfo(ctx context.Context) (types.ExchangeInfo, error) {
	if a.dryRun() {
		return types.ExchangeInfo{}, nil
	}

	var raw exchangeInfoResponse
	if err := a.public(ctx, "/fapi/v1/exchangeInfo", nil, &raw); err != nil {
		return types.ExchangeInfo{}, err
	}

	info := types.ExchangeInfo{Symbols: make([]types.SymbolInfo, 0, len(raw.Symbols))}
	for _, s := range raw.Symbols {
		si := types.SymbolInfo{Symbol: s.Symbol, Filters: make([]types.SymbolFilter, 0, len(s.Filters))}
		for _, f := range s.Filters {
			si.Filters = append(si.Filters, types.SymbolFilter{
				FilterType: f.FilterType,
				TickSize:   f.TickSize,
				StepSize:   f.StepSize,
			})
		}
		info.Symbols = append(info.Symbols, si)
	}
	return info, nil
}

func (a *Aster) AccountBalance(ctx context.Context) (types.AccountBalance, error) {
	if a.dryRun() {
		return types.AccountBalance{Available: 10000, TotalEquity: 10000}, nil
	}

	var acct accountInfo
	if err := a.signed(ctx, resty.MethodGet, "/fapi/v2/account", nil, &acct); err != nil {
		return types.AccountBalance{}, err
	}

	return types.AccountBalance{
		Available:      parseF(acct.AvailableBalance),
		TotalEquity:    parseF(acct.TotalMarginBalance),
		PositionMargin: parseF(acct.TotalPositionMargin),
		UnrealizedPnL:  parseF(acct.TotalUnrealizedProfit),
	}, nil
}

func parseF(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// --- dry-run simulation ---

func (a *Aster) simOrderBook(symbol string) types.OrderBook {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.simPrice[symbol]
	if !ok {
		p = 1000 + rand.Float64()*100
	}
	p += (rand.Float64() - 0.5) * 2
	a.simPrice[symbol] = p

	spread := p * 0.0002
	return types.OrderBook{
		Bids: []types.PriceLevel{{Price: p - spread/2, Size: rand.Float64() * 10}},
		Asks: []types.PriceLevel{{Price: p + spread/2, Size: rand.Float64() * 10}},
	}
}

func (a *Aster) simPlaceOrder(ctx context.Context, req types.OrderReq) types.OrderResp {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := fmt.Sprintf("SIM-%d", time.Now().UnixNano())
	price := req.Price
	if price == 0 {
		price = a.simPrice[req.Symbol]
	}

	delta := req.Quantity
	if req.Side == types.SideSell {
		delta = -delta
	}
	if req.ReduceOnly {
		// A reduce-only order can bring the position to zero at most, never
		// flip its sign.
		current := a.simPos[req.Symbol]
		switch {
		case current > 0 && delta < -current:
			delta = -current
		case current < 0 && delta > -current:
			delta = -current
		case current == 0 || (current > 0) == (delta > 0):
			delta = 0
		}
	}
	a.simPos[req.Symbol] += delta

	// Simulated orders fill immediately at the submitted price.
	a.simOrders[id] = types.OrderStatus{
		OrderID:     id,
		Status:      types.OrderStatusFilled,
		ExecutedQty: math.Abs(delta),
		AvgPrice:    price,
	}

	logger.Debug(ctx, "Simulated order fill",
		"symbol", req.Symbol,
		"side", req.Side,
		"quantity", req.Quantity,
		"price", price,
		"order_id", id,
	)
	return types.OrderResp{
		OrderID:       id,
		ClientOrderID: req.ClientOrderID,
		Status:        types.OrderStatusFilled,
	}
}

func (a *Aster) simGetOrder(orderID string) (types.OrderStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.simOrders[orderID]
	if !ok {
		return types.OrderStatus{}, fmt.Errorf("unknown simulated order %s", orderID)
	}
	return st, nil
}

func (a *Aster) simCancelOrder(orderID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.simOrders[orderID]
	if !ok {
		return fmt.Errorf("unknown simulated order %s", orderID)
	}
	if st.Status == types.OrderStatusFilled {
		return fmt.Errorf("order %s already filled", orderID)
	}
	st.Status = types.OrderStatusCanceled
	a.simOrders[orderID] = st
	return nil
}

func (a *Aster) simPosition(symbol string) *types.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	qty := a.simPos[symbol]
	if qty == 0 {
		return nil
	}
	mark := a.simPrice[symbol]
	if mark == 0 {
		mark = 1000
	}
	return &types.Position{
		Symbol:    symbol,
		Quantity:  qty,
		MarkPrice: mark,
	}
}
