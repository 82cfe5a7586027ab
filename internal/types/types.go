package types

// Side is the order side as the gateway expects it on the wire.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that reduces a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const TimeInForceGTC = "GTC"

// Order status values returned by the gateway.
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
)

// PrecisionSpec holds the decimal-place counts a symbol's orders must respect.
// Derived once from exchange tick size / step size and cached for the process
// lifetime.
type PrecisionSpec struct {
	PriceDecimals    int32
	QuantityDecimals int32
}

// Quote is a point-in-time top of book. Never cached; re-fetched before every
// pricing decision.
type Quote struct {
	Bid float64
	Ask float64
}

func (q Quote) Midpoint() float64 { return (q.Bid + q.Ask) / 2 }

type PriceLevel struct {
	Price float64
	Size  float64
}

type OrderBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// OrderReq is a fully quantized order ready for the gateway. Quantity and
// Price must already respect the symbol's PrecisionSpec.
type OrderReq struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64 // limit orders only
	TimeInForce   string  // limit orders only
	ReduceOnly    bool
	ClientOrderID string
}

type OrderResp struct {
	OrderID       string
	ClientOrderID string
	Status        string
}

// OrderStatus is the authoritative state of a resting order, including how
// much of it has executed so far.
type OrderStatus struct {
	OrderID     string
	Status      string
	ExecutedQty float64
	AvgPrice    float64
}

// Position as reported by the exchange. Quantity is signed: positive long,
// negative short. The engine only ever reads positions.
type Position struct {
	Symbol        string
	Quantity      float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
}

func (p *Position) IsLong() bool { return p != nil && p.Quantity > 0 }

// NotionalUSD is the absolute USD exposure at the current mark price.
func (p *Position) NotionalUSD() float64 {
	if p == nil {
		return 0
	}
	return abs(p.Quantity) * p.MarkPrice
}

type AccountBalance struct {
	Available      float64
	TotalEquity    float64
	PositionMargin float64
	UnrealizedPnL  float64
}

type SymbolFilter struct {
	FilterType string
	TickSize   string
	StepSize   string
}

type SymbolInfo struct {
	Symbol  string
	Filters []SymbolFilter
}

type ExchangeInfo struct {
	Symbols []SymbolInfo
}

// Sizing is the result of converting a notional request into an order
// quantity. Margin is informational; the exchange enforces the real check.
type Sizing struct {
	Quantity float64
	Price    float64
	Notional float64
	Margin   float64
}

// ChunkPlan splits a total into bounded sequential sub-orders.
type ChunkPlan struct {
	Total      float64
	ChunkCount int
	ChunkSize  float64
}

// ExecutionReport describes how far a chunked operation got. FailedAtChunk is
// -1 when every chunk succeeded.
type ExecutionReport struct {
	SucceededChunks int
	FailedAtChunk   int
}

// Fill is the terminal result of a successful chase.
type Fill struct {
	OrderID  string
	Symbol   string
	Side     Side
	Quantity float64
	Price    float64
}

// CloseReport summarizes a chunked position close.
type CloseReport struct {
	Closed    bool
	Remaining float64
	Chunks    int
}

type Decision struct {
	Action      string  `json:"action"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
	NotionalUSD float64 `json:"notional_usd,omitempty"`
}

type StepResult struct {
	Symbol   string      `json:"symbol"`
	Decision Decision    `json:"decision"`
	Price    float64     `json:"price"`
	Time     int64       `json:"time"`
	Orders   []OrderResp `json:"orders"`
	Reason   string      `json:"reason"`
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
