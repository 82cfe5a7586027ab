package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/types"
)

// chaseExecutor places a limit order at the passive side of the book (bid
// for buys, ask for sells) and re-prices it until filled or the attempt
// budget runs out. Hard invariant: at most one resting order exists per
// chase session; a replacement is only submitted after the previous order
// has been cancelled or confirmed filled.
type chaseExecutor struct {
	gw        interfaces.Gateway
	quotes    *quoteSource
	precision *precisionResolver
	clock     interfaces.Clock

	maxAttempts  int
	pollInterval time.Duration
	cancelSettle time.Duration
}

func newChaseExecutor(gw interfaces.Gateway, quotes *quoteSource, precision *precisionResolver, clock interfaces.Clock, maxAttempts int, pollInterval, cancelSettle time.Duration) *chaseExecutor {
	return &chaseExecutor{
		gw:           gw,
		quotes:       quotes,
		precision:    precision,
		clock:        clock,
		maxAttempts:  maxAttempts,
		pollInterval: pollInterval,
		cancelSettle: cancelSettle,
	}
}

// restingOrder is the single live order of a chase session.
type restingOrder struct {
	id       string
	price    float64
	quantity float64
}

// chaseSession accumulates fills across cancel/replace cycles so each
// replacement is submitted for the residual quantity only.
type chaseSession struct {
	filledQty float64
	cost      float64 // sum of qty*price over partial fills
	remaining float64
}

func (s *chaseSession) absorb(qty, price float64) {
	if qty <= 0 {
		return
	}
	s.filledQty += qty
	s.cost += qty * price
	s.remaining -= qty
}

func (s *chaseSession) avgPrice() float64 {
	if s.filledQty <= 0 {
		return 0
	}
	return s.cost / s.filledQty
}

// Chase drives one execution session until the full quantity is filled or
// maxAttempts is exhausted. On exhaustion any resting order is cancelled
// best-effort and ErrMaxAttempts is returned; if any quantity executed
// during the session, a Fill carrying the partial quantity and its average
// price is returned alongside the error so the caller can account for it.
func (c *chaseExecutor) Chase(ctx context.Context, symbol string, side types.Side, quantity float64) (*types.Fill, error) {
	spec := c.precision.Resolve(ctx, symbol)
	session := &chaseSession{remaining: quantity}

	var resting *restingOrder
	var lastOrderID string

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		quote, err := c.quotes.TopOfBook(ctx, symbol)
		if err != nil {
			// Transient: wait and retry. The attempt counter bounds how
			// long an unavailable book can stall the session.
			logger.Warn(ctx, "Order book unavailable, retrying",
				"symbol", symbol, "attempt", attempt, "error", err)
			c.clock.Sleep(c.pollInterval)
			continue
		}

		target := quote.Bid
		if side == types.SideSell {
			target = quote.Ask
		}
		target = quantize(target, spec.PriceDecimals)

		// Quote unchanged: just poll the resting order.
		if resting != nil && quantizedEqual(target, resting.price, spec.PriceDecimals) {
			status, err := c.gw.GetOrder(ctx, symbol, resting.id)
			if err != nil {
				logger.Warn(ctx, "Order status poll failed",
					"symbol", symbol, "order_id", resting.id, "error", err)
				c.clock.Sleep(c.pollInterval)
				continue
			}
			if status.Status == types.OrderStatusFilled {
				session.absorb(status.ExecutedQty, fillPrice(status, resting.price))
				logger.Info(ctx, "Chase order filled",
					"symbol", symbol,
					"side", side,
					"order_id", resting.id,
					"quantity", session.filledQty,
					"price", session.avgPrice(),
					"attempts", attempt,
				)
				return c.fill(symbol, side, resting.id, session), nil
			}
			c.clock.Sleep(c.pollInterval)
			continue
		}

		// Quote moved (or first iteration): clear the resting order before
		// placing at the new price.
		if resting != nil {
			logger.Info(ctx, "Best price moved, repricing",
				"symbol", symbol,
				"side", side,
				"old_price", resting.price,
				"new_price", target,
			)
			cleared, done := c.clearResting(ctx, symbol, resting, session)
			if done {
				return c.fill(symbol, side, resting.id, session), nil
			}
			if !cleared {
				// Cancel failed and the order is not filled: transient.
				// Keep the order resting and retry the cancel next attempt.
				c.clock.Sleep(c.pollInterval)
				continue
			}
			lastOrderID = resting.id
			resting = nil
			if c.cancelSettle > 0 {
				c.clock.Sleep(c.cancelSettle)
			}
		}

		qty := quantize(session.remaining, spec.QuantityDecimals)
		if qty <= 0 {
			// Partial fills before cancels consumed everything above one
			// quantity step. Treat the session as filled.
			return c.fill(symbol, side, lastOrderID, session), nil
		}

		resp, err := c.gw.PlaceOrder(ctx, types.OrderReq{
			Symbol:      symbol,
			Side:        side,
			Type:        types.OrderTypeLimit,
			Quantity:    qty,
			Price:       target,
			TimeInForce: types.TimeInForceGTC,
		})
		if err != nil {
			return nil, fmt.Errorf("place limit order: %w", err)
		}
		resting = &restingOrder{id: resp.OrderID, price: target, quantity: qty}
		logger.Info(ctx, "Limit order placed",
			"symbol", symbol,
			"side", side,
			"order_id", resp.OrderID,
			"quantity", qty,
			"price", target,
			"attempt", attempt,
		)
		c.clock.Sleep(c.pollInterval)
	}

	// Budget exhausted: never leave an order resting, and fold whatever the
	// last order executed into the session so partial progress is reported.
	if resting != nil {
		logger.Warn(ctx, "Max chase attempts reached, cancelling resting order",
			"symbol", symbol, "order_id", resting.id)
		if err := c.gw.CancelOrder(ctx, symbol, resting.id); err != nil {
			logger.Warn(ctx, "Best-effort cancel failed",
				"symbol", symbol, "order_id", resting.id, "error", err)
		}
		status, err := c.gw.GetOrder(ctx, symbol, resting.id)
		if err != nil {
			logger.Warn(ctx, "Final order status query failed",
				"symbol", symbol, "order_id", resting.id, "error", err)
		} else {
			session.absorb(status.ExecutedQty, fillPrice(status, resting.price))
			if status.Status == types.OrderStatusFilled {
				// The order filled in the cancel race on the last attempt.
				return c.fill(symbol, side, resting.id, session), nil
			}
		}
		lastOrderID = resting.id
	}

	exhausted := fmt.Errorf("%w: %s %s after %d attempts", types.ErrMaxAttempts, side, symbol, c.maxAttempts)
	if session.filledQty > 0 {
		logger.Warn(ctx, "Chase exhausted with partial fill",
			"symbol", symbol,
			"side", side,
			"filled", session.filledQty,
			"remaining", session.remaining,
			"avg_price", session.avgPrice(),
		)
		return c.fill(symbol, side, lastOrderID, session), exhausted
	}
	return nil, exhausted
}

// clearResting cancels the live order, folding whatever executed before the
// cancel into the session. A cancel failure can legitimately mean the order
// filled in the race window, so the authoritative order status decides:
// done=true means the order is fully filled (treat as success), cleared=true
// means the order is gone and a replacement may be placed.
func (c *chaseExecutor) clearResting(ctx context.Context, symbol string, resting *restingOrder, session *chaseSession) (cleared, done bool) {
	cancelErr := c.gw.CancelOrder(ctx, symbol, resting.id)

	status, err := c.gw.GetOrder(ctx, symbol, resting.id)
	if err != nil {
		if cancelErr == nil {
			// Cancel acked but status unknown; assume nothing executed in
			// between. The executed quantity, if any, shows up in the
			// position and is handled by the closing paths.
			return true, false
		}
		logger.Warn(ctx, "Cancel and status query both failed",
			"symbol", symbol, "order_id", resting.id,
			"cancel_error", cancelErr, "status_error", err)
		return false, false
	}

	switch status.Status {
	case types.OrderStatusFilled:
		session.absorb(status.ExecutedQty, fillPrice(status, resting.price))
		logger.Info(ctx, "Order filled during cancel race",
			"symbol", symbol, "order_id", resting.id, "quantity", status.ExecutedQty)
		return false, true
	case types.OrderStatusCanceled:
		session.absorb(status.ExecutedQty, fillPrice(status, resting.price))
		return true, false
	default:
		if cancelErr != nil {
			logger.Warn(ctx, "Cancel failed, order still open",
				"symbol", symbol, "order_id", resting.id, "error", cancelErr)
			return false, false
		}
		// Cancel acked but not yet reflected; absorb partials and move on.
		session.absorb(status.ExecutedQty, fillPrice(status, resting.price))
		return true, false
	}
}

func (c *chaseExecutor) fill(symbol string, side types.Side, orderID string, session *chaseSession) *types.Fill {
	return &types.Fill{
		OrderID:  orderID,
		Symbol:   symbol,
		Side:     side,
		Quantity: session.filledQty,
		Price:    session.avgPrice(),
	}
}

// fillPrice prefers the exchange-reported average price, falling back to the
// submitted limit price when the gateway omits it.
func fillPrice(status types.OrderStatus, submitted float64) float64 {
	if status.AvgPrice > 0 {
		return status.AvgPrice
	}
	return submitted
}

// IsExhausted reports whether err is a chase that ran out of attempts.
func IsExhausted(err error) bool {
	return errors.Is(err, types.ErrMaxAttempts)
}
