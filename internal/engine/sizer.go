package engine

import (
	"context"

	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/types"
)

// positionSizer converts a requested notional exposure into an order
// quantity the exchange will accept.
type positionSizer struct {
	quotes      *quoteSource
	precision   *precisionResolver
	minNotional float64
}

func newPositionSizer(quotes *quoteSource, precision *precisionResolver, minNotional float64) *positionSizer {
	return &positionSizer{quotes: quotes, precision: precision, minNotional: minNotional}
}

// Size prices notionalUSD at the current midpoint and quantizes the
// resulting quantity. It rejects with a SizeError when the quantized
// quantity is zero or its actual notional falls under the exchange floor.
// Margin is reported for logging only; the exchange enforces the real
// margin check server-side.
func (s *positionSizer) Size(ctx context.Context, symbol string, notionalUSD float64, leverage int) (types.Sizing, error) {
	quote, err := s.quotes.TopOfBook(ctx, symbol)
	if err != nil {
		return types.Sizing{}, err
	}
	price := quote.Midpoint()
	if price <= 0 {
		return types.Sizing{}, types.ErrQuoteUnavailable
	}

	spec := s.precision.Resolve(ctx, symbol)
	qty := quantize(notionalUSD/price, spec.QuantityDecimals)
	actualNotional := qty * price

	if qty <= 0 || actualNotional < s.minNotional {
		logger.Warn(ctx, "Position size below exchange minimum",
			"symbol", symbol,
			"requested_notional", notionalUSD,
			"quantity", qty,
			"actual_notional", actualNotional,
			"min_notional", s.minNotional,
		)
		return types.Sizing{}, &types.SizeError{
			Symbol:      symbol,
			Quantity:    qty,
			Notional:    actualNotional,
			MinNotional: s.minNotional,
		}
	}

	return types.Sizing{
		Quantity: qty,
		Price:    price,
		Notional: actualNotional,
		Margin:   notionalUSD / float64(leverage),
	}, nil
}
