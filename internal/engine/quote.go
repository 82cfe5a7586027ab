package engine

import (
	"context"
	"fmt"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/types"
)

// bookDepth is the depth requested for a top-of-book read. Only the best
// level is used; a little depth guards against empty-side responses.
const bookDepth = 5

// quoteSource is a stateless top-of-book reader. Quotes are never cached:
// every pricing decision re-fetches.
type quoteSource struct {
	gw interfaces.Gateway
}

func newQuoteSource(gw interfaces.Gateway) *quoteSource {
	return &quoteSource{gw: gw}
}

// TopOfBook returns the current best bid and ask. Transport failures and
// empty books surface as ErrQuoteUnavailable for the caller to retry.
func (q *quoteSource) TopOfBook(ctx context.Context, symbol string) (types.Quote, error) {
	book, err := q.gw.OrderBook(ctx, symbol, bookDepth)
	if err != nil {
		return types.Quote{}, fmt.Errorf("%w: %v", types.ErrQuoteUnavailable, err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return types.Quote{}, types.ErrQuoteUnavailable
	}
	return types.Quote{Bid: book.Bids[0].Price, Ask: book.Asks[0].Price}, nil
}
