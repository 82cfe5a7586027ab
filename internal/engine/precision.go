package engine

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/types"
)

// defaultSpec is the conservative fallback when exchange metadata cannot be
// read. Undertrading on over-quantization is safer than blocking execution.
var defaultSpec = types.PrecisionSpec{PriceDecimals: 2, QuantityDecimals: 3}

// precisionResolver derives per-symbol decimal precision from exchange
// filters and caches it for the process lifetime. Tick and step sizes are
// exchange constants, so entries never expire.
type precisionResolver struct {
	gw interfaces.Gateway

	mu    sync.Mutex
	cache map[string]types.PrecisionSpec
}

func newPrecisionResolver(gw interfaces.Gateway) *precisionResolver {
	return &precisionResolver{
		gw:    gw,
		cache: make(map[string]types.PrecisionSpec),
	}
}

// Resolve returns the precision spec for symbol. It fails soft: a lookup
// error yields the default spec without caching it, so a later successful
// lookup can still install the real one. An unknown symbol caches the
// default, keeping every order for it on one consistent spec.
func (r *precisionResolver) Resolve(ctx context.Context, symbol string) types.PrecisionSpec {
	r.mu.Lock()
	if spec, ok := r.cache[symbol]; ok {
		r.mu.Unlock()
		return spec
	}
	r.mu.Unlock()

	info, err := r.gw.ExchangeInfo(ctx)
	if err != nil {
		logger.Warn(ctx, "Precision lookup failed, using default spec",
			"symbol", symbol,
			"price_decimals", defaultSpec.PriceDecimals,
			"quantity_decimals", defaultSpec.QuantityDecimals,
			"error", err,
		)
		return defaultSpec
	}

	spec := defaultSpec
	for _, si := range info.Symbols {
		if si.Symbol == symbol {
			spec = specFromFilters(si.Filters)
			break
		}
	}

	r.mu.Lock()
	// First population wins. A racing caller computed the same pure function
	// of exchange metadata, so either result is fine; keeping the existing
	// entry just makes the winner deterministic.
	if cached, ok := r.cache[symbol]; ok {
		spec = cached
	} else {
		r.cache[symbol] = spec
	}
	r.mu.Unlock()

	logger.Debug(ctx, "Precision resolved",
		"symbol", symbol,
		"price_decimals", spec.PriceDecimals,
		"quantity_decimals", spec.QuantityDecimals,
	)
	return spec
}

func specFromFilters(filters []types.SymbolFilter) types.PrecisionSpec {
	spec := defaultSpec
	for _, f := range filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			if d, ok := decimalsFromIncrement(f.TickSize); ok {
				spec.PriceDecimals = d
			}
		case "LOT_SIZE":
			if d, ok := decimalsFromIncrement(f.StepSize); ok {
				spec.QuantityDecimals = d
			}
		}
	}
	return spec
}

// decimalsFromIncrement converts an increment string like "0.010" into its
// significant decimal places (2). Whole-number increments yield 0.
func decimalsFromIncrement(inc string) (int32, bool) {
	s := strings.TrimSpace(inc)
	if s == "" {
		return 0, false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return 0, false
	}
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0, true
	}
	frac := strings.TrimRight(s[i+1:], "0")
	return int32(len(frac)), true
}
