package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSymbolSuffix is the quote currency appended to bare tokens.
const DefaultSymbolSuffix = "USDT"

// FormatSymbol canonicalizes a token name into the exchange ticker form
// (BTC -> BTCUSDT). Symbols already carrying the suffix pass through.
func FormatSymbol(token string) string {
	t := strings.ToUpper(strings.TrimSpace(token))
	if !strings.HasSuffix(t, DefaultSymbolSuffix) {
		return t + DefaultSymbolSuffix
	}
	return t
}

// quantize truncates x to the given number of decimal places, so the result
// is an exact multiple of 10^-decimals. Truncation, never rounding up: a
// quantity rounded up can breach step-size and minimum-notional limits.
func quantize(x float64, decimals int32) float64 {
	f, _ := decimal.NewFromFloat(x).Truncate(decimals).Float64()
	return f
}

// quantizedEqual compares two prices at the given precision. Raw float64
// equality would trigger spurious reprices on insignificant digits.
func quantizedEqual(a, b float64, decimals int32) bool {
	return decimal.NewFromFloat(a).Truncate(decimals).Equal(decimal.NewFromFloat(b).Truncate(decimals))
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
