package types

import (
	"errors"
	"fmt"
)

var (
	// ErrQuoteUnavailable marks a transient top-of-book failure. Callers
	// retry it in place, bounded by their own attempt budget.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrMaxAttempts marks a chase that ran out of attempts without a fill.
	ErrMaxAttempts = errors.New("max chase attempts exhausted")
)

// SizeError is a terminal sizing rejection. No order was submitted.
type SizeError struct {
	Symbol      string
	Quantity    float64
	Notional    float64
	MinNotional float64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("position size too small for %s: qty=%v notional=%.2f (minimum %.2f)",
		e.Symbol, e.Quantity, e.Notional, e.MinNotional)
}

// IsTooSmall reports whether err is a minimum-notional rejection.
func IsTooSmall(err error) bool {
	var se *SizeError
	return errors.As(err, &se)
}
