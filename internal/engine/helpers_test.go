package engine

import "testing"

func TestFormatSymbol(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTC", "BTCUSDT"},
		{"btc", "BTCUSDT"},
		{" eth ", "ETHUSDT"},
		{"BTCUSDT", "BTCUSDT"},
		{"solusdt", "SOLUSDT"},
	}
	for _, c := range cases {
		if got := FormatSymbol(c.in); got != c.want {
			t.Errorf("FormatSymbol(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestQuantizeTruncates(t *testing.T) {
	// Truncation, never rounding: 0.2579 at 3 decimals is 0.257, not 0.258.
	if got := quantize(0.2579, 3); got != 0.257 {
		t.Errorf("quantize(0.2579, 3) = %v, want 0.257", got)
	}
	if got := quantize(123.456789, 2); got != 123.45 {
		t.Errorf("quantize(123.456789, 2) = %v, want 123.45", got)
	}
	if got := quantize(5.0, 0); got != 5.0 {
		t.Errorf("quantize(5.0, 0) = %v, want 5", got)
	}
	// Values smaller than one step quantize to zero.
	if got := quantize(0.0004, 3); got != 0 {
		t.Errorf("quantize(0.0004, 3) = %v, want 0", got)
	}
}

func TestQuantizeExactMultiple(t *testing.T) {
	// The result must be an exact multiple of 10^-decimals even when the
	// input carries float noise.
	got := quantize(0.1+0.2, 1) // 0.30000000000000004
	if got != 0.3 {
		t.Errorf("quantize(0.1+0.2, 1) = %v, want 0.3", got)
	}
}

func TestQuantizedEqual(t *testing.T) {
	if !quantizedEqual(100.051, 100.059, 2) {
		t.Error("prices equal at 2 decimals should compare equal")
	}
	if quantizedEqual(100.05, 100.06, 2) {
		t.Error("prices differing at 2 decimals should compare unequal")
	}
}
