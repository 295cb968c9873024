// Package amount implements exact fixed-point arithmetic for token
// quantities: arbitrary-precision base units plus a decimal rendering
// capped at MaxScale fractional digits.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the maximum number of fractional digits ever rendered.
// Precision beyond it is truncated, not rounded.
const MaxScale int32 = 18

// ParseRaw parses a base-unit integer in either hex-prefixed or plain
// decimal form. Empty input yields zero.
func ParseRaw(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		hexDigits := lower[2:]
		if hexDigits == "" {
			return new(big.Int), nil
		}
		v, ok := new(big.Int).SetString(hexDigits, 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex amount %q", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	return v, nil
}

// FromHuman converts a human-readable quantity to base units by shifting
// the decimal point right by decimals digits. Sub-base-unit precision is
// truncated.
func FromHuman(value string, decimals int32) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid human amount %q: %w", value, err)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// Render renders raw base units at the given source scale as an exact
// decimal string. For scales above MaxScale the excess precision is divided
// out first (truncating toward zero), so the result never carries more than
// MaxScale fractional digits. Trailing fractional zeros are trimmed; a nil
// scale renders the raw integer unchanged.
func Render(raw *big.Int, decimals *int32) string {
	if raw == nil {
		return "0"
	}
	if decimals == nil || *decimals <= 0 {
		return raw.String()
	}
	d := decimal.NewFromBigInt(raw, -*decimals)
	if *decimals > MaxScale {
		d = d.Truncate(MaxScale)
	}
	return d.String()
}
