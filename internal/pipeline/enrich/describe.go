package enrich

import (
	"fmt"

	"github.com/devaanshsinha/cogniflow/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Describe builds the deterministic text fed to the embedding model for
// one transfer. Identical transfers always produce identical text.
func Describe(t model.Transfer) string {
	symbol := t.Symbol
	if symbol == "" {
		symbol = "tokens"
	}
	return fmt.Sprintf(
		"%s transfer %s on %s: %s %s (%s) from %s to %s, token %s, tx %s, block %d",
		symbol, t.ID, t.Chain, t.AmountDec, symbol, MagnitudeBucket(t.AmountDec),
		t.FromAddress, t.ToAddress, t.Token, t.TxHash, t.BlockNumber,
	)
}

var (
	bucketDust   = decimal.RequireFromString("0.001")
	bucketSmall  = decimal.RequireFromString("1")
	bucketMedium = decimal.RequireFromString("1000")
	bucketLarge  = decimal.RequireFromString("1000000")
)

// MagnitudeBucket maps a decimal amount onto a coarse size label so
// similar-scale transfers embed near each other.
func MagnitudeBucket(amountDec string) string {
	amt, err := decimal.NewFromString(amountDec)
	if err != nil {
		return "unknown"
	}
	abs := amt.Abs()
	switch {
	case abs.IsZero():
		return "zero"
	case abs.LessThan(bucketDust):
		return "dust"
	case abs.LessThan(bucketSmall):
		return "small"
	case abs.LessThan(bucketMedium):
		return "medium"
	case abs.LessThan(bucketLarge):
		return "large"
	default:
		return "whale"
	}
}
