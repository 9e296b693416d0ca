// internal/math/numeric.go
package math

import (
	stdmath "math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Zero returns a fresh zero-valued big.Int. Ledger fields are never shared,
// so every entity gets its own instance.
func Zero() *big.Int {
	return new(big.Int)
}

// MaxBig returns the largest value in the slice, or zero for an empty slice.
// The result is a fresh big.Int, safe to mutate.
func MaxBig(values []*big.Int) *big.Int {
	max := Zero()
	for _, v := range values {
		if v != nil && v.Cmp(max) > 0 {
			max.Set(v)
		}
	}
	return max
}

// SumBig returns the sum of all values as a fresh big.Int.
func SumBig(values []*big.Int) *big.Int {
	sum := Zero()
	for _, v := range values {
		if v != nil {
			sum.Add(sum, v)
		}
	}
	return sum
}

// DivTrunc performs truncating integer division n / d.
// A zero denominator yields zero; callers guard the degenerate case and
// this keeps the arithmetic total.
func DivTrunc(n *big.Int, d *big.Int) *big.Int {
	if d == nil || d.Sign() == 0 {
		return Zero()
	}
	return Zero().Quo(n, d)
}

// DivTruncInt64 is DivTrunc with a small-integer denominator, the common
// case for per-outcome value splits.
func DivTruncInt64(n *big.Int, d int64) *big.Int {
	return DivTrunc(n, big.NewInt(d))
}

// MulDiv computes a * num / den with truncation, keeping the intermediate
// product in arbitrary precision.
func MulDiv(a, num, den *big.Int) *big.Int {
	product := Zero().Mul(a, num)
	return DivTrunc(product, den)
}

// SaturatingAdd increments a counter without wrapping past MaxInt64.
func SaturatingAdd(a, b int64) int64 {
	if b > 0 && a > stdmath.MaxInt64-b {
		return stdmath.MaxInt64
	}
	if b < 0 && a < stdmath.MinInt64-b {
		return stdmath.MinInt64
	}
	return a + b
}

// PayoutFractions normalizes a payout-numerator vector into decimal
// fractions numerator[i] / denominator. The denominator must be non-zero;
// the registry rejects degenerate resolutions before calling this.
func PayoutFractions(numerators []*big.Int, denominator *big.Int) []decimal.Decimal {
	den := decimal.NewFromBigInt(denominator, 0)
	fractions := make([]decimal.Decimal, len(numerators))
	for i, n := range numerators {
		fractions[i] = decimal.NewFromBigInt(n, 0).DivRound(den, payoutFractionPlaces)
	}
	return fractions
}

// payoutFractionPlaces bounds the decimal expansion of payout fractions.
const payoutFractionPlaces = 18

// ScaleToDecimal converts a raw integer token amount into its human-scaled
// decimal value, shifting by the collateral token's decimal count.
func ScaleToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// MulPriceRounded values a token quantity at a decimal unit price and
// rounds to whole integer units.
func MulPriceRounded(quantity *big.Int, price decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(quantity, 0).Mul(price).Round(0).BigInt()
}
