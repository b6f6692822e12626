package math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the number of basis points in 100%
const BpsDenominator = 10000

var bpsDenominator = big.NewInt(BpsDenominator)

// ToDecimal converts a base-unit amount into a human-readable decimal
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// FromDecimal converts a human-readable decimal into base units, truncating
// anything below the token's precision
func FromDecimal(value decimal.Decimal, decimals uint8) *big.Int {
	return value.Shift(int32(decimals)).BigInt()
}

// Ratio returns a/b as a float, or 0 when b is zero
func Ratio(a, b *big.Int) float64 {
	if a == nil || b == nil || b.Sign() == 0 {
		return 0
	}
	r, _ := new(big.Rat).SetFrac(a, b).Float64()
	return r
}

// MulDiv returns a*b/c rounded down
func MulDiv(a, b, c *big.Int) *big.Int {
	if c.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(new(big.Int).Mul(a, b), c)
}

// SplitEvenly divides amount into parts legs. The remainder goes to the last
// leg so the legs always sum to amount.
func SplitEvenly(amount *big.Int, parts int) []*big.Int {
	if parts <= 0 || amount == nil {
		return nil
	}
	legs := make([]*big.Int, parts)
	share := new(big.Int).Div(amount, big.NewInt(int64(parts)))
	allocated := new(big.Int)
	for i := 0; i < parts-1; i++ {
		legs[i] = new(big.Int).Set(share)
		allocated.Add(allocated, share)
	}
	legs[parts-1] = new(big.Int).Sub(amount, allocated)
	return legs
}

// ApplyBps returns amount reduced by bps basis points
func ApplyBps(amount *big.Int, bps int64) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	keep := big.NewInt(BpsDenominator - bps)
	return MulDiv(amount, keep, bpsDenominator)
}

// PercentToBps converts a percentage into whole basis points
func PercentToBps(percent float64) int64 {
	return decimal.NewFromFloat(percent).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MinAmountOut returns the output floor for a step after slippage tolerance
func MinAmountOut(amountOut *big.Int, slippagePercent float64) *big.Int {
	bps := PercentToBps(slippagePercent)
	if bps >= BpsDenominator {
		return big.NewInt(0)
	}
	if bps < 0 {
		bps = 0
	}
	return ApplyBps(amountOut, bps)
}

// GetAmountOut calculates the output of a constant-product swap with the fee
// taken from the input
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return big.NewInt(0)
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || feeBps >= BpsDenominator {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(BpsDenominator-feeBps)))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(
		new(big.Int).Mul(reserveIn, bpsDenominator),
		amountInWithFee,
	)
	return new(big.Int).Div(numerator, denominator)
}

// PriceImpact returns the percentage the execution price deviates from the
// spot price for a constant-product swap, ignoring the fee
func PriceImpact(amountIn, reserveIn *big.Int) float64 {
	if amountIn == nil || reserveIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 {
		return 0
	}
	return Ratio(amountIn, new(big.Int).Add(reserveIn, amountIn)) * 100
}

// ConvertDecimals rescales a base-unit amount between token precisions
func ConvertDecimals(amount *big.Int, from, to uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	switch {
	case from == to:
		return new(big.Int).Set(amount)
	case to > from:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil)
		return new(big.Int).Mul(amount, scale)
	default:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil)
		return new(big.Int).Div(amount, scale)
	}
}

// USDValue prices a base-unit amount. When the price is unknown the
// human-readable amount itself is returned.
func USDValue(amount *big.Int, decimals uint8, priceUSD decimal.Decimal) decimal.Decimal {
	value := ToDecimal(amount, decimals)
	if !priceUSD.IsPositive() {
		return value
	}
	return value.Mul(priceUSD)
}
