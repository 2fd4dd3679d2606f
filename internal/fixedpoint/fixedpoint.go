package fixedpoint

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	AmountConfig   = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}       // settlement-asset units
	PriceConfig    = DecimalConfig{DecimalPrecision: 8, Scale: 100_000_000}     // 0.00000001
	LeverageConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}       // 1x = 1_000_000
	RateConfig     = DecimalConfig{DecimalPrecision: 10, Scale: 10_000_000_000} // fees, spreads, thresholds, percents
)

// OnePercent in rate scale. 100% == RateConfig.Scale.
const OnePercent = 100_000_000

// AnnualSeconds is the funding-accrual denominator (365 days).
const AnnualSeconds = 31_536_000

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.QuoRem(numerator, denom, remainder)

	result := quotient.Int64()

	if roundingMode == RoundHalfEven && remainder.Sign() != 0 {
		// Banker's rounding on the absolute remainder
		absRem := getInt128()
		absRem.Abs(remainder)
		half := big.NewInt(denominator / 2)
		if denominator < 0 {
			half.SetInt64(-denominator / 2)
		}
		cmp := absRem.Cmp(half)

		step := int64(1)
		if (numerator.Sign() < 0) != (denominator < 0) {
			step = -1
		}

		if cmp > 0 {
			result += step
		} else if cmp == 0 && denominator%2 == 0 {
			if result%2 != 0 {
				result += step
			}
		}
		putInt128(absRem)
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// MulDivRate scales amount by rate/RateConfig.Scale.
func MulDivRate(amount, rate int64) int64 {
	num := MultiplyInt128(amount, rate)
	result := DivideInt128(num, RateConfig.Scale, RoundHalfEven)
	putInt128(num)
	return result
}

// Notional converts margin and leverage to notional exposure (amount scale).
func Notional(margin, leverage int64) int64 {
	num := MultiplyInt128(margin, leverage)
	result := DivideInt128(num, LeverageConfig.Scale, RoundHalfEven)
	putInt128(num)
	return result
}

// ApplySpread shifts a price by its attested spread fraction.
// Longs open above the mid price, shorts below.
func ApplySpread(price, spread int64, up bool) int64 {
	delta := MulDivRate(price, spread)
	if up {
		return price + delta
	}
	return price - delta
}

// BlendedOpenPrice recomputes a single open price when margin is added to an
// existing position, weighted by notional so the accounting identity
// oldNotional·oldPrice + addNotional·addPrice stays intact.
func BlendedOpenPrice(oldMargin, oldLeverage, oldPrice, addMargin, addLeverage, addPrice int64) int64 {
	w1 := MultiplyInt128(oldMargin, oldLeverage)
	w2 := MultiplyInt128(addMargin, addLeverage)

	t1 := getInt128()
	t1.Mul(w1, big.NewInt(oldPrice))
	t2 := getInt128()
	t2.Mul(w2, big.NewInt(addPrice))

	num := getInt128()
	num.Add(t1, t2)

	den := getInt128()
	den.Add(w1, w2)

	q := getInt128()
	q.Quo(num, den)
	result := q.Int64()

	putInt128(w1)
	putInt128(w2)
	putInt128(t1)
	putInt128(t2)
	putInt128(num)
	putInt128(den)
	putInt128(q)

	return result
}

// AdjustedLeverage recomputes leverage after a margin change keeping notional
// constant: newLev = oldMargin·oldLev / newMargin.
func AdjustedLeverage(oldMargin, oldLeverage, newMargin int64) int64 {
	num := MultiplyInt128(oldMargin, oldLeverage)
	result := DivideInt128(num, newMargin, RoundHalfEven)
	putInt128(num)
	return result
}
