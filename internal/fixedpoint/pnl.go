package fixedpoint

import (
	"math/big"
)

// ProfitLoss computes the raw PnL (amount scale, signed) of a margin slice
// against an open/current price pair:
//
//	pnl = margin · (current − open) · sideSign · leverage / open
func ProfitLoss(margin, leverage, openPrice, currentPrice int64, long bool) int64 {
	diff := currentPrice - openPrice
	if !long {
		diff = -diff
	}

	num := MultiplyInt128(margin, diff)
	num.Mul(num, big.NewInt(leverage))

	den := getInt128()
	den.Mul(big.NewInt(openPrice), big.NewInt(LeverageConfig.Scale))

	q := getInt128()
	rem := getInt128()
	q.QuoRem(num, den, rem)
	result := q.Int64()

	putInt128(num)
	putInt128(den)
	putInt128(q)
	putInt128(rem)

	return result
}

// Payout computes what a margin slice pays out at the given price, funding
// netted in and floored at zero. A total loss pays nothing, never negative.
func Payout(margin, leverage, openPrice, currentPrice int64, long bool, accInterest int64) int64 {
	payout := margin + ProfitLoss(margin, leverage, openPrice, currentPrice, long) + accInterest
	if payout < 0 {
		return 0
	}
	return payout
}

// CappedPayout applies the max-win cap to a payout. The cap is expressed as a
// rate-scale multiple of the closed margin slice; a cap of zero means
// uncapped. Funding is netted in before the cap (see DESIGN.md).
func CappedPayout(payout, closedMargin, maxWinPercent int64) int64 {
	if maxWinPercent == 0 {
		return payout
	}
	capped := MulDivRate(closedMargin, maxWinPercent)
	if payout > capped {
		return capped
	}
	return payout
}

// FundingDelta is the lazy funding accrual over an elapsed interval:
//
//	−margin · leverage · rate · elapsed / annualSeconds
//
// A positive base rate costs the position; a negative rate credits it.
func FundingDelta(margin, leverage, annualRate, elapsedSeconds int64) int64 {
	if elapsedSeconds <= 0 || annualRate == 0 {
		return 0
	}

	notional := Notional(margin, leverage)

	num := MultiplyInt128(notional, annualRate)
	num.Mul(num, big.NewInt(elapsedSeconds))

	den := getInt128()
	den.Mul(big.NewInt(RateConfig.Scale), big.NewInt(AnnualSeconds))

	q := getInt128()
	q.Quo(num, den)
	result := -q.Int64()

	putInt128(num)
	putInt128(den)
	putInt128(q)

	return result
}

// LiquidationPrice solves for the price at which the margin-loss fraction
// reaches the threshold:
//
//	percentProfit + accInterest/margin = −threshold
//
// Accrued funding shifts the naive threshold price: a position that has paid
// funding liquidates closer to its open price, one that has received funding
// farther away.
func LiquidationPrice(margin, leverage, openPrice int64, long bool, accInterest, liqThreshold int64) int64 {
	// lossBudget = threshold·margin/RateScale + accInterest (amount scale)
	lossBudget := MulDivRate(margin, liqThreshold) + accInterest

	// priceMove = lossBudget · openPrice · levScale / (margin · leverage)
	num := MultiplyInt128(lossBudget, openPrice)
	num.Mul(num, big.NewInt(LeverageConfig.Scale))

	den := getInt128()
	den.Mul(big.NewInt(margin), big.NewInt(leverage))

	q := getInt128()
	q.Quo(num, den)
	move := q.Int64()

	putInt128(num)
	putInt128(den)
	putInt128(q)

	if long {
		return openPrice - move
	}
	return openPrice + move
}

// MarginLossFraction returns the current loss as a rate-scale fraction of
// margin (positive = losing). Used for liquidation eligibility.
func MarginLossFraction(margin, leverage, openPrice, currentPrice int64, long bool, accInterest int64) int64 {
	loss := -(ProfitLoss(margin, leverage, openPrice, currentPrice, long) + accInterest)

	num := MultiplyInt128(loss, RateConfig.Scale)
	result := DivideInt128(num, margin, RoundDown)
	putInt128(num)

	return result
}
