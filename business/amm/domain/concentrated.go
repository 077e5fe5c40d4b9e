package domain

import (
	"github.com/shopspring/decimal"

	pricing "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

var (
	tickBase  = decimal.RequireFromString("1.0001")
	tickWidth = decimal.RequireFromString("0.0001")
)

// maxTickWalk caps how many tick boundaries a single simulation crosses.
// A trade that would cross more is so far beyond acceptable impact that the
// unfilled remainder only needs to show up in the effective price.
const maxTickWalk = 500

// Concentrated models concentrated-liquidity pools (Uniswap V3 style).
type Concentrated struct{}

// Family implements Model.
func (Concentrated) Family() pricing.VenueFamily { return pricing.FamilyConcentrated }

// PriceImpact walks active liquidity across tick boundaries inside the
// pool's tick range, consuming per-tick capacity until the input is
// exhausted or the upper tick is reached. The price at tick t is 1.0001^t
// (input per output); per-tick input capacity is liquidity scaled by the
// price step to the next tick.
func (m Concentrated) PriceImpact(pool pricing.PoolState, amountIn, maxImpact decimal.Decimal) (*PriceImpactResult, error) {
	if err := checkTrade(m, pool, amountIn); err != nil {
		return nil, err
	}

	startTick := pool.CurrentTick
	if startTick < pool.Ticks.Lower {
		startTick = pool.Ticks.Lower
	}
	if startTick >= pool.Ticks.Upper {
		return nil, apperror.Validation(apperror.CodePoolStateInvalid,
			"current tick at or above upper bound")
	}

	startCost, err := tickBase.PowInt32(startTick)
	if err != nil {
		return nil, apperror.New(apperror.CodeSolverDiverged,
			apperror.WithCause(err),
			apperror.WithContext("tick price"))
	}

	amountInAfterFee := applyFee(amountIn, pool.FeeRate)
	remaining := amountInAfterFee
	amountOut := decimal.Zero

	cost := startCost // input per output at the active tick
	tick := startTick
	for steps := 0; tick < pool.Ticks.Upper && remaining.IsPositive() && steps < maxTickWalk; steps++ {
		// Input needed to push the price one tick up.
		capacity := pool.Liquidity.Mul(cost).Mul(tickWidth)

		fill := remaining
		if fill.GreaterThan(capacity) {
			fill = capacity
		}

		amountOut = amountOut.Add(fill.Div(cost))
		remaining = remaining.Sub(fill)

		cost = cost.Mul(tickBase)
		tick++
	}

	// Prices in output per input.
	priceBefore := one.Div(startCost)
	priceAfter := one.Div(cost)
	effective := amountOut.Div(amountInAfterFee)

	return impactResult(amountIn, amountOut, priceBefore, priceAfter, effective, maxImpact), nil
}
