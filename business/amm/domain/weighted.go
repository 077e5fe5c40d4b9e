package domain

import (
	"github.com/shopspring/decimal"

	pricing "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

// powPrecision bounds the fractional-exponent power series used by the
// weighted-pool formula.
const powPrecision = 24

// Weighted models weighted pools (Balancer style).
type Weighted struct{}

// Family implements Model.
func (Weighted) Family() pricing.VenueFamily { return pricing.FamilyWeighted }

// PriceImpact simulates a swap under the weighted invariant:
//
//	out = reserveOut * (1 - (reserveIn / (reserveIn + amountInAfterFee))^(weightIn/weightOut))
//
// Spot price is (reserveOut/weightOut) / (reserveIn/weightIn).
func (m Weighted) PriceImpact(pool pricing.PoolState, amountIn, maxImpact decimal.Decimal) (*PriceImpactResult, error) {
	if err := checkTrade(m, pool, amountIn); err != nil {
		return nil, err
	}

	amountInAfterFee := applyFee(amountIn, pool.FeeRate)
	newReserveIn := pool.ReserveIn.Add(amountInAfterFee)

	exponent := pool.WeightIn.Div(pool.WeightOut)
	ratio, err := pool.ReserveIn.Div(newReserveIn).PowWithPrecision(exponent, powPrecision)
	if err != nil {
		return nil, apperror.New(apperror.CodeSolverDiverged,
			apperror.WithCause(err),
			apperror.WithContext("weighted pool power term"))
	}

	amountOut := pool.ReserveOut.Mul(one.Sub(ratio))
	newReserveOut := pool.ReserveOut.Sub(amountOut)

	priceBefore := spotWeighted(pool.ReserveIn, pool.ReserveOut, pool.WeightIn, pool.WeightOut)
	priceAfter := spotWeighted(newReserveIn, newReserveOut, pool.WeightIn, pool.WeightOut)
	effective := amountOut.Div(amountInAfterFee)

	return impactResult(amountIn, amountOut, priceBefore, priceAfter, effective, maxImpact), nil
}

// spotWeighted returns the weighted-pool spot price in output per input.
func spotWeighted(reserveIn, reserveOut, weightIn, weightOut decimal.Decimal) decimal.Decimal {
	return reserveOut.Div(weightOut).Div(reserveIn.Div(weightIn))
}
