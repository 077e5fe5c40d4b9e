package domain

import (
	"github.com/shopspring/decimal"

	pricing "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

// ConstantProduct models x*y=k pools (Uniswap V2 style).
type ConstantProduct struct{}

// Family implements Model.
func (ConstantProduct) Family() pricing.VenueFamily { return pricing.FamilyConstantProduct }

// PriceImpact simulates a swap against the invariant:
//
//	k = reserveIn * reserveOut
//	out = reserveOut - k / (reserveIn + amountInAfterFee)
func (m ConstantProduct) PriceImpact(pool pricing.PoolState, amountIn, maxImpact decimal.Decimal) (*PriceImpactResult, error) {
	if err := checkTrade(m, pool, amountIn); err != nil {
		return nil, err
	}

	amountInAfterFee := applyFee(amountIn, pool.FeeRate)
	k := pool.ReserveIn.Mul(pool.ReserveOut)

	newReserveIn := pool.ReserveIn.Add(amountInAfterFee)
	newReserveOut := k.Div(newReserveIn)
	amountOut := pool.ReserveOut.Sub(newReserveOut)

	priceBefore := pool.ReserveOut.Div(pool.ReserveIn)
	priceAfter := newReserveOut.Div(newReserveIn)
	effective := amountOut.Div(amountInAfterFee)

	return impactResult(amountIn, amountOut, priceBefore, priceAfter, effective, maxImpact), nil
}
