// Package domain contains the AMM price-impact models.
//
// One model per venue family, all behind the Model interface. Dispatch is a
// closed registry keyed by the pool's family tag: adding a family means
// adding one variant here, not branching logic elsewhere.
package domain

import (
	"github.com/shopspring/decimal"

	pricing "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

var one = decimal.NewFromInt(1)

// PriceImpactResult describes the simulated execution of a trade against a pool.
//
// PriceBefore/PriceAfter are spot prices (output token per input token).
// EffectivePrice is the realized execution price after fees. PriceImpact is
// the fractional deviation of the effective price from the spot price before
// the trade; Slippage is the fractional post-trade spot move.
type PriceImpactResult struct {
	AmountIn       decimal.Decimal
	AmountOut      decimal.Decimal
	PriceBefore    decimal.Decimal
	PriceAfter     decimal.Decimal
	PriceImpact    decimal.Decimal // 0..1
	Slippage       decimal.Decimal // 0..1
	EffectivePrice decimal.Decimal
	IsAcceptable   bool // impact <= configured max
}

// Model converts a trade size plus pool state into a PriceImpactResult.
// maxImpact is a fraction (0.05 = 5%); exceeding it is non-fatal and is
// surfaced via IsAcceptable=false so callers decide whether to reject.
type Model interface {
	Family() pricing.VenueFamily
	PriceImpact(pool pricing.PoolState, amountIn, maxImpact decimal.Decimal) (*PriceImpactResult, error)
}

var registry = map[pricing.VenueFamily]Model{
	pricing.FamilyConstantProduct: ConstantProduct{},
	pricing.FamilyConcentrated:    Concentrated{},
	pricing.FamilyWeighted:        Weighted{},
	pricing.FamilyStableSwap:      StableSwap{},
}

// ModelFor returns the model for a venue family.
func ModelFor(family pricing.VenueFamily) (Model, error) {
	m, ok := registry[family]
	if !ok {
		return nil, apperror.Validation(apperror.CodeUnsupportedProtocol, string(family))
	}
	return m, nil
}

// Families lists the supported venue families.
func Families() []pricing.VenueFamily {
	out := make([]pricing.VenueFamily, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	return out
}

// checkTrade runs the guards shared by every model.
func checkTrade(m Model, pool pricing.PoolState, amountIn decimal.Decimal) error {
	if pool.Family != m.Family() {
		return apperror.Validation(apperror.CodeUnsupportedProtocol,
			string(pool.Family)+" passed to "+string(m.Family())+" model")
	}
	if err := pool.Validate(); err != nil {
		return err
	}
	if !amountIn.IsPositive() {
		return apperror.Validation(apperror.CodeInvalidTradeSize, amountIn.String())
	}
	return nil
}

// applyFee deducts the pool fee from the input amount.
func applyFee(amountIn, feeRate decimal.Decimal) decimal.Decimal {
	return amountIn.Mul(one.Sub(feeRate))
}

// impactResult assembles the shared result fields from raw trade numbers.
func impactResult(amountIn, amountOut, priceBefore, priceAfter, effective, maxImpact decimal.Decimal) *PriceImpactResult {
	impact := decimal.Zero
	slippage := decimal.Zero
	if priceBefore.IsPositive() {
		impact = effective.Sub(priceBefore).Abs().Div(priceBefore)
		slippage = priceAfter.Sub(priceBefore).Abs().Div(priceBefore)
	}

	return &PriceImpactResult{
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		PriceBefore:    priceBefore,
		PriceAfter:     priceAfter,
		PriceImpact:    impact,
		Slippage:       slippage,
		EffectivePrice: effective,
		IsAcceptable:   impact.LessThanOrEqual(maxImpact),
	}
}
