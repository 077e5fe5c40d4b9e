// Package app contains application services and port definitions for the pricing context.
package app

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

var (
	five    = decimal.NewFromInt(5)
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ProfitCalculator derives cost-adjusted net profit for a trade.
type ProfitCalculator struct {
	minSpreadPct decimal.Decimal
}

// NewProfitCalculator creates a ProfitCalculator with the minimum valid
// spread threshold (percent).
func NewProfitCalculator(minSpreadPct decimal.Decimal) *ProfitCalculator {
	return &ProfitCalculator{minSpreadPct: minSpreadPct}
}

// Spread computes the two-price spread using the calculator's minimum.
func (c *ProfitCalculator) Spread(priceA, priceB decimal.Decimal) (domain.Spread, error) {
	return domain.CalculateSpread(priceA, priceB, c.minSpreadPct)
}

// NetProfit computes the full profit breakdown for buying amount units at
// buyPrice and selling at sellPrice under the given costs.
//
// grossProfit = (sellPrice - buyPrice) * amount
// totalCosts  = gasFee + protocolFeeRate*tradeValue + slippageRate*tradeValue + bridgeFee
// where tradeValue = buyPrice * amount.
func (c *ProfitCalculator) NetProfit(
	buyPrice, sellPrice, amount decimal.Decimal,
	costs domain.Costs,
) (*domain.NetProfitAnalysis, error) {
	if !buyPrice.IsPositive() || !sellPrice.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "net profit requires positive prices")
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, amount.String())
	}

	tradeValue := buyPrice.Mul(amount)
	grossProfit := sellPrice.Sub(buyPrice).Mul(amount)

	protocolFee := costs.ProtocolFeeRate.Mul(tradeValue)
	slippageCost := costs.SlippageRate.Mul(tradeValue)
	totalCosts := costs.GasFeeUSD.Add(protocolFee).Add(slippageCost).Add(costs.BridgeFeeUSD)

	netProfit := grossProfit.Sub(totalCosts)
	netProfitPct := netProfit.Div(tradeValue).Mul(hundred)
	roi := netProfit.Div(tradeValue.Add(totalCosts)).Mul(hundred)

	costRatio := decimal.Zero
	efficiency := decimal.Zero
	if grossProfit.IsPositive() {
		costRatio = totalCosts.Div(grossProfit)
		if e := one.Sub(costRatio); e.IsPositive() {
			efficiency = e
		}
	}

	score := decimal.Zero
	if netProfitPct.IsPositive() {
		score = domain.Clamp01(netProfitPct.Div(five))
	}

	return &domain.NetProfitAnalysis{
		GrossProfit:  grossProfit,
		GasFee:       costs.GasFeeUSD,
		ProtocolFee:  protocolFee,
		SlippageCost: slippageCost,
		BridgeFee:    costs.BridgeFeeUSD,
		TotalCosts:   totalCosts,
		NetProfit:    netProfit,
		NetProfitPct: netProfitPct,
		ROI:          roi,
		CostRatio:    costRatio,
		Efficiency:   efficiency,
		IsProfitable: netProfit.IsPositive(),
		Score:        score,
	}, nil
}
