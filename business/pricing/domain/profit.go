package domain

import "github.com/shopspring/decimal"

// Costs itemizes the execution costs of one arbitrage trade.
// Rates apply to the trade value at the buy price; fees are absolute amounts
// in the reference currency.
type Costs struct {
	GasFeeUSD       decimal.Decimal
	ProtocolFeeRate decimal.Decimal
	SlippageRate    decimal.Decimal
	BridgeFeeUSD    decimal.Decimal
}

// NetProfitAnalysis is the cost-adjusted profit breakdown for one trade.
type NetProfitAnalysis struct {
	GrossProfit decimal.Decimal

	GasFee       decimal.Decimal
	ProtocolFee  decimal.Decimal
	SlippageCost decimal.Decimal
	BridgeFee    decimal.Decimal
	TotalCosts   decimal.Decimal

	NetProfit    decimal.Decimal
	NetProfitPct decimal.Decimal // net profit over trade value, percent
	ROI          decimal.Decimal // net profit over deployed capital + costs, percent
	CostRatio    decimal.Decimal // total costs over gross profit (zero when gross <= 0)
	Efficiency   decimal.Decimal // max(0, 1 - costRatio)

	IsProfitable bool
	Score        decimal.Decimal // min(netProfitPct / 5, 1), floored at 0
}
