package app

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNetProfitBreakdown(t *testing.T) {
	calc := NewProfitCalculator(d("0.1"))

	// Worked example: buy 10 units at 100, sell at 103; trade value 1000.
	// Slippage is charged on trade value, so rate 0.001 is what makes the
	// totals land on costs 6, net 24, 2.4%.
	analysis, err := calc.NetProfit(d("100"), d("103"), d("10"), domain.Costs{
		GasFeeUSD:       d("2"),
		ProtocolFeeRate: d("0.003"),
		SlippageRate:    d("0.001"),
		BridgeFeeUSD:    decimal.Zero,
	})
	if err != nil {
		t.Fatalf("NetProfit() error = %v", err)
	}

	if !analysis.GrossProfit.Equal(d("30")) {
		t.Errorf("GrossProfit = %s, want 30", analysis.GrossProfit)
	}
	if !analysis.ProtocolFee.Equal(d("3")) {
		t.Errorf("ProtocolFee = %s, want 3", analysis.ProtocolFee)
	}
	if !analysis.SlippageCost.Equal(d("1")) {
		t.Errorf("SlippageCost = %s, want 1", analysis.SlippageCost)
	}
	if !analysis.TotalCosts.Equal(d("6")) {
		t.Errorf("TotalCosts = %s, want 6", analysis.TotalCosts)
	}
	if !analysis.NetProfit.Equal(d("24")) {
		t.Errorf("NetProfit = %s, want 24", analysis.NetProfit)
	}
	if !analysis.NetProfitPct.Equal(d("2.4")) {
		t.Errorf("NetProfitPct = %s, want 2.4", analysis.NetProfitPct)
	}
	if !analysis.IsProfitable {
		t.Error("IsProfitable = false, want true")
	}

	// efficiency = 1 - 6/30 = 0.8
	if !analysis.Efficiency.Equal(d("0.8")) {
		t.Errorf("Efficiency = %s, want 0.8", analysis.Efficiency)
	}

	// score = 2.4 / 5 = 0.48
	if !analysis.Score.Equal(d("0.48")) {
		t.Errorf("Score = %s, want 0.48", analysis.Score)
	}
}

func TestNetProfitUnprofitableWhenCostsDominate(t *testing.T) {
	calc := NewProfitCalculator(d("0.1"))

	analysis, err := calc.NetProfit(d("100"), d("100.5"), d("1"), domain.Costs{
		GasFeeUSD:       d("20"),
		ProtocolFeeRate: d("0.003"),
		SlippageRate:    d("0.005"),
		BridgeFeeUSD:    d("25"),
	})
	if err != nil {
		t.Fatalf("NetProfit() error = %v", err)
	}

	if analysis.IsProfitable {
		t.Error("IsProfitable = true, want false")
	}
	if !analysis.NetProfit.IsNegative() {
		t.Errorf("NetProfit = %s, want negative", analysis.NetProfit)
	}
	if !analysis.Score.IsZero() {
		t.Errorf("Score = %s, want 0 for a losing trade", analysis.Score)
	}
}

func TestNetProfitZeroGrossLeavesRatiosZero(t *testing.T) {
	calc := NewProfitCalculator(d("0.1"))

	analysis, err := calc.NetProfit(d("100"), d("100"), d("10"), domain.Costs{
		GasFeeUSD: d("2"),
	})
	if err != nil {
		t.Fatalf("NetProfit() error = %v", err)
	}

	if !analysis.GrossProfit.IsZero() {
		t.Errorf("GrossProfit = %s, want 0", analysis.GrossProfit)
	}
	if !analysis.CostRatio.IsZero() || !analysis.Efficiency.IsZero() {
		t.Errorf("CostRatio/Efficiency = %s/%s, want 0/0 when gross <= 0",
			analysis.CostRatio, analysis.Efficiency)
	}
}

func TestNetProfitRejectsInvalidInputs(t *testing.T) {
	calc := NewProfitCalculator(d("0.1"))

	tests := []struct {
		name   string
		buy    string
		sell   string
		amount string
	}{
		{"zero_buy_price", "0", "103", "10"},
		{"negative_sell_price", "100", "-1", "10"},
		{"zero_amount", "100", "103", "0"},
		{"negative_amount", "100", "103", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.NetProfit(d(tt.buy), d(tt.sell), d(tt.amount), domain.Costs{})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSpreadUsesCalculatorMinimum(t *testing.T) {
	calc := NewProfitCalculator(d("1")) // 1% floor

	spread, err := calc.Spread(d("1000"), d("1005"))
	if err != nil {
		t.Fatalf("Spread() error = %v", err)
	}
	if spread.IsValid {
		t.Error("0.5% spread marked valid against a 1% floor")
	}

	spread, err = calc.Spread(d("1000"), d("1015"))
	if err != nil {
		t.Fatalf("Spread() error = %v", err)
	}
	if !spread.IsValid {
		t.Error("1.5% spread marked invalid against a 1% floor")
	}
}
