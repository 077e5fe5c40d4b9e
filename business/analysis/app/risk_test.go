package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/analysis/domain"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func defaultScorerParams() RiskScorerParams {
	return RiskScorerParams{
		Weights: RiskWeights{
			Volatility:    d("0.25"),
			Liquidity:     d("0.20"),
			Slippage:      d("0.20"),
			ExecutionTime: d("0.15"),
			Gas:           d("0.15"),
			Congestion:    d("0.05"),
		},
		VolatilityCeiling: d("0.10"),
		MinLiquidityUSD:   d("100000"),
		MaxSlippagePct:    d("2"),
		MaxExecutionTime:  5 * time.Minute,
		NormalGasGwei:     d("30"),
		MaxRiskScore:      d("0.7"),
	}
}

func TestNewRiskScorerRejectsBadWeights(t *testing.T) {
	params := defaultScorerParams()
	params.Weights.Congestion = d("0.10") // sum = 1.05

	if _, err := NewRiskScorer(params, testLogger()); err == nil {
		t.Error("expected error for weights not summing to 1")
	}
}

func TestAssessSubScoresInRange(t *testing.T) {
	scorer, err := NewRiskScorer(defaultScorerParams(), testLogger())
	if err != nil {
		t.Fatalf("NewRiskScorer() error = %v", err)
	}

	tests := []struct {
		name string
		in   RiskInputs
	}{
		{
			name: "calm_market",
			in: RiskInputs{
				Volatility:      d("0.02"),
				LiquidityUSD:    d("500000"),
				SlippagePct:     d("0.3"),
				ExecutionTime:   15 * time.Second,
				GasPriceGwei:    d("25"),
				CongestionLevel: d("30"),
			},
		},
		{
			name: "stressed_market_beyond_ceilings",
			in: RiskInputs{
				Volatility:      d("0.50"),
				LiquidityUSD:    decimal.Zero,
				SlippagePct:     d("10"),
				ExecutionTime:   time.Hour,
				GasPriceGwei:    d("900"),
				CongestionLevel: d("250"),
			},
		},
		{
			name: "zero_inputs",
			in:   RiskInputs{},
		},
	}

	one := decimal.NewFromInt(1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scorer.Assess(context.Background(), tt.in)

			for name, score := range map[string]decimal.Decimal{
				"volatility": a.VolatilityScore,
				"liquidity":  a.LiquidityScore,
				"slippage":   a.SlippageScore,
				"execution":  a.ExecutionTimeScore,
				"gas":        a.GasScore,
				"congestion": a.CongestionScore,
				"total":      a.TotalScore,
			} {
				if score.IsNegative() || score.GreaterThan(one) {
					t.Errorf("%s score = %s, want within [0,1]", name, score)
				}
			}
		})
	}
}

func TestAssessKnownInputs(t *testing.T) {
	scorer, err := NewRiskScorer(defaultScorerParams(), testLogger())
	if err != nil {
		t.Fatalf("NewRiskScorer() error = %v", err)
	}

	a := scorer.Assess(context.Background(), RiskInputs{
		Volatility:      d("0.05"),    // 0.05/0.10 = 0.5
		LiquidityUSD:    d("50000"),   // 1 - 50k/100k = 0.5
		SlippagePct:     d("1"),       // 1/2 = 0.5
		ExecutionTime:   150 * time.Second, // 150s/300s = 0.5
		GasPriceGwei:    d("45"),      // 45/90 = 0.5
		CongestionLevel: d("50"),      // 50/100 = 0.5
	})

	if !a.TotalScore.Equal(d("0.5")) {
		t.Errorf("TotalScore = %s, want 0.5", a.TotalScore)
	}
	if a.Level != domain.RiskMedium {
		t.Errorf("Level = %s, want MEDIUM", a.Level)
	}
	if !a.IsAcceptable {
		t.Error("IsAcceptable = false, want true at max 0.7")
	}
	if a.RecommendedAction != domain.ActionExecuteWithCaution {
		t.Errorf("RecommendedAction = %s, want EXECUTE_WITH_CAUTION", a.RecommendedAction)
	}
}

func TestAssessDegenerateCeilings(t *testing.T) {
	params := defaultScorerParams()
	params.VolatilityCeiling = decimal.Zero
	params.MaxSlippagePct = decimal.Zero
	params.MaxExecutionTime = 0
	params.NormalGasGwei = decimal.Zero
	params.MinLiquidityUSD = decimal.Zero

	scorer, err := NewRiskScorer(params, testLogger())
	if err != nil {
		t.Fatalf("NewRiskScorer() error = %v", err)
	}

	a := scorer.Assess(context.Background(), RiskInputs{
		Volatility:   d("0.01"),
		LiquidityUSD: d("500000"),
	})

	// Zero ceilings mean the dimension cannot be trusted: max risk.
	if !a.VolatilityScore.Equal(decimal.NewFromInt(1)) {
		t.Errorf("VolatilityScore = %s, want 1", a.VolatilityScore)
	}
	if !a.SlippageScore.Equal(decimal.NewFromInt(1)) {
		t.Errorf("SlippageScore = %s, want 1", a.SlippageScore)
	}
	if !a.ExecutionTimeScore.Equal(decimal.NewFromInt(1)) {
		t.Errorf("ExecutionTimeScore = %s, want 1", a.ExecutionTimeScore)
	}
	if !a.GasScore.Equal(decimal.NewFromInt(1)) {
		t.Errorf("GasScore = %s, want 1", a.GasScore)
	}

	// Except liquidity: no floor configured means nothing to fall below.
	if !a.LiquidityScore.IsZero() {
		t.Errorf("LiquidityScore = %s, want 0", a.LiquidityScore)
	}
}

func TestClassifyRiskBoundaries(t *testing.T) {
	tests := []struct {
		score string
		want  domain.RiskLevel
	}{
		{"0", domain.RiskLow},
		{"0.3", domain.RiskLow},
		{"0.30001", domain.RiskMedium},
		{"0.5", domain.RiskMedium},
		{"0.50001", domain.RiskHigh},
		{"0.7", domain.RiskHigh},
		{"0.70001", domain.RiskCritical},
		{"1", domain.RiskCritical},
	}

	for _, tt := range tests {
		if got := domain.ClassifyRisk(d(tt.score)); got != tt.want {
			t.Errorf("ClassifyRisk(%s) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
