package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/analysis/domain"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

// RiskWeights holds the relative weight of each risk dimension. They must
// sum to 1; config validation enforces this at startup.
type RiskWeights struct {
	Volatility    decimal.Decimal
	Liquidity     decimal.Decimal
	Slippage      decimal.Decimal
	ExecutionTime decimal.Decimal
	Gas           decimal.Decimal
	Congestion    decimal.Decimal
}

// RiskInputs carries the raw market observations the scorer normalizes.
type RiskInputs struct {
	Volatility      decimal.Decimal // e.g. 0.04 for 4%
	LiquidityUSD    decimal.Decimal
	SlippagePct     decimal.Decimal // percentage, e.g. 0.8
	ExecutionTime   time.Duration
	GasPriceGwei    decimal.Decimal
	CongestionLevel decimal.Decimal // 0..100
}

// RiskScorer normalizes six market observations into [0,1] sub-scores and
// combines them with configured weights.
type RiskScorer struct {
	weights RiskWeights

	volatilityCeiling decimal.Decimal // fraction, e.g. 0.10
	minLiquidityUSD   decimal.Decimal
	maxSlippagePct    decimal.Decimal
	maxExecutionTime  time.Duration
	normalGasGwei     decimal.Decimal
	maxRiskScore      decimal.Decimal

	logger logger.LoggerInterface
}

// RiskScorerParams bundles the scorer's configuration thresholds.
type RiskScorerParams struct {
	Weights           RiskWeights
	VolatilityCeiling decimal.Decimal
	MinLiquidityUSD   decimal.Decimal
	MaxSlippagePct    decimal.Decimal
	MaxExecutionTime  time.Duration
	NormalGasGwei     decimal.Decimal
	MaxRiskScore      decimal.Decimal
}

// NewRiskScorer creates a scorer from validated configuration.
func NewRiskScorer(params RiskScorerParams, log logger.LoggerInterface) (*RiskScorer, error) {
	sum := params.Weights.Volatility.
		Add(params.Weights.Liquidity).
		Add(params.Weights.Slippage).
		Add(params.Weights.ExecutionTime).
		Add(params.Weights.Gas).
		Add(params.Weights.Congestion)
	if !sum.Equal(decimal.NewFromInt(1)) {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("risk weights sum to %s, want 1", sum))
	}
	return &RiskScorer{
		weights:           params.Weights,
		volatilityCeiling: params.VolatilityCeiling,
		minLiquidityUSD:   params.MinLiquidityUSD,
		maxSlippagePct:    params.MaxSlippagePct,
		maxExecutionTime:  params.MaxExecutionTime,
		normalGasGwei:     params.NormalGasGwei,
		maxRiskScore:      params.MaxRiskScore,
		logger:            log,
	}, nil
}

// Assess scores the inputs. Every sub-score and the total land in [0,1];
// degenerate thresholds (zero ceilings) yield the maximum sub-score rather
// than dividing by zero.
func (s *RiskScorer) Assess(ctx context.Context, in RiskInputs) *domain.RiskAssessment {
	assessment := &domain.RiskAssessment{
		VolatilityScore:    ratioScore(in.Volatility, s.volatilityCeiling),
		LiquidityScore:     s.liquidityScore(in.LiquidityUSD),
		SlippageScore:      ratioScore(in.SlippagePct, s.maxSlippagePct),
		ExecutionTimeScore: durationScore(in.ExecutionTime, s.maxExecutionTime),
		GasScore:           ratioScore(in.GasPriceGwei, s.normalGasGwei.Mul(decimal.NewFromInt(3))),
		CongestionScore:    ratioScore(in.CongestionLevel, decimal.NewFromInt(100)),
	}

	total := assessment.VolatilityScore.Mul(s.weights.Volatility).
		Add(assessment.LiquidityScore.Mul(s.weights.Liquidity)).
		Add(assessment.SlippageScore.Mul(s.weights.Slippage)).
		Add(assessment.ExecutionTimeScore.Mul(s.weights.ExecutionTime)).
		Add(assessment.GasScore.Mul(s.weights.Gas)).
		Add(assessment.CongestionScore.Mul(s.weights.Congestion))

	assessment.TotalScore = pricingDomain.Clamp01(total)
	assessment.Level = domain.ClassifyRisk(assessment.TotalScore)
	assessment.IsAcceptable = assessment.TotalScore.LessThanOrEqual(s.maxRiskScore)
	assessment.RecommendedAction = actionFor(assessment.Level)

	s.logger.Debug(ctx, "risk assessed",
		"total", assessment.TotalScore.String(),
		"level", string(assessment.Level),
		"acceptable", assessment.IsAcceptable,
	)

	return assessment
}

// liquidityScore rises as liquidity falls below the configured minimum:
// clamp(1 - liquidity/min).
func (s *RiskScorer) liquidityScore(liquidityUSD decimal.Decimal) decimal.Decimal {
	if !s.minLiquidityUSD.IsPositive() {
		return decimal.Zero
	}
	return pricingDomain.Clamp01(decimal.NewFromInt(1).Sub(liquidityUSD.Div(s.minLiquidityUSD)))
}

func ratioScore(value, ceiling decimal.Decimal) decimal.Decimal {
	if !ceiling.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return pricingDomain.Clamp01(value.Div(ceiling))
}

func durationScore(value, ceiling time.Duration) decimal.Decimal {
	if ceiling <= 0 {
		return decimal.NewFromInt(1)
	}
	return pricingDomain.Clamp01(
		decimal.NewFromInt(value.Milliseconds()).Div(decimal.NewFromInt(ceiling.Milliseconds())),
	)
}

func actionFor(level domain.RiskLevel) domain.RiskAction {
	switch level {
	case domain.RiskLow:
		return domain.ActionExecute
	case domain.RiskMedium:
		return domain.ActionExecuteWithCaution
	case domain.RiskHigh:
		return domain.ActionMonitor
	default:
		return domain.ActionAvoid
	}
}
