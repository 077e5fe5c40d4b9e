// Package app contains application services for the analysis context.
package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	ammDomain "github.com/fd1az/arb-analysis-engine/business/amm/domain"
	"github.com/fd1az/arb-analysis-engine/business/analysis/domain"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

// Fixed score contributions per flagged liquidity risk.
var (
	scoreInsufficientLiquidity = decimal.RequireFromString("0.4")
	scoreLowUtilization        = decimal.RequireFromString("0.2")
	scoreHighDepthRatio        = decimal.RequireFromString("0.3")
	scoreExcessiveImpact       = decimal.RequireFromString("0.3")

	lowUtilizationFloor = decimal.RequireFromString("0.05") // 24h volume under 5% of liquidity

	depthLowBound    = decimal.RequireFromString("0.01")
	depthMediumBound = decimal.RequireFromString("0.05")
	depthHighBound   = decimal.RequireFromString("0.10")
)

// familyFloorFactor scales the base minimum-liquidity floor per venue
// family. Peg-asset pools only make sense at far deeper liquidity.
var familyFloorFactor = map[pricingDomain.VenueFamily]decimal.Decimal{
	pricingDomain.FamilyConstantProduct: decimal.RequireFromString("0.5"),
	pricingDomain.FamilyConcentrated:    decimal.NewFromInt(1),
	pricingDomain.FamilyWeighted:        decimal.RequireFromString("0.75"),
	pricingDomain.FamilyStableSwap:      decimal.NewFromInt(5),
}

// LiquidityValidator wraps the AMM model set with liquidity-depth analysis,
// per-family minimum-liquidity gates and liquidity-risk scoring.
type LiquidityValidator struct {
	maxImpact     decimal.Decimal // fraction, e.g. 0.05
	baseMinLiqUSD decimal.Decimal
	logger        logger.LoggerInterface
}

// NewLiquidityValidator creates a validator. maxImpactPct and
// minLiquidityUSD come from the analysis configuration.
func NewLiquidityValidator(maxImpactPct, minLiquidityUSD decimal.Decimal, log logger.LoggerInterface) *LiquidityValidator {
	return &LiquidityValidator{
		maxImpact:     maxImpactPct.Div(decimal.NewFromInt(100)),
		baseMinLiqUSD: minLiquidityUSD,
		logger:        log,
	}
}

// MinLiquidityFloor returns the USD liquidity floor for a venue family.
func (v *LiquidityValidator) MinLiquidityFloor(family pricingDomain.VenueFamily) decimal.Decimal {
	factor, ok := familyFloorFactor[family]
	if !ok {
		factor = decimal.NewFromInt(1)
	}
	return v.baseMinLiqUSD.Mul(factor)
}

// Validate simulates tradeAmount against the pool and produces the full
// liquidity verdict. liquidityUSD is the venue's available liquidity in
// reference currency (from the quote).
func (v *LiquidityValidator) Validate(
	ctx context.Context,
	pool pricingDomain.PoolState,
	tradeAmount, liquidityUSD decimal.Decimal,
) (*domain.LiquidityValidation, error) {
	model, err := ammDomain.ModelFor(pool.Family)
	if err != nil {
		return nil, err
	}

	impact, err := model.PriceImpact(pool, tradeAmount, v.maxImpact)
	if err != nil {
		return nil, err
	}

	metrics := domain.LiquidityMetrics{TotalLiquidityUSD: liquidityUSD}
	if liquidityUSD.IsPositive() {
		metrics.UtilizationRatio = pool.Volume24h.Div(liquidityUSD)
	}

	depthRatio := decimal.Zero
	if total := pool.TotalReserve(); total.IsPositive() {
		depthRatio = tradeAmount.Div(total)
	}
	depth := classifyDepth(depthRatio)

	var risks []domain.LiquidityRisk
	floor := v.MinLiquidityFloor(pool.Family)
	if liquidityUSD.LessThan(floor) {
		risks = append(risks, domain.LiquidityRisk{
			Flag:   domain.FlagInsufficientLiquidity,
			Score:  scoreInsufficientLiquidity,
			Detail: fmt.Sprintf("liquidity %s below %s floor %s", liquidityUSD, pool.Family, floor),
		})
	}
	if metrics.UtilizationRatio.LessThan(lowUtilizationFloor) {
		risks = append(risks, domain.LiquidityRisk{
			Flag:   domain.FlagLowUtilization,
			Score:  scoreLowUtilization,
			Detail: fmt.Sprintf("24h volume is %s of liquidity", metrics.UtilizationRatio),
		})
	}
	if depth == domain.DepthHigh || depth == domain.DepthCritical {
		risks = append(risks, domain.LiquidityRisk{
			Flag:   domain.FlagHighDepthRatio,
			Score:  scoreHighDepthRatio,
			Detail: fmt.Sprintf("trade is %s of total reserve", depthRatio),
		})
	}
	if !impact.IsAcceptable {
		risks = append(risks, domain.LiquidityRisk{
			Flag:   domain.FlagExcessiveImpact,
			Score:  scoreExcessiveImpact,
			Detail: fmt.Sprintf("price impact %s above maximum %s", impact.PriceImpact, v.maxImpact),
		})
	}

	riskScore := decimal.Zero
	for _, r := range risks {
		riskScore = riskScore.Add(r.Score)
	}
	riskScore = pricingDomain.Clamp01(riskScore)
	riskLevel := domain.ClassifyRisk(riskScore)

	isValid := impact.IsAcceptable &&
		depth != domain.DepthCritical &&
		riskLevel != domain.RiskHigh && riskLevel != domain.RiskCritical

	validation := &domain.LiquidityValidation{
		Impact:          impact,
		Metrics:         metrics,
		Depth:           depth,
		DepthRatio:      depthRatio,
		Risks:           risks,
		RiskScore:       riskScore,
		RiskLevel:       riskLevel,
		IsValid:         isValid,
		Recommendations: remediation(depth, riskLevel, impact.IsAcceptable),
	}

	if !isValid {
		v.logger.Debug(ctx, "liquidity validation failed",
			"venue", pool.Venue,
			"family", string(pool.Family),
			"depth", string(depth),
			"risk_score", riskScore.String(),
		)
	}

	return validation, nil
}

// ValidateLiquidity is the slim verdict used by the opportunity scanner.
func (v *LiquidityValidator) ValidateLiquidity(
	ctx context.Context,
	pool pricingDomain.PoolState,
	tradeAmount, liquidityUSD decimal.Decimal,
) (bool, error) {
	validation, err := v.Validate(ctx, pool, tradeAmount, liquidityUSD)
	if err != nil {
		return false, err
	}
	return validation.IsValid, nil
}

func classifyDepth(ratio decimal.Decimal) domain.DepthLevel {
	switch {
	case ratio.LessThanOrEqual(depthLowBound):
		return domain.DepthLow
	case ratio.LessThanOrEqual(depthMediumBound):
		return domain.DepthMedium
	case ratio.LessThanOrEqual(depthHighBound):
		return domain.DepthHigh
	default:
		return domain.DepthCritical
	}
}

// remediation orders recommendations by severity: reduce size, then split
// the trade, then avoid it entirely.
func remediation(depth domain.DepthLevel, risk domain.RiskLevel, impactOK bool) []string {
	var recs []string

	if !impactOK || depth == domain.DepthMedium || depth == domain.DepthHigh {
		recs = append(recs, "reduce trade size to lower price impact")
	}
	if depth == domain.DepthHigh || risk == domain.RiskHigh {
		recs = append(recs, "split the trade across venues or time")
	}
	if depth == domain.DepthCritical || risk == domain.RiskCritical {
		recs = append(recs, "avoid this trade at the current size")
	}

	return recs
}
