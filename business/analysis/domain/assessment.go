// Package domain contains the core domain types for the analysis context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	ammDomain "github.com/fd1az/arb-analysis-engine/business/amm/domain"
)

// RiskLevel classifies a composite risk score.
type RiskLevel string

// Risk levels with exact boundaries: LOW <=0.3, MEDIUM <=0.5, HIGH <=0.7,
// CRITICAL above.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ClassifyRisk maps a total risk score onto its level.
func ClassifyRisk(score decimal.Decimal) RiskLevel {
	switch {
	case score.LessThanOrEqual(decimal.RequireFromString("0.3")):
		return RiskLow
	case score.LessThanOrEqual(decimal.RequireFromString("0.5")):
		return RiskMedium
	case score.LessThanOrEqual(decimal.RequireFromString("0.7")):
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskAction is the action recommended for a risk level.
type RiskAction string

// Risk actions mirroring the classification.
const (
	ActionExecute            RiskAction = "EXECUTE"
	ActionExecuteWithCaution RiskAction = "EXECUTE_WITH_CAUTION"
	ActionMonitor            RiskAction = "MONITOR"
	ActionAvoid              RiskAction = "AVOID"
)

// RiskAssessment combines six weighted sub-scores into one composite score.
type RiskAssessment struct {
	VolatilityScore    decimal.Decimal
	LiquidityScore     decimal.Decimal
	SlippageScore      decimal.Decimal
	ExecutionTimeScore decimal.Decimal
	GasScore           decimal.Decimal
	CongestionScore    decimal.Decimal

	TotalScore        decimal.Decimal // always in [0,1]
	Level             RiskLevel
	IsAcceptable      bool // total <= configured max (default 0.7)
	RecommendedAction RiskAction
}

// DepthLevel classifies trade size against total pool reserve.
type DepthLevel string

// Depth levels: LOW <=1%, MEDIUM <=5%, HIGH <=10%, CRITICAL above.
const (
	DepthLow      DepthLevel = "LOW"
	DepthMedium   DepthLevel = "MEDIUM"
	DepthHigh     DepthLevel = "HIGH"
	DepthCritical DepthLevel = "CRITICAL"
)

// LiquidityRiskFlag names one detected liquidity risk.
type LiquidityRiskFlag string

// Liquidity risk flags, each contributing a fixed score.
const (
	FlagInsufficientLiquidity LiquidityRiskFlag = "INSUFFICIENT_LIQUIDITY"
	FlagLowUtilization        LiquidityRiskFlag = "LOW_UTILIZATION"
	FlagHighDepthRatio        LiquidityRiskFlag = "HIGH_DEPTH_RATIO"
	FlagExcessiveImpact       LiquidityRiskFlag = "EXCESSIVE_IMPACT"
)

// LiquidityRisk is one flagged risk with its fixed score contribution.
type LiquidityRisk struct {
	Flag   LiquidityRiskFlag
	Score  decimal.Decimal
	Detail string
}

// LiquidityMetrics summarizes a pool's depth and activity.
type LiquidityMetrics struct {
	TotalLiquidityUSD decimal.Decimal
	UtilizationRatio  decimal.Decimal // 24h volume over liquidity
}

// LiquidityValidation is the full liquidity verdict for one trade.
type LiquidityValidation struct {
	Impact     *ammDomain.PriceImpactResult
	Metrics    LiquidityMetrics
	Depth      DepthLevel
	DepthRatio decimal.Decimal // trade amount over total reserve

	Risks     []LiquidityRisk
	RiskScore decimal.Decimal
	RiskLevel RiskLevel

	// IsValid = acceptable impact AND depth below critical AND liquidity
	// risk below high.
	IsValid         bool
	Recommendations []string // ordered by severity
}

// Recommendation is the final verdict on an opportunity.
type Recommendation string

// Final recommendations.
const (
	ExecuteImmediately    Recommendation = "EXECUTE_IMMEDIATELY"
	ExecuteWithMonitoring Recommendation = "EXECUTE_WITH_MONITORING"
	ExecuteWithCaution    Recommendation = "EXECUTE_WITH_CAUTION"
	DoNotExecute          Recommendation = "DO_NOT_EXECUTE"
)

// PlanStep is one step of an execution plan.
type PlanStep struct {
	Number        int
	Description   string
	EstimatedTime time.Duration
}

// ExecutionPlan lays out the on-chain operations for an approved opportunity.
type ExecutionPlan struct {
	Steps         []PlanStep
	EstimatedTime time.Duration
	GasStrategy   string
}

// FinalAssessment is the merged verdict of the full analysis pipeline.
// It is a read-only artifact of one analysis call.
type FinalAssessment struct {
	CompositeScore  decimal.Decimal
	ProfitScore     decimal.Decimal
	LiquidityScore  decimal.Decimal
	RiskScore       decimal.Decimal
	GasScore        decimal.Decimal
	IsExecutable    bool
	Recommendation  Recommendation
	CriticalFactors []string
	Plan            *ExecutionPlan // nil unless executable
	Alternatives    []string
}
