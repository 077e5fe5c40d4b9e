// Package di contains dependency injection tokens for the analysis context.
package di

import (
	"github.com/fd1az/arb-analysis-engine/business/analysis/app"
	"github.com/fd1az/arb-analysis-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine             = di.NewToken[*app.Engine]("analysis.Engine")
	LiquidityValidator = di.NewToken[*app.LiquidityValidator]("analysis.LiquidityValidator")
)

// Private dependency tokens - internal to the analysis module
var (
	RiskScorer = di.NewToken[*app.RiskScorer]("analysis:riskScorer")
)

// Helper functions for type-safe access
func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetLiquidityValidator(c di.ServiceRegistry) *app.LiquidityValidator {
	return di.GetToken(c, LiquidityValidator)
}

func GetRiskScorer(c di.ServiceRegistry) *app.RiskScorer {
	return di.GetToken(c, RiskScorer)
}
