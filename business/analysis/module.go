// Package analysis implements the analysis bounded context: liquidity
// validation, risk scoring and the end-to-end opportunity analysis engine.
package analysis

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/analysis/app"
	analysisDI "github.com/fd1az/arb-analysis-engine/business/analysis/di"
	gasfeeDI "github.com/fd1az/arb-analysis-engine/business/gasfee/di"
	pricingDI "github.com/fd1az/arb-analysis-engine/business/pricing/di"
	scannerDI "github.com/fd1az/arb-analysis-engine/business/scanner/di"
	"github.com/fd1az/arb-analysis-engine/internal/config"
	"github.com/fd1az/arb-analysis-engine/internal/di"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/monolith"
)

// Module implements the analysis bounded context.
type Module struct{}

// RegisterServices registers all analysis services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register LiquidityValidator (public - the scanner validates through it)
	di.RegisterToken(c, analysisDI.LiquidityValidator, func(sr di.ServiceRegistry) *app.LiquidityValidator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewLiquidityValidator(
			decimal.NewFromFloat(cfg.Analysis.MaxPriceImpactPct),
			decimal.NewFromFloat(cfg.Analysis.MinLiquidityUSD),
			log,
		)
	})

	// Register RiskScorer (private - internal dependency)
	di.RegisterToken(c, analysisDI.RiskScorer, func(sr di.ServiceRegistry) *app.RiskScorer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		params := app.RiskScorerParams{
			Weights: app.RiskWeights{
				Volatility:    decimal.NewFromFloat(cfg.Analysis.WeightVolatility),
				Liquidity:     decimal.NewFromFloat(cfg.Analysis.WeightLiquidity),
				Slippage:      decimal.NewFromFloat(cfg.Analysis.WeightSlippage),
				ExecutionTime: decimal.NewFromFloat(cfg.Analysis.WeightExecutionTime),
				Gas:           decimal.NewFromFloat(cfg.Analysis.WeightGas),
				Congestion:    decimal.NewFromFloat(cfg.Analysis.WeightCongestion),
			},
			VolatilityCeiling: decimal.NewFromFloat(cfg.Analysis.VolatilityCeiling),
			MinLiquidityUSD:   decimal.NewFromFloat(cfg.Analysis.MinLiquidityUSD),
			MaxSlippagePct:    decimal.NewFromFloat(cfg.Analysis.MaxSlippagePct),
			MaxExecutionTime:  time.Duration(cfg.Analysis.MaxExecutionTimeMs) * time.Millisecond,
			NormalGasGwei:     decimal.NewFromFloat(cfg.Analysis.NormalGasGwei),
			MaxRiskScore:      decimal.NewFromFloat(cfg.Analysis.MaxRiskScore),
		}

		scorer, err := app.NewRiskScorer(params, log)
		if err != nil {
			panic("failed to create risk scorer: " + err.Error())
		}
		return scorer
	})

	// Register Engine (public - the binary drives it)
	di.RegisterToken(c, analysisDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		params := app.EngineParams{
			FreshnessBound:      cfg.Feed.FreshnessBound,
			MinCompositeScore:   decimal.NewFromFloat(cfg.Analysis.MinCompositeScore),
			MinLiquidityUSD:     decimal.NewFromFloat(cfg.Analysis.MinLiquidityUSD),
			NormalGasGwei:       decimal.NewFromFloat(cfg.Analysis.NormalGasGwei),
			DefaultVolatility:   decimal.NewFromFloat(0.04),
			DefaultSlippageRate: decimal.NewFromFloat(cfg.Analysis.DefaultSlippageRate),
			BridgeFeeUSD:        decimal.NewFromFloat(cfg.Analysis.CrossChainBridgeFeeUSD),
			ReferenceAsset:      "USDC",
			Concurrency:         cfg.Scanner.Concurrency,
		}

		engine, err := app.NewEngine(
			params,
			pricingDI.GetProfitCalculator(sr),
			analysisDI.GetLiquidityValidator(sr),
			analysisDI.GetRiskScorer(sr),
			gasfeeDI.GetGasService(sr),
			pricingDI.GetFeedProvider(sr),
			scannerDI.GetScanner(sr),
			nil, // no volatility source wired; the default applies
			log,
		)
		if err != nil {
			panic("failed to create analysis engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup completes module initialization.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	// Force construction so wiring errors surface at startup.
	_ = analysisDI.GetEngine(mono.Services())

	mono.Logger().Info(ctx, "analysis module started")
	return nil
}
