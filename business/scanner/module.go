// Package scanner implements the scanner bounded context: multi-venue
// opportunity detection, ranking and validation.
package scanner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	analysisDI "github.com/fd1az/arb-analysis-engine/business/analysis/di"
	pricingDI "github.com/fd1az/arb-analysis-engine/business/pricing/di"
	"github.com/fd1az/arb-analysis-engine/business/scanner/app"
	scannerDI "github.com/fd1az/arb-analysis-engine/business/scanner/di"
	"github.com/fd1az/arb-analysis-engine/internal/config"
	"github.com/fd1az/arb-analysis-engine/internal/di"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/monolith"
)

// Module implements the scanner bounded context.
type Module struct{}

// RegisterServices registers the scanner with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, scannerDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		feed := pricingDI.GetFeedProvider(sr)
		calc := pricingDI.GetProfitCalculator(sr)
		liquidity := analysisDI.GetLiquidityValidator(sr)

		params := app.ScannerParams{
			MinSpreadBps:    decimal.NewFromFloat(cfg.Scanner.MinSpreadBps),
			MinNetProfitPct: decimal.NewFromFloat(cfg.Analysis.MinNetProfitPct),
			MaxResults:      cfg.Scanner.MaxResults,
			Concurrency:     cfg.Scanner.Concurrency,
			VenueTimeout:    cfg.Scanner.VenueTimeout,
			CacheTTL:        cfg.Scanner.CacheTTL,
			FreshnessBound:  cfg.Feed.FreshnessBound,

			MaxPriceImpactPct:   decimal.NewFromFloat(cfg.Analysis.MaxPriceImpactPct),
			DefaultSlippageRate: decimal.NewFromFloat(cfg.Analysis.DefaultSlippageRate),
			BridgeFeeUSD:        decimal.NewFromFloat(cfg.Analysis.CrossChainBridgeFeeUSD),
			ReferenceAsset:      "USDC",

			BaseExecutionTime:    time.Duration(cfg.Analysis.BaseExecutionTimeMs) * time.Millisecond,
			CrossChainTimeFactor: decimal.NewFromFloat(cfg.Analysis.CrossChainTimeFactor),
			HighComplexityFactor: decimal.NewFromFloat(cfg.Analysis.HighComplexityFactor),
		}

		scanner, err := app.NewScanner(params, feed, calc, liquidity, log)
		if err != nil {
			panic("failed to create scanner: " + err.Error())
		}
		return scanner
	})

	return nil
}

// Startup completes module initialization.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	// Force construction so wiring errors surface at startup, not first scan.
	_ = scannerDI.GetScanner(mono.Services())

	mono.Logger().Info(ctx, "scanner module started")
	return nil
}
