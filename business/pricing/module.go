// Package pricing implements the pricing bounded context: market data feeds,
// spread math and cost-adjusted profit calculation.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/pricing/app"
	pricingDI "github.com/fd1az/arb-analysis-engine/business/pricing/di"
	"github.com/fd1az/arb-analysis-engine/business/pricing/infra/dexfeed"
	"github.com/fd1az/arb-analysis-engine/internal/config"
	"github.com/fd1az/arb-analysis-engine/internal/di"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register the feed provider (public - scanner and analysis depend on it)
	di.RegisterToken(c, pricingDI.FeedProvider, func(sr di.ServiceRegistry) app.FeedProvider {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		feedCfg := dexfeed.ProviderConfig{
			WebSocketURL:   cfg.Feed.WebSocketURL,
			HTTPURL:        cfg.Feed.HTTPURL,
			Venues:         cfg.Feed.Venues,
			Networks:       cfg.Feed.Networks,
			Symbols:        cfg.Feed.Symbols,
			Pairs:          cfg.Feed.Pairs,
			StaleTimeout:   cfg.Feed.FreshnessBound,
			RequestTimeout: cfg.Feed.RequestTimeout,
			RequestsPerMin: cfg.Feed.RequestsPerMinute,
		}
		provider, err := dexfeed.NewProvider(feedCfg, log)
		if err != nil {
			panic("failed to create feed provider: " + err.Error())
		}
		return provider
	})

	// Register the profit calculator (public)
	di.RegisterToken(c, pricingDI.ProfitCalculator, func(sr di.ServiceRegistry) *app.ProfitCalculator {
		cfg := sr.Get("config").(*config.Config)
		return app.NewProfitCalculator(decimal.NewFromFloat(cfg.Analysis.MinSpreadPct))
	})

	return nil
}

// Startup brings the feed online.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	feed := pricingDI.GetFeedProvider(mono.Services())

	if connector, ok := feed.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect feed", "error", err)
			// Don't fail - REST fallback still serves requests
		}
	}

	log.Info(ctx, "pricing module started")
	return nil
}
