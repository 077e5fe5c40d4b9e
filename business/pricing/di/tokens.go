// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/arb-analysis-engine/business/pricing/app"
	"github.com/fd1az/arb-analysis-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ProfitCalculator = di.NewToken[*app.ProfitCalculator]("pricing.ProfitCalculator")
	FeedProvider     = di.NewToken[app.FeedProvider]("pricing.FeedProvider")
)

// Helper functions for type-safe access
func GetProfitCalculator(c di.ServiceRegistry) *app.ProfitCalculator {
	return di.GetToken(c, ProfitCalculator)
}

func GetFeedProvider(c di.ServiceRegistry) app.FeedProvider {
	return di.GetToken(c, FeedProvider)
}
