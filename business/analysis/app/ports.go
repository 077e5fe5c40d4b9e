package app

import (
	"context"

	"github.com/shopspring/decimal"

	gasfeeDomain "github.com/fd1az/arb-analysis-engine/business/gasfee/domain"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

// GasEstimator is the gas/fee collaborator. The gas fee context's service
// satisfies it; tests substitute fixed quotes.
type GasEstimator interface {
	// Estimate prices a sequence of on-chain operations.
	Estimate(ctx context.Context, ops []gasfeeDomain.Operation, strategy gasfeeDomain.Strategy) (*gasfeeDomain.GasQuote, error)

	// OptimizeStrategy picks the fastest strategy the profit affords.
	OptimizeStrategy(ctx context.Context, expectedProfitUSD decimal.Decimal, ops []gasfeeDomain.Operation) (gasfeeDomain.Strategy, *gasfeeDomain.GasQuote, error)

	// Congestion reports network load on a 0-100 scale.
	Congestion(ctx context.Context, network string) (*gasfeeDomain.CongestionLevel, error)
}

// VolatilitySource supplies a recent price-volatility estimate for a token
// (fraction, e.g. 0.04 for 4%). A nil source falls back to the configured
// default.
type VolatilitySource interface {
	Volatility(ctx context.Context, token pricingDomain.Token) (decimal.Decimal, error)
}
