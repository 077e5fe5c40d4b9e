// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

// FeedProvider is the price/liquidity feed collaborator. Implementations
// must tag every quote and pool snapshot with a freshness timestamp; the
// engine rejects anything older than the configured bound.
type FeedProvider interface {
	// GetQuotes returns one quote per venue that answered for the token.
	// A venue that fails to respond is omitted, not an error; the call
	// fails only when no venue answered.
	GetQuotes(ctx context.Context, token domain.Token, venues []string) ([]domain.PriceQuote, error)

	// GetPoolState returns the pool snapshot backing a venue's quote for
	// the given pair symbol (e.g. "ETH-USDC").
	GetPoolState(ctx context.Context, venue, pair string) (domain.PoolState, error)
}
