// Package app contains the opportunity scanning service for the scanner context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

// LiquidityChecker is the scanner's quick pass/fail liquidity gate. The
// analysis context provides the full implementation; the scanner only needs
// the verdict.
type LiquidityChecker interface {
	ValidateLiquidity(ctx context.Context, pool pricingDomain.PoolState, tradeAmount, liquidityUSD decimal.Decimal) (bool, error)
}
