// Package domain contains the core domain types for the gas fee context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Gwei      decimal.Decimal
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{
		Wei:       wei,
		Gwei:      decimal.NewFromBigInt(wei, -9),
		Timestamp: time.Now(),
	}
}

// OperationKind names one on-chain step of a trade.
type OperationKind string

// Operation kinds with distinct gas profiles.
const (
	OpApprove OperationKind = "APPROVE"
	OpSwap    OperationKind = "SWAP"
	OpBridge  OperationKind = "BRIDGE"
	OpWrap    OperationKind = "WRAP"
)

// defaultGasLimits holds the per-kind gas limit used when the node cannot
// estimate (simulated pools, unsupported calldata).
var defaultGasLimits = map[OperationKind]uint64{
	OpApprove: 55_000,
	OpSwap:    180_000,
	OpBridge:  350_000,
	OpWrap:    45_000,
}

// Operation is one on-chain step the estimator prices.
type Operation struct {
	Kind     OperationKind
	Network  string
	GasLimit uint64 // 0 means use the kind's default
}

// Limit returns the operation's gas limit, falling back to the kind default.
func (o Operation) Limit() uint64 {
	if o.GasLimit > 0 {
		return o.GasLimit
	}
	if limit, ok := defaultGasLimits[o.Kind]; ok {
		return limit
	}
	return defaultGasLimits[OpSwap]
}

// Strategy selects a gas price tier.
type Strategy string

// Gas strategies, ordered by price.
const (
	StrategyEconomical Strategy = "economical"
	StrategyStandard   Strategy = "standard"
	StrategyFast       Strategy = "fast"
)

// Multiplier returns the strategy's factor over the suggested gas price.
func (s Strategy) Multiplier() decimal.Decimal {
	switch s {
	case StrategyEconomical:
		return decimal.RequireFromString("0.85")
	case StrategyFast:
		return decimal.RequireFromString("1.4")
	default:
		return decimal.NewFromInt(1)
	}
}

// ConfirmationTime returns the expected worst-case confirmation latency.
func (s Strategy) ConfirmationTime() time.Duration {
	switch s {
	case StrategyEconomical:
		return 5 * time.Minute
	case StrategyFast:
		return 30 * time.Second
	default:
		return 90 * time.Second
	}
}

// GasQuote is the total cost estimate for a sequence of operations.
type GasQuote struct {
	TotalGasLimit       uint64
	GasPriceGwei        decimal.Decimal
	TotalCostUSD        decimal.Decimal
	Strategy            Strategy
	MaxConfirmationTime time.Duration
	Timestamp           time.Time
}

// CongestionLevel is a 0-100 reading of network load.
type CongestionLevel struct {
	Score     decimal.Decimal // 0 idle .. 100 saturated
	Network   string
	Timestamp time.Time
}
