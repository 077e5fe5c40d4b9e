// Package app contains application services and port definitions for the gas fee context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/gasfee/domain"
)

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GetGasPrice retrieves the current suggested gas price.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)

	// EstimateGas estimates the gas needed for a transaction.
	EstimateGas(ctx context.Context, data []byte, to string) (uint64, error)
}

// CongestionMonitor reports network load on a 0-100 scale.
type CongestionMonitor interface {
	// Level returns the current congestion reading for the network.
	Level(ctx context.Context, network string) (*domain.CongestionLevel, error)
}

// NativePriceSource converts gas costs into reference currency.
type NativePriceSource interface {
	// NativeTokenPriceUSD returns the USD price of the network's gas token.
	NativeTokenPriceUSD(ctx context.Context, network string) (decimal.Decimal, error)
}
