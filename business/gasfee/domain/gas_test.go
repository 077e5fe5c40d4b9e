package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewGasPrice(t *testing.T) {
	price := NewGasPrice(big.NewInt(25_000_000_000))

	if !price.Gwei.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Gwei = %s, want 25", price.Gwei)
	}
	if price.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestStrategyMultiplier(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{StrategyEconomical, "0.85"},
		{StrategyStandard, "1"},
		{StrategyFast, "1.4"},
		{Strategy("unknown"), "1"},
	}

	for _, tt := range tests {
		if got := tt.strategy.Multiplier(); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Multiplier(%s) = %s, want %s", tt.strategy, got, tt.want)
		}
	}
}

func TestStrategyConfirmationTime(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     time.Duration
	}{
		{StrategyEconomical, 5 * time.Minute},
		{StrategyStandard, 90 * time.Second},
		{StrategyFast, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := tt.strategy.ConfirmationTime(); got != tt.want {
			t.Errorf("ConfirmationTime(%s) = %s, want %s", tt.strategy, got, tt.want)
		}
	}
}

func TestOperationLimit(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want uint64
	}{
		{"approve default", Operation{Kind: OpApprove}, 55_000},
		{"swap default", Operation{Kind: OpSwap}, 180_000},
		{"bridge default", Operation{Kind: OpBridge}, 350_000},
		{"wrap default", Operation{Kind: OpWrap}, 45_000},
		{"explicit limit wins", Operation{Kind: OpSwap, GasLimit: 91_000}, 91_000},
		{"unknown kind falls back to swap", Operation{Kind: OperationKind("STAKE")}, 180_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Limit(); got != tt.want {
				t.Errorf("Limit() = %d, want %d", got, tt.want)
			}
		})
	}
}
