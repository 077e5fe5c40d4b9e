package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

var (
	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// SpreadDirection indicates the profitable trade direction between two prices.
type SpreadDirection string

const (
	SpreadAToB SpreadDirection = "A_TO_B" // buy at A (lower), sell at B
	SpreadBToA SpreadDirection = "B_TO_A" // buy at B (lower), sell at A
	SpreadNone SpreadDirection = "NONE"
)

// Spread represents the price difference between two venues.
// Absolute and RelativePct are symmetric in their arguments; only the
// direction flips when the prices are swapped.
type Spread struct {
	PriceA      decimal.Decimal
	PriceB      decimal.Decimal
	Absolute    decimal.Decimal // |priceB - priceA|
	RelativePct decimal.Decimal // absolute / lower price * 100
	BasisPoints decimal.Decimal
	Direction   SpreadDirection
	IsValid     bool // relative spread meets the configured minimum
}

// CalculateSpread computes the spread between two venue prices.
// minSpreadPct is the validity floor (0.1 means 0.1%). Non-positive prices
// are rejected.
func CalculateSpread(priceA, priceB, minSpreadPct decimal.Decimal) (Spread, error) {
	if !priceA.IsPositive() || !priceB.IsPositive() {
		return Spread{}, apperror.Validation(apperror.CodeInvalidInput, "spread requires positive prices")
	}

	absolute := priceB.Sub(priceA).Abs()

	low := priceA
	direction := SpreadAToB
	switch priceA.Cmp(priceB) {
	case 1:
		low = priceB
		direction = SpreadBToA
	case 0:
		direction = SpreadNone
	}

	relativePct := absolute.Div(low).Mul(hundred)
	bps := absolute.Div(low).Mul(tenThousand)

	return Spread{
		PriceA:      priceA,
		PriceB:      priceB,
		Absolute:    absolute,
		RelativePct: relativePct,
		BasisPoints: bps,
		Direction:   direction,
		IsValid:     relativePct.GreaterThanOrEqual(minSpreadPct),
	}, nil
}

// BuySellPrices resolves the spread's direction into (buy, sell) prices.
func (s Spread) BuySellPrices() (buy, sell decimal.Decimal) {
	if s.Direction == SpreadBToA {
		return s.PriceB, s.PriceA
	}
	return s.PriceA, s.PriceB
}

// Clamp01 clamps d into [0, 1]. Shared by every score normalization.
func Clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}
