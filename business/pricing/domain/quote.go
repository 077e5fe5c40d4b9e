package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

// VenueFamily tags the AMM protocol family a pool belongs to.
type VenueFamily string

// Supported venue families.
const (
	FamilyConstantProduct VenueFamily = "constant-product"
	FamilyConcentrated    VenueFamily = "concentrated-liquidity"
	FamilyWeighted        VenueFamily = "weighted-pool"
	FamilyStableSwap      VenueFamily = "stable-swap"
)

// PriceQuote is one venue's price for a token, tagged with freshness and
// reliability metadata. Quotes are produced per scan cycle and expire after
// the freshness bound.
type PriceQuote struct {
	Venue        string
	Network      string
	Price        decimal.Decimal
	FeeRate      decimal.Decimal // e.g. 0.003 for 30 bps
	Reliability  decimal.Decimal // venue reliability score, 0..1
	LiquidityUSD decimal.Decimal // available liquidity in reference currency
	Timestamp    time.Time
	Simulated    bool // placeholder/simulated payload marker
}

// Age returns how old the quote is relative to now.
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.Timestamp)
}

// IsStale reports whether the quote is older than the freshness bound.
func (q PriceQuote) IsStale(now time.Time, bound time.Duration) bool {
	return q.Age(now) > bound
}

// Validate checks the quote's structural invariants.
func (q PriceQuote) Validate() error {
	if q.Venue == "" {
		return apperror.Validation(apperror.CodeRequiredField, "quote venue")
	}
	if !q.Price.IsPositive() {
		return apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("venue %s: non-positive price", q.Venue))
	}
	if q.Reliability.IsNegative() || q.Reliability.GreaterThan(decimal.NewFromInt(1)) {
		return apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("venue %s: reliability outside [0,1]", q.Venue))
	}
	return nil
}

// TickRange bounds the active liquidity of a concentrated pool.
type TickRange struct {
	Lower int32
	Upper int32
}

// PoolState is a point-in-time snapshot of one AMM pool. Which fields are
// populated depends on the venue family:
//
//	constant-product:       ReserveIn, ReserveOut
//	concentrated-liquidity: Liquidity, CurrentTick, Ticks
//	weighted-pool:          ReserveIn, ReserveOut, WeightIn, WeightOut
//	stable-swap:            Reserves, Amplification
type PoolState struct {
	Venue   string
	Network string
	Family  VenueFamily

	ReserveIn  decimal.Decimal
	ReserveOut decimal.Decimal

	Liquidity   decimal.Decimal
	CurrentTick int32
	Ticks       TickRange

	WeightIn  decimal.Decimal
	WeightOut decimal.Decimal

	Reserves      []decimal.Decimal
	Amplification decimal.Decimal

	FeeRate   decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
	Simulated bool
}

// IsStale reports whether the snapshot is older than the freshness bound.
func (p PoolState) IsStale(now time.Time, bound time.Duration) bool {
	return now.Sub(p.Timestamp) > bound
}

// TotalReserve returns the sum of all pool reserves, used for depth analysis.
func (p PoolState) TotalReserve() decimal.Decimal {
	switch p.Family {
	case FamilyStableSwap:
		total := decimal.Zero
		for _, r := range p.Reserves {
			total = total.Add(r)
		}
		return total
	case FamilyConcentrated:
		return p.Liquidity
	default:
		return p.ReserveIn.Add(p.ReserveOut)
	}
}

// Validate rejects pools with non-positive reserves or liquidity, and fee
// rates outside [0,1). A pool failing validation must not reach a model.
func (p PoolState) Validate() error {
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperror.Validation(apperror.CodePoolStateInvalid,
			fmt.Sprintf("venue %s: fee rate %s outside [0,1)", p.Venue, p.FeeRate))
	}

	switch p.Family {
	case FamilyConstantProduct:
		if !p.ReserveIn.IsPositive() || !p.ReserveOut.IsPositive() {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: non-positive reserves", p.Venue))
		}
	case FamilyConcentrated:
		if !p.Liquidity.IsPositive() {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: non-positive liquidity", p.Venue))
		}
		if p.Ticks.Lower >= p.Ticks.Upper {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: inverted tick range [%d, %d]", p.Venue, p.Ticks.Lower, p.Ticks.Upper))
		}
	case FamilyWeighted:
		if !p.ReserveIn.IsPositive() || !p.ReserveOut.IsPositive() {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: non-positive reserves", p.Venue))
		}
		if !p.WeightIn.IsPositive() || !p.WeightOut.IsPositive() {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: non-positive weights", p.Venue))
		}
	case FamilyStableSwap:
		if len(p.Reserves) < 2 {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: stable-swap needs at least 2 reserves", p.Venue))
		}
		for i, r := range p.Reserves {
			if !r.IsPositive() {
				return apperror.Validation(apperror.CodePoolStateInvalid,
					fmt.Sprintf("venue %s: non-positive reserve at index %d", p.Venue, i))
			}
		}
		if !p.Amplification.IsPositive() {
			return apperror.Validation(apperror.CodePoolStateInvalid,
				fmt.Sprintf("venue %s: non-positive amplification", p.Venue))
		}
	default:
		return apperror.Validation(apperror.CodeUnsupportedProtocol, string(p.Family))
	}

	return nil
}
