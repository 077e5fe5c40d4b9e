// Package domain contains the core domain types for the scanner context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

// OpportunityType distinguishes two-venue spreads from 3-leg routes.
type OpportunityType string

// Opportunity types.
const (
	TypeSimple     OpportunityType = "simple"
	TypeTriangular OpportunityType = "triangular"
)

// ComplexityTier classifies how involved execution would be.
type ComplexityTier string

// Complexity tiers: same-chain two-leg trades are low, cross-chain medium,
// triangular routes high.
const (
	ComplexityLow    ComplexityTier = "low"
	ComplexityMedium ComplexityTier = "medium"
	ComplexityHigh   ComplexityTier = "high"
)

// Urgency indicates how quickly a spread is likely to close.
type Urgency string

// Urgency levels.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ValidationResult is the scanner's quick executability check, prior to the
// full analysis pipeline.
type ValidationResult struct {
	LiquidityAdequate      bool
	Executable             bool
	EstimatedExecutionTime time.Duration
}

// RouteLeg is one hop of a triangular route.
type RouteLeg struct {
	Venue   string
	Pair    string
	Price   decimal.Decimal
	FeeRate decimal.Decimal
}

// Opportunity is a detected price differential, read-only once built; a new
// scan cycle produces new instances.
type Opportunity struct {
	Type       OpportunityType
	Token      pricingDomain.Token
	BuyVenue   pricingDomain.PriceQuote
	SellVenue  pricingDomain.PriceQuote
	CrossChain bool

	// Triangular routes carry their legs; simple opportunities leave this nil.
	Route []RouteLeg

	Spread     pricingDomain.Spread
	Profit     *pricingDomain.NetProfitAnalysis
	Complexity ComplexityTier

	// Set during ranking and enrichment.
	Rank           int
	CompositeScore decimal.Decimal
	Confidence     decimal.Decimal // min of both venues' reliability
	Urgency        Urgency
	Tags           []string
	Validation     *ValidationResult

	DetectedAt time.Time
}

// ClassifyComplexity derives the tier from the opportunity shape.
func ClassifyComplexity(typ OpportunityType, crossChain bool) ComplexityTier {
	switch {
	case typ == TypeTriangular:
		return ComplexityHigh
	case crossChain:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// ClassifyUrgency maps spread size against the scan threshold: spreads well
// above the gate close fast and should be acted on first.
func ClassifyUrgency(spreadBps, minSpreadBps decimal.Decimal) Urgency {
	switch {
	case spreadBps.GreaterThanOrEqual(minSpreadBps.Mul(decimal.NewFromInt(3))):
		return UrgencyHigh
	case spreadBps.GreaterThanOrEqual(minSpreadBps.Mul(decimal.NewFromInt(2))):
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ScanSummary aggregates one scan cycle's outcome.
type ScanSummary struct {
	TokensScanned       int
	VenuesQueried       int
	VenuesAnswered      int
	QuotesRejectedStale int
	CandidatesFound     int
	OpportunitiesKept   int
	Duration            time.Duration
}

// VenueError records a per-venue failure that did not abort the cycle.
type VenueError struct {
	Venue string
	Token string
	Err   error
}

// ScanResult is the full output of one scan cycle.
type ScanResult struct {
	Opportunities []*Opportunity
	Summary       ScanSummary
	Errors        []VenueError
}
