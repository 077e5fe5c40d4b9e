package dexfeed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

// StreamEvent wraps every message on the combined-streams socket.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// WSRequest is a subscription management request.
type WSRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int64    `json:"id"`
}

// WSResponse is the acknowledgment for a WSRequest.
type WSResponse struct {
	Result json.RawMessage `json:"result"`
	ID     int64           `json:"id"`
}

// QuoteEvent is a venue's price update for one token. All numeric fields
// travel as strings to preserve precision.
type QuoteEvent struct {
	Venue        string `json:"venue"`
	Network      string `json:"network"`
	Symbol       string `json:"symbol"`
	Price        string `json:"price"`
	FeeRate      string `json:"feeRate"`
	Reliability  string `json:"reliability"`
	LiquidityUSD string `json:"liquidityUsd"`
	Timestamp    int64  `json:"ts"` // unix milliseconds
	Simulated    bool   `json:"simulated,omitempty"`
}

// PoolEvent is a pool state snapshot. Which fields are set depends on the
// protocol family, mirroring domain.PoolState.
type PoolEvent struct {
	Venue   string `json:"venue"`
	Network string `json:"network"`
	Pair    string `json:"pair"`
	Family  string `json:"family"`

	ReserveIn  string `json:"reserveIn,omitempty"`
	ReserveOut string `json:"reserveOut,omitempty"`

	Liquidity   string `json:"liquidity,omitempty"`
	CurrentTick int32  `json:"currentTick,omitempty"`
	TickLower   int32  `json:"tickLower,omitempty"`
	TickUpper   int32  `json:"tickUpper,omitempty"`

	WeightIn  string `json:"weightIn,omitempty"`
	WeightOut string `json:"weightOut,omitempty"`

	Reserves      []string `json:"reserves,omitempty"`
	Amplification string   `json:"amplification,omitempty"`

	FeeRate   string `json:"feeRate"`
	Volume24h string `json:"volume24h,omitempty"`
	Timestamp int64  `json:"ts"`
	Simulated bool   `json:"simulated,omitempty"`
}

// QuoteStream returns the stream name for a venue/symbol quote feed,
// e.g. "uniswap-v3:eth@quote".
func QuoteStream(venue, symbol string) string {
	return strings.ToLower(venue) + ":" + strings.ToLower(symbol) + "@quote"
}

// PoolStream returns the stream name for a venue/pair pool feed,
// e.g. "uniswap-v3:eth-usdc@pool".
func PoolStream(venue, pair string) string {
	return strings.ToLower(venue) + ":" + strings.ToLower(pair) + "@pool"
}

// ToQuote converts the wire event to a domain quote.
func (e *QuoteEvent) ToQuote() (domain.PriceQuote, error) {
	price, err := decimal.NewFromString(e.Price)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("parse price %q: %w", e.Price, err)
	}
	fee, err := parseOptional(e.FeeRate)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("parse fee rate %q: %w", e.FeeRate, err)
	}
	rel, err := parseOptional(e.Reliability)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("parse reliability %q: %w", e.Reliability, err)
	}
	liq, err := parseOptional(e.LiquidityUSD)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("parse liquidity %q: %w", e.LiquidityUSD, err)
	}

	return domain.PriceQuote{
		Venue:        e.Venue,
		Network:      e.Network,
		Price:        price,
		FeeRate:      fee,
		Reliability:  rel,
		LiquidityUSD: liq,
		Timestamp:    millisToTime(e.Timestamp),
		Simulated:    e.Simulated,
	}, nil
}

// ToPoolState converts the wire event to a domain pool snapshot.
func (e *PoolEvent) ToPoolState() (domain.PoolState, error) {
	p := domain.PoolState{
		Venue:       e.Venue,
		Network:     e.Network,
		Family:      domain.VenueFamily(e.Family),
		CurrentTick: e.CurrentTick,
		Ticks:       domain.TickRange{Lower: e.TickLower, Upper: e.TickUpper},
		Timestamp:   millisToTime(e.Timestamp),
		Simulated:   e.Simulated,
	}

	var err error
	if p.ReserveIn, err = parseOptional(e.ReserveIn); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse reserveIn: %w", err)
	}
	if p.ReserveOut, err = parseOptional(e.ReserveOut); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse reserveOut: %w", err)
	}
	if p.Liquidity, err = parseOptional(e.Liquidity); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse liquidity: %w", err)
	}
	if p.WeightIn, err = parseOptional(e.WeightIn); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse weightIn: %w", err)
	}
	if p.WeightOut, err = parseOptional(e.WeightOut); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse weightOut: %w", err)
	}
	if p.Amplification, err = parseOptional(e.Amplification); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse amplification: %w", err)
	}
	if p.FeeRate, err = parseOptional(e.FeeRate); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse feeRate: %w", err)
	}
	if p.Volume24h, err = parseOptional(e.Volume24h); err != nil {
		return domain.PoolState{}, fmt.Errorf("parse volume24h: %w", err)
	}

	if len(e.Reserves) > 0 {
		p.Reserves = make([]decimal.Decimal, 0, len(e.Reserves))
		for i, r := range e.Reserves {
			d, err := decimal.NewFromString(r)
			if err != nil {
				return domain.PoolState{}, fmt.Errorf("parse reserve %d: %w", i, err)
			}
			p.Reserves = append(p.Reserves, d)
		}
	}

	return p, nil
}

// extractStreamKey splits "venue:symbol@kind" into its venue and subject.
// Returns empty strings when the name does not match.
func extractStreamKey(stream string) (venue, subject string) {
	at := strings.Index(stream, "@")
	if at <= 0 {
		return "", ""
	}
	head := stream[:at]
	colon := strings.Index(head, ":")
	if colon <= 0 || colon == len(head)-1 {
		return "", ""
	}
	return head[:colon], head[colon+1:]
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
