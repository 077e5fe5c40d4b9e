package dexfeed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuoteEventToQuote(t *testing.T) {
	ev := QuoteEvent{
		Venue:        "uniswap-v3",
		Network:      "ethereum",
		Symbol:       "ETH",
		Price:        "2043.17",
		FeeRate:      "0.003",
		Reliability:  "0.95",
		LiquidityUSD: "1250000",
		Timestamp:    1724668800000,
	}

	q, err := ev.ToQuote()
	if err != nil {
		t.Fatalf("ToQuote() error = %v", err)
	}

	if q.Venue != "uniswap-v3" || q.Network != "ethereum" {
		t.Errorf("venue/network = %s/%s", q.Venue, q.Network)
	}
	if !q.Price.Equal(d("2043.17")) {
		t.Errorf("Price = %s, want 2043.17", q.Price)
	}
	if !q.FeeRate.Equal(d("0.003")) {
		t.Errorf("FeeRate = %s, want 0.003", q.FeeRate)
	}
	if !q.Timestamp.Equal(time.UnixMilli(1724668800000)) {
		t.Errorf("Timestamp = %s", q.Timestamp)
	}
	if q.Simulated {
		t.Error("Simulated = true, want false")
	}
}

func TestQuoteEventOptionalFieldsDefaultToZero(t *testing.T) {
	ev := QuoteEvent{Venue: "curve", Price: "1.0002"}

	q, err := ev.ToQuote()
	if err != nil {
		t.Fatalf("ToQuote() error = %v", err)
	}
	if !q.FeeRate.IsZero() || !q.Reliability.IsZero() || !q.LiquidityUSD.IsZero() {
		t.Errorf("optional fields not zero: fee=%s rel=%s liq=%s", q.FeeRate, q.Reliability, q.LiquidityUSD)
	}
}

func TestQuoteEventRejectsMalformedNumbers(t *testing.T) {
	tests := []struct {
		name string
		ev   QuoteEvent
	}{
		{"bad price", QuoteEvent{Venue: "curve", Price: "2,043"}},
		{"empty price", QuoteEvent{Venue: "curve"}},
		{"bad fee", QuoteEvent{Venue: "curve", Price: "2043", FeeRate: "0.3%"}},
		{"bad reliability", QuoteEvent{Venue: "curve", Price: "2043", Reliability: "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.ev.ToQuote(); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestPoolEventToPoolState(t *testing.T) {
	tests := []struct {
		name string
		ev   PoolEvent
		want func(t *testing.T, p domain.PoolState)
	}{
		{
			name: "constant product",
			ev: PoolEvent{
				Venue:      "uniswap-v2",
				Network:    "ethereum",
				Pair:       "ETH-USDC",
				Family:     "constant-product",
				ReserveIn:  "100000",
				ReserveOut: "200000000",
				FeeRate:    "0.003",
				Volume24h:  "5400000",
				Timestamp:  1724668800000,
			},
			want: func(t *testing.T, p domain.PoolState) {
				if p.Family != domain.FamilyConstantProduct {
					t.Errorf("Family = %s", p.Family)
				}
				if !p.ReserveIn.Equal(d("100000")) || !p.ReserveOut.Equal(d("200000000")) {
					t.Errorf("reserves = %s/%s", p.ReserveIn, p.ReserveOut)
				}
				if !p.Volume24h.Equal(d("5400000")) {
					t.Errorf("Volume24h = %s", p.Volume24h)
				}
			},
		},
		{
			name: "concentrated liquidity",
			ev: PoolEvent{
				Venue:       "uniswap-v3",
				Family:      "concentrated-liquidity",
				Liquidity:   "5000000",
				CurrentTick: 12,
				TickLower:   -100,
				TickUpper:   100,
				FeeRate:     "0.0005",
				Timestamp:   1724668800000,
			},
			want: func(t *testing.T, p domain.PoolState) {
				if !p.Liquidity.Equal(d("5000000")) {
					t.Errorf("Liquidity = %s", p.Liquidity)
				}
				if p.CurrentTick != 12 || p.Ticks.Lower != -100 || p.Ticks.Upper != 100 {
					t.Errorf("ticks = %d [%d,%d]", p.CurrentTick, p.Ticks.Lower, p.Ticks.Upper)
				}
			},
		},
		{
			name: "stable swap",
			ev: PoolEvent{
				Venue:         "curve",
				Family:        "stable-swap",
				Reserves:      []string{"1000000", "998000"},
				Amplification: "100",
				FeeRate:       "0.0004",
				Timestamp:     1724668800000,
			},
			want: func(t *testing.T, p domain.PoolState) {
				if len(p.Reserves) != 2 {
					t.Fatalf("reserves = %d, want 2", len(p.Reserves))
				}
				if !p.Reserves[1].Equal(d("998000")) {
					t.Errorf("Reserves[1] = %s", p.Reserves[1])
				}
				if !p.Amplification.Equal(d("100")) {
					t.Errorf("Amplification = %s", p.Amplification)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.ev.ToPoolState()
			if err != nil {
				t.Fatalf("ToPoolState() error = %v", err)
			}
			tt.want(t, p)
		})
	}
}

func TestPoolEventRejectsMalformedReserve(t *testing.T) {
	ev := PoolEvent{
		Venue:         "curve",
		Family:        "stable-swap",
		Reserves:      []string{"1000000", "not-a-number"},
		Amplification: "100",
		FeeRate:       "0.0004",
	}
	if _, err := ev.ToPoolState(); err == nil {
		t.Error("expected parse error for malformed reserve")
	}
}

func TestStreamNames(t *testing.T) {
	if got := QuoteStream("Uniswap-V3", "ETH"); got != "uniswap-v3:eth@quote" {
		t.Errorf("QuoteStream = %q", got)
	}
	if got := PoolStream("Curve", "ETH-USDC"); got != "curve:eth-usdc@pool" {
		t.Errorf("PoolStream = %q", got)
	}
}

func TestExtractStreamKey(t *testing.T) {
	tests := []struct {
		stream      string
		venue, subj string
	}{
		{"uniswap-v3:eth@quote", "uniswap-v3", "eth"},
		{"curve:eth-usdc@pool", "curve", "eth-usdc"},
		{"noat", "", ""},
		{"@quote", "", ""},
		{"nocolon@quote", "", ""},
		{"venue:@quote", "", ""},
	}

	for _, tt := range tests {
		venue, subj := extractStreamKey(tt.stream)
		if venue != tt.venue || subj != tt.subj {
			t.Errorf("extractStreamKey(%q) = %q, %q, want %q, %q", tt.stream, venue, subj, tt.venue, tt.subj)
		}
	}
}

func TestStreamEventDecoding(t *testing.T) {
	raw := []byte(`{"stream":"uniswap-v2:eth@quote","data":{"venue":"uniswap-v2","network":"ethereum","symbol":"ETH","price":"2001.5","feeRate":"0.003","ts":1724668800000}}`)

	var ev StreamEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Stream != "uniswap-v2:eth@quote" {
		t.Errorf("Stream = %q", ev.Stream)
	}

	var qe QuoteEvent
	if err := json.Unmarshal(ev.Data, &qe); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if qe.Price != "2001.5" {
		t.Errorf("Price = %q", qe.Price)
	}
}
