package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceQuoteFreshness(t *testing.T) {
	now := time.Now()
	q := PriceQuote{Venue: "uniswap-v2", Price: d("2000"), Timestamp: now.Add(-10 * time.Second)}

	if got := q.Age(now); got != 10*time.Second {
		t.Errorf("Age = %s, want 10s", got)
	}
	if q.IsStale(now, 30*time.Second) {
		t.Error("IsStale = true within the bound")
	}
	if !q.IsStale(now, 5*time.Second) {
		t.Error("IsStale = false beyond the bound")
	}
	// Exactly at the bound is still fresh.
	if q.IsStale(now, 10*time.Second) {
		t.Error("IsStale = true exactly at the bound")
	}
}

func TestPriceQuoteValidate(t *testing.T) {
	valid := PriceQuote{
		Venue:       "uniswap-v2",
		Price:       d("2000"),
		Reliability: d("0.9"),
	}

	tests := []struct {
		name    string
		mutate  func(q *PriceQuote)
		wantErr bool
	}{
		{"valid", func(*PriceQuote) {}, false},
		{"reliability zero ok", func(q *PriceQuote) { q.Reliability = decimal.Zero }, false},
		{"reliability one ok", func(q *PriceQuote) { q.Reliability = decimal.NewFromInt(1) }, false},
		{"missing venue", func(q *PriceQuote) { q.Venue = "" }, true},
		{"zero price", func(q *PriceQuote) { q.Price = decimal.Zero }, true},
		{"negative price", func(q *PriceQuote) { q.Price = d("-1") }, true},
		{"reliability above one", func(q *PriceQuote) { q.Reliability = d("1.01") }, true},
		{"reliability negative", func(q *PriceQuote) { q.Reliability = d("-0.1") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			err := q.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func validPool(family VenueFamily) PoolState {
	p := PoolState{
		Venue:   "venue",
		Family:  family,
		FeeRate: d("0.003"),
	}
	switch family {
	case FamilyConstantProduct:
		p.ReserveIn = d("100000")
		p.ReserveOut = d("200000")
	case FamilyConcentrated:
		p.Liquidity = d("5000000")
		p.Ticks = TickRange{Lower: -100, Upper: 100}
	case FamilyWeighted:
		p.ReserveIn = d("100000")
		p.ReserveOut = d("200000")
		p.WeightIn = d("0.5")
		p.WeightOut = d("0.5")
	case FamilyStableSwap:
		p.Reserves = []decimal.Decimal{d("1000000"), d("1000000")}
		p.Amplification = d("100")
	}
	return p
}

func TestPoolStateValidate(t *testing.T) {
	tests := []struct {
		name    string
		pool    func() PoolState
		wantErr bool
	}{
		{"constant product valid", func() PoolState { return validPool(FamilyConstantProduct) }, false},
		{"concentrated valid", func() PoolState { return validPool(FamilyConcentrated) }, false},
		{"weighted valid", func() PoolState { return validPool(FamilyWeighted) }, false},
		{"stable valid", func() PoolState { return validPool(FamilyStableSwap) }, false},
		{"unknown family", func() PoolState {
			p := validPool(FamilyConstantProduct)
			p.Family = VenueFamily("order-book")
			return p
		}, true},
		{"negative fee", func() PoolState {
			p := validPool(FamilyConstantProduct)
			p.FeeRate = d("-0.001")
			return p
		}, true},
		{"fee of one", func() PoolState {
			p := validPool(FamilyConstantProduct)
			p.FeeRate = decimal.NewFromInt(1)
			return p
		}, true},
		{"zero reserve", func() PoolState {
			p := validPool(FamilyConstantProduct)
			p.ReserveOut = decimal.Zero
			return p
		}, true},
		{"zero liquidity", func() PoolState {
			p := validPool(FamilyConcentrated)
			p.Liquidity = decimal.Zero
			return p
		}, true},
		{"inverted tick range", func() PoolState {
			p := validPool(FamilyConcentrated)
			p.Ticks = TickRange{Lower: 100, Upper: 100}
			return p
		}, true},
		{"zero weight", func() PoolState {
			p := validPool(FamilyWeighted)
			p.WeightOut = decimal.Zero
			return p
		}, true},
		{"single stable reserve", func() PoolState {
			p := validPool(FamilyStableSwap)
			p.Reserves = p.Reserves[:1]
			return p
		}, true},
		{"negative stable reserve", func() PoolState {
			p := validPool(FamilyStableSwap)
			p.Reserves[1] = d("-1")
			return p
		}, true},
		{"zero amplification", func() PoolState {
			p := validPool(FamilyStableSwap)
			p.Amplification = decimal.Zero
			return p
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pool().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPoolStateTotalReserve(t *testing.T) {
	tests := []struct {
		name string
		pool PoolState
		want string
	}{
		{"constant product sums both sides", validPool(FamilyConstantProduct), "300000"},
		{"weighted sums both sides", validPool(FamilyWeighted), "300000"},
		{"concentrated uses liquidity", validPool(FamilyConcentrated), "5000000"},
		{"stable sums all reserves", validPool(FamilyStableSwap), "2000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pool.TotalReserve(); !got.Equal(d(tt.want)) {
				t.Errorf("TotalReserve() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPoolStateIsStale(t *testing.T) {
	now := time.Now()
	p := PoolState{Timestamp: now.Add(-45 * time.Second)}

	if p.IsStale(now, time.Minute) {
		t.Error("IsStale = true within the bound")
	}
	if !p.IsStale(now, 30*time.Second) {
		t.Error("IsStale = false beyond the bound")
	}
}

func TestTokenConstruction(t *testing.T) {
	tok, err := NewToken("ETH", "ethereum", 18)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	if tok.Symbol() != "ETH" || tok.Network() != "ethereum" || tok.Decimals() != 18 {
		t.Errorf("token = %s/%s/%d", tok.Symbol(), tok.Network(), tok.Decimals())
	}
	if tok.String() != "ETH@ethereum" {
		t.Errorf("String() = %q, want ETH@ethereum", tok.String())
	}

	for _, tc := range []struct {
		symbol, network string
		decimals        int
	}{
		{"", "ethereum", 18},
		{"ETH", "", 18},
		{"ETH", "ethereum", -1},
		{"ETH", "ethereum", 37},
	} {
		if _, err := NewToken(tc.symbol, tc.network, tc.decimals); err == nil {
			t.Errorf("NewToken(%q, %q, %d) expected error", tc.symbol, tc.network, tc.decimals)
		}
	}
}
