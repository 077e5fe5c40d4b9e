package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/analysis/domain"
	gasfeeDomain "github.com/fd1az/arb-analysis-engine/business/gasfee/domain"
	pricingApp "github.com/fd1az/arb-analysis-engine/business/pricing/app"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	scannerApp "github.com/fd1az/arb-analysis-engine/business/scanner/app"
	scannerDomain "github.com/fd1az/arb-analysis-engine/business/scanner/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
)

// stubFeed serves quotes and pools keyed by venue.
type stubFeed struct {
	quotes map[string]pricingDomain.PriceQuote
	pools  map[string]pricingDomain.PoolState
}

func (f *stubFeed) GetQuotes(_ context.Context, _ pricingDomain.Token, venues []string) ([]pricingDomain.PriceQuote, error) {
	var out []pricingDomain.PriceQuote
	for _, v := range venues {
		if q, ok := f.quotes[v]; ok {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no venue answered")
	}
	return out, nil
}

func (f *stubFeed) GetPoolState(_ context.Context, venue, _ string) (pricingDomain.PoolState, error) {
	p, ok := f.pools[venue]
	if !ok {
		return pricingDomain.PoolState{}, errors.New("no pool for " + venue)
	}
	return p, nil
}

// stubGas answers with fixed numbers so composite scoring is deterministic.
type stubGas struct {
	gwei       decimal.Decimal
	costUSD    decimal.Decimal
	congestion decimal.Decimal
}

func (g *stubGas) Estimate(_ context.Context, ops []gasfeeDomain.Operation, strategy gasfeeDomain.Strategy) (*gasfeeDomain.GasQuote, error) {
	var limit uint64
	for _, op := range ops {
		limit += op.Limit()
	}
	return &gasfeeDomain.GasQuote{
		TotalGasLimit:       limit,
		GasPriceGwei:        g.gwei,
		TotalCostUSD:        g.costUSD,
		Strategy:            strategy,
		MaxConfirmationTime: strategy.ConfirmationTime(),
		Timestamp:           time.Now(),
	}, nil
}

func (g *stubGas) OptimizeStrategy(context.Context, decimal.Decimal, []gasfeeDomain.Operation) (gasfeeDomain.Strategy, *gasfeeDomain.GasQuote, error) {
	return "", nil, errors.New("optimization unavailable")
}

func (g *stubGas) Congestion(_ context.Context, network string) (*gasfeeDomain.CongestionLevel, error) {
	return &gasfeeDomain.CongestionLevel{Score: g.congestion, Network: network, Timestamp: time.Now()}, nil
}

var ethToken = pricingDomain.MustToken("ETH", "ethereum", 18)

func freshQuote(venue string, price string) pricingDomain.PriceQuote {
	return pricingDomain.PriceQuote{
		Venue:        venue,
		Network:      "ethereum",
		Price:        d(price),
		FeeRate:      d("0.003"),
		Reliability:  d("0.9"),
		LiquidityUSD: d("500000"),
		Timestamp:    time.Now(),
	}
}

func ethUsdcPool(venue string) pricingDomain.PoolState {
	return pricingDomain.PoolState{
		Venue:      venue,
		Network:    "ethereum",
		Family:     pricingDomain.FamilyConstantProduct,
		ReserveIn:  d("100000"),
		ReserveOut: d("200000000"),
		FeeRate:    d("0.003"),
		Volume24h:  d("100000"),
		Timestamp:  time.Now(),
	}
}

func newTestFeed() *stubFeed {
	return &stubFeed{
		quotes: map[string]pricingDomain.PriceQuote{
			"uniswap-v2": freshQuote("uniswap-v2", "2000"),
			"sushiswap":  freshQuote("sushiswap", "2200"),
		},
		pools: map[string]pricingDomain.PoolState{
			"uniswap-v2": ethUsdcPool("uniswap-v2"),
			"sushiswap":  ethUsdcPool("sushiswap"),
		},
	}
}

func newTestGas() *stubGas {
	return &stubGas{gwei: d("25"), costUSD: d("10"), congestion: d("30")}
}

func newTestEngine(t *testing.T, feed pricingApp.FeedProvider, gas GasEstimator) *Engine {
	t.Helper()

	calc := pricingApp.NewProfitCalculator(d("0.1"))
	validator := NewLiquidityValidator(d("5"), d("100000"), testLogger())
	scorer, err := NewRiskScorer(defaultScorerParams(), testLogger())
	if err != nil {
		t.Fatalf("NewRiskScorer() error = %v", err)
	}

	scanner, err := scannerApp.NewScanner(scannerApp.ScannerParams{
		MinSpreadBps:         d("10"),
		MinNetProfitPct:      d("0.1"),
		MaxResults:           10,
		Concurrency:          2,
		VenueTimeout:         2 * time.Second,
		CacheTTL:             time.Minute,
		FreshnessBound:       time.Minute,
		MaxPriceImpactPct:    d("5"),
		DefaultSlippageRate:  d("0.001"),
		BridgeFeeUSD:         d("5"),
		ReferenceAsset:       "USDC",
		BaseExecutionTime:    15 * time.Second,
		CrossChainTimeFactor: d("4"),
		HighComplexityFactor: d("2"),
	}, feed, calc, validator, testLogger())
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	t.Cleanup(scanner.Close)

	engine, err := NewEngine(EngineParams{
		FreshnessBound:      time.Minute,
		MinCompositeScore:   d("0.6"),
		MinLiquidityUSD:     d("100000"),
		NormalGasGwei:       d("30"),
		DefaultVolatility:   d("0.04"),
		DefaultSlippageRate: d("0.001"),
		BridgeFeeUSD:        d("5"),
		ReferenceAsset:      "USDC",
		Concurrency:         2,
	}, calc, validator, scorer, gas, feed, scanner, nil, testLogger())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func simpleOpportunity(buyPrice, sellPrice string) *scannerDomain.Opportunity {
	return &scannerDomain.Opportunity{
		Type:       scannerDomain.TypeSimple,
		Token:      ethToken,
		BuyVenue:   freshQuote("uniswap-v2", buyPrice),
		SellVenue:  freshQuote("sushiswap", sellPrice),
		Complexity: scannerDomain.ComplexityLow,
		DetectedAt: time.Now(),
	}
}

func TestAnalyzeOpportunityExecutable(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	report, err := engine.AnalyzeOpportunity(context.Background(), simpleOpportunity("2000", "2200"), d("10"), nil)
	if err != nil {
		t.Fatalf("AnalyzeOpportunity() error = %v", err)
	}

	if !report.Profit.IsProfitable {
		t.Errorf("IsProfitable = false, net = %s", report.Profit.NetProfit)
	}
	if !report.Assessment.IsExecutable {
		t.Fatalf("IsExecutable = false, factors = %v", report.Assessment.CriticalFactors)
	}
	if report.Assessment.Recommendation != domain.ExecuteImmediately {
		t.Errorf("Recommendation = %s, want EXECUTE_IMMEDIATELY (composite %s, risk %s)",
			report.Assessment.Recommendation, report.Assessment.CompositeScore, report.Risk.Level)
	}
	if report.Assessment.Plan == nil {
		t.Fatal("Plan = nil, want execution plan")
	}
	if got := len(report.Assessment.Plan.Steps); got != 3 {
		t.Errorf("plan steps = %d, want 3 (approve, buy, sell)", got)
	}
	if len(report.Assessment.Alternatives) != 0 {
		t.Errorf("Alternatives = %v, want none on an executable verdict", report.Assessment.Alternatives)
	}
}

func TestAnalyzeOpportunityUnprofitable(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	// 0.25% spread cannot cover two 0.3% protocol fee legs plus gas.
	report, err := engine.AnalyzeOpportunity(context.Background(), simpleOpportunity("2000", "2005"), d("10"), nil)
	if err != nil {
		t.Fatalf("AnalyzeOpportunity() error = %v", err)
	}

	if report.Profit.IsProfitable {
		t.Errorf("IsProfitable = true, net = %s", report.Profit.NetProfit)
	}
	if report.Assessment.IsExecutable {
		t.Error("IsExecutable = true, want false")
	}
	if report.Assessment.Recommendation != domain.DoNotExecute {
		t.Errorf("Recommendation = %s, want DO_NOT_EXECUTE", report.Assessment.Recommendation)
	}
	if len(report.Assessment.CriticalFactors) == 0 {
		t.Error("CriticalFactors empty, want at least unprofitability")
	}
	if len(report.Assessment.Alternatives) == 0 {
		t.Error("Alternatives empty, want remediation advice")
	}
	if report.Assessment.Plan != nil {
		t.Error("Plan set on a rejected opportunity")
	}
}

func TestAnalyzeOpportunityGuards(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())
	ctx := context.Background()

	if _, err := engine.AnalyzeOpportunity(ctx, nil, d("10"), nil); err == nil {
		t.Error("expected error for nil opportunity")
	}
	if _, err := engine.AnalyzeOpportunity(ctx, simpleOpportunity("2000", "2200"), decimal.Zero, nil); err == nil {
		t.Error("expected error for zero trade amount")
	}
}

func TestAnalyzeRejectsStaleQuote(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	opp := simpleOpportunity("2000", "2200")
	opp.BuyVenue.Timestamp = time.Now().Add(-2 * time.Minute)

	_, err := engine.AnalyzeOpportunity(context.Background(), opp, d("10"), nil)
	if !apperror.IsCode(err, apperror.CodeStaleData) {
		t.Errorf("error = %v, want code STALE_DATA", err)
	}
}

func TestAnalyzeRejectsSimulatedQuote(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	opp := simpleOpportunity("2000", "2200")
	opp.SellVenue.Simulated = true

	_, err := engine.AnalyzeOpportunity(context.Background(), opp, d("10"), nil)
	if !apperror.IsCode(err, apperror.CodeSimulatedData) {
		t.Errorf("error = %v, want code SIMULATED_DATA", err)
	}
}

func TestAnalyzeTriangular(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	opp := &scannerDomain.Opportunity{
		Type:  scannerDomain.TypeTriangular,
		Token: ethToken,
		Route: []scannerDomain.RouteLeg{
			{Venue: "uniswap-v2", Pair: "ETH-USDC", Price: d("2000"), FeeRate: d("0.003")},
			{Venue: "sushiswap", Pair: "USDC-WBTC", Price: d("0.000025"), FeeRate: d("0.003")},
			{Venue: "uniswap-v2", Pair: "WBTC-ETH", Price: d("20"), FeeRate: d("0.003")},
		},
		Profit: &pricingDomain.NetProfitAnalysis{
			GrossProfit:  d("50"),
			NetProfit:    d("50"),
			NetProfitPct: d("0.5"),
			IsProfitable: true,
		},
		Complexity: scannerDomain.ComplexityHigh,
		Validation: &scannerDomain.ValidationResult{
			LiquidityAdequate:      true,
			Executable:             true,
			EstimatedExecutionTime: 30 * time.Second,
		},
		DetectedAt: time.Now(),
	}

	report, err := engine.AnalyzeOpportunity(context.Background(), opp, d("10000"), nil)
	if err != nil {
		t.Fatalf("AnalyzeOpportunity() error = %v", err)
	}

	// Gas is charged on top of the route's compounded profit.
	if !report.Profit.NetProfit.Equal(d("40")) {
		t.Errorf("NetProfit = %s, want 40 (50 gross - 10 gas)", report.Profit.NetProfit)
	}
	if !report.Profit.NetProfitPct.Equal(d("0.4")) {
		t.Errorf("NetProfitPct = %s, want 0.4", report.Profit.NetProfitPct)
	}
	if !report.Profit.IsProfitable {
		t.Error("IsProfitable = false after gas")
	}
	if report.Assessment == nil {
		t.Fatal("Assessment = nil")
	}
}

func TestAnalyzeTriangularRequiresRouteProfit(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	opp := &scannerDomain.Opportunity{
		Type:       scannerDomain.TypeTriangular,
		Token:      ethToken,
		DetectedAt: time.Now(),
	}

	if _, err := engine.AnalyzeOpportunity(context.Background(), opp, d("10000"), nil); err == nil {
		t.Error("expected error for triangular opportunity without route profit")
	}
}

func TestSimulateScenarios(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())
	ctx := context.Background()
	opp := simpleOpportunity("2000", "2200")

	if _, err := engine.SimulateScenarios(ctx, opp, d("10"), nil); err == nil {
		t.Error("expected error for empty scenario list")
	}

	result, err := engine.SimulateScenarios(ctx, opp, d("10"), []Scenario{
		{Name: "base"},
		{Name: "fast gas", GasStrategy: gasfeeDomain.StrategyFast},
		{Name: "punitive slippage", SlippageRate: d("0.5")},
	})
	if err != nil {
		t.Fatalf("SimulateScenarios() error = %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(result.Outcomes))
	}
	if result.Best == nil {
		t.Fatal("Best = nil, want a winning scenario")
	}
	if !result.Best.Report.Assessment.IsExecutable {
		t.Errorf("best scenario %q not executable", result.Best.Name)
	}
	// 50% slippage drowns the spread; that scenario must not win.
	if result.Best.Name == "punitive slippage" {
		t.Error("scenario with punitive slippage selected as best")
	}
	if len(result.RiskSummary) != 3 {
		t.Errorf("RiskSummary entries = %d, want 3", len(result.RiskSummary))
	}
}

func TestScanAndAnalyze(t *testing.T) {
	engine := newTestEngine(t, newTestFeed(), newTestGas())

	result, err := engine.ScanAndAnalyze(context.Background(), ScanAndAnalyzeParams{
		Tokens: []pricingDomain.Token{ethToken},
		Venues: []string{"uniswap-v2", "sushiswap"},
		Amount: d("10"),
	})
	if err != nil {
		t.Fatalf("ScanAndAnalyze() error = %v", err)
	}

	if result.Summary.TokensScanned != 1 {
		t.Errorf("TokensScanned = %d, want 1", result.Summary.TokensScanned)
	}
	if len(result.TokenErrors) != 0 {
		t.Errorf("TokenErrors = %v, want none", result.TokenErrors)
	}
	if len(result.Reports) == 0 {
		t.Fatal("Reports empty, want at least one analyzed opportunity")
	}
	if len(result.Recommendations) == 0 {
		t.Error("Recommendations empty")
	}

	// Reports come back ordered by composite score.
	for i := 1; i < len(result.Reports); i++ {
		prev := result.Reports[i-1].Assessment.CompositeScore
		cur := result.Reports[i].Assessment.CompositeScore
		if cur.GreaterThan(prev) {
			t.Errorf("reports out of order at %d: %s > %s", i, cur, prev)
		}
	}

	stats := engine.Stats()
	if stats.ScansTotal != 1 {
		t.Errorf("ScansTotal = %d, want 1", stats.ScansTotal)
	}
	if stats.AnalysesTotal == 0 {
		t.Error("AnalysesTotal = 0, want > 0")
	}
	if stats.Uptime <= 0 {
		t.Error("Uptime not positive")
	}
}

func TestScanAndAnalyzeTriangularBases(t *testing.T) {
	// Equal quotes leave the pairwise pass empty; every report must come
	// from the triangular routes anchored on the configured base.
	legPool := func(venue string) pricingDomain.PoolState {
		return pricingDomain.PoolState{
			Venue:      venue,
			Network:    "ethereum",
			Family:     pricingDomain.FamilyConstantProduct,
			ReserveIn:  d("100000"),
			ReserveOut: d("110000"),
			FeeRate:    d("0.003"),
			Timestamp:  time.Now(),
		}
	}
	feed := &stubFeed{
		quotes: map[string]pricingDomain.PriceQuote{
			"uniswap-v2": freshQuote("uniswap-v2", "2000"),
			"sushiswap":  freshQuote("sushiswap", "2000"),
		},
		pools: map[string]pricingDomain.PoolState{
			"uniswap-v2": legPool("uniswap-v2"),
			"sushiswap":  legPool("sushiswap"),
		},
	}
	engine := newTestEngine(t, feed, newTestGas())

	wbtc := pricingDomain.MustToken("WBTC", "ethereum", 8)
	result, err := engine.ScanAndAnalyze(context.Background(), ScanAndAnalyzeParams{
		Tokens:          []pricingDomain.Token{ethToken, wbtc},
		Venues:          []string{"uniswap-v2", "sushiswap"},
		Amount:          d("1000"),
		TriangularBases: []string{"USDC"},
	})
	if err != nil {
		t.Fatalf("ScanAndAnalyze() error = %v", err)
	}

	if len(result.AnalysisErrors) != 0 {
		t.Errorf("AnalysisErrors = %v, want none", result.AnalysisErrors)
	}

	// Two ordered mid pairs on two venues.
	triangular := 0
	for _, report := range result.Reports {
		if report.Opportunity.Type != scannerDomain.TypeTriangular {
			continue
		}
		triangular++
		if len(report.Opportunity.Route) != 3 {
			t.Errorf("route legs = %d, want 3", len(report.Opportunity.Route))
		}
		if !report.Profit.NetProfit.IsPositive() {
			t.Errorf("NetProfit = %s, want positive after gas", report.Profit.NetProfit)
		}
	}
	if triangular != 4 {
		t.Errorf("triangular reports = %d, want 4", triangular)
	}
	if result.Summary.CandidatesFound != 4 {
		t.Errorf("CandidatesFound = %d, want 4", result.Summary.CandidatesFound)
	}
}
