package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	ammDomain "github.com/fd1az/arb-analysis-engine/business/amm/domain"
	pricingApp "github.com/fd1az/arb-analysis-engine/business/pricing/app"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/business/scanner/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/cache"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-analysis-engine/business/scanner/app"
	meterName  = "github.com/fd1az/arb-analysis-engine/business/scanner/app"
)

// ScannerParams holds the scanner's thresholds and resource limits.
type ScannerParams struct {
	MinSpreadBps    decimal.Decimal
	MinNetProfitPct decimal.Decimal
	MaxResults      int
	Concurrency     int
	VenueTimeout    time.Duration
	CacheTTL        time.Duration
	FreshnessBound  time.Duration

	MaxPriceImpactPct   decimal.Decimal
	DefaultSlippageRate decimal.Decimal
	BridgeFeeUSD        decimal.Decimal
	ReferenceAsset      string // quote asset for pool lookups, e.g. "USDC"

	BaseExecutionTime    time.Duration
	CrossChainTimeFactor decimal.Decimal
	HighComplexityFactor decimal.Decimal
}

// scanKey is the structured cache key for one scan cycle.
type scanKey struct {
	Token  string
	Venues string // sorted, comma-joined
}

// BatchParams controls a multi-token scan.
type BatchParams struct {
	Amount     decimal.Decimal
	Venues     []string
	MaxResults int
	Concurrent bool
}

// BatchResult is the output of a multi-token scan. Per-token failures are
// collected, never fatal to siblings.
type BatchResult struct {
	Ranked      []*domain.Opportunity
	PerToken    map[string]*domain.ScanResult
	TokenErrors map[string]error
	Summary     domain.ScanSummary
}

// LegSpec identifies one pool of a triangular route.
type LegSpec struct {
	Venue string
	Pair  string
}

type scannerMetrics struct {
	scansTotal         metric.Int64Counter
	opportunitiesFound metric.Int64Counter
	staleQuotes        metric.Int64Counter
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	scanDuration       metric.Float64Histogram
}

// Scanner detects simple and triangular price differentials across venues.
// One scan cycle is fetch, pairwise compare, filter, rank, validate, enrich.
type Scanner struct {
	params    ScannerParams
	feed      pricingApp.FeedProvider
	calc      *pricingApp.ProfitCalculator
	liquidity LiquidityChecker
	logger    logger.LoggerInterface

	results *cache.Cache[scanKey, *domain.ScanResult]

	tracer  trace.Tracer
	metrics *scannerMetrics
}

// NewScanner creates a Scanner.
func NewScanner(
	params ScannerParams,
	feed pricingApp.FeedProvider,
	calc *pricingApp.ProfitCalculator,
	liquidity LiquidityChecker,
	log logger.LoggerInterface,
) (*Scanner, error) {
	s := &Scanner{
		params:    params,
		feed:      feed,
		calc:      calc,
		liquidity: liquidity,
		logger:    log,
		results:   cache.New[scanKey, *domain.ScanResult](time.Minute),
		tracer:    otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Scanner) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &scannerMetrics{}

	s.metrics.scansTotal, err = meter.Int64Counter(
		"scan_cycles_total",
		metric.WithDescription("Total scan cycles started"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return err
	}

	s.metrics.opportunitiesFound, err = meter.Int64Counter(
		"opportunities_found_total",
		metric.WithDescription("Opportunities surviving filters and ranking"),
		metric.WithUnit("{opportunity}"),
	)
	if err != nil {
		return err
	}

	s.metrics.staleQuotes, err = meter.Int64Counter(
		"stale_quotes_total",
		metric.WithDescription("Quotes rejected by the freshness guard"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheHits, err = meter.Int64Counter(
		"scan_cache_hits_total",
		metric.WithDescription("Scan result cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheMisses, err = meter.Int64Counter(
		"scan_cache_misses_total",
		metric.WithDescription("Scan result cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	s.metrics.scanDuration, err = meter.Float64Histogram(
		"scan_duration_seconds",
		metric.WithDescription("Scan cycle duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Scan runs one cycle for a token across venues with tradeAmount per leg.
// Results are cached per (token, venue-set) for the configured TTL.
func (s *Scanner) Scan(
	ctx context.Context,
	token pricingDomain.Token,
	venues []string,
	tradeAmount decimal.Decimal,
) (*domain.ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan",
		trace.WithAttributes(
			attribute.String("token", token.String()),
			attribute.Int("venues", len(venues)),
		),
	)
	defer span.End()

	if len(venues) < 2 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "scan needs at least two venues")
	}
	if !tradeAmount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, tradeAmount.String())
	}

	key := keyFor(token, venues)
	if cached, found := s.results.Get(ctx, key); found {
		s.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return cached, nil
	}
	s.metrics.cacheMisses.Add(ctx, 1)
	s.metrics.scansTotal.Add(ctx, 1)

	started := time.Now()

	quotes, stale, venueErrs := s.fetchQuotes(ctx, token, venues)

	result := &domain.ScanResult{
		Errors: venueErrs,
		Summary: domain.ScanSummary{
			TokensScanned:       1,
			VenuesQueried:       len(venues),
			VenuesAnswered:      len(quotes),
			QuotesRejectedStale: stale,
		},
	}

	candidates := s.compare(ctx, token, quotes, tradeAmount)
	result.Summary.CandidatesFound = len(candidates)

	ranked := rank(candidates, s.params.MaxResults)
	for _, opp := range ranked {
		s.validate(ctx, opp, tradeAmount, result)
		s.enrich(opp)
	}

	result.Opportunities = ranked
	result.Summary.OpportunitiesKept = len(ranked)
	result.Summary.Duration = time.Since(started)

	s.results.Set(ctx, key, result, s.params.CacheTTL)
	s.metrics.opportunitiesFound.Add(ctx, int64(len(ranked)))
	s.metrics.scanDuration.Record(ctx, result.Summary.Duration.Seconds())

	span.SetAttributes(
		attribute.Int("opportunities", len(ranked)),
		attribute.Int("venue_errors", len(venueErrs)),
	)
	span.SetStatus(codes.Ok, "scanned")

	s.logger.Info(ctx, "scan cycle complete",
		"token", token.String(),
		"venues_answered", len(quotes),
		"opportunities", len(ranked),
		"duration", result.Summary.Duration,
	)

	return result, nil
}

// fetchQuotes fans out one task per venue. A venue that errors or times out
// is dropped from the cycle, never fatal.
func (s *Scanner) fetchQuotes(
	ctx context.Context,
	token pricingDomain.Token,
	venues []string,
) ([]pricingDomain.PriceQuote, int, []domain.VenueError) {
	var (
		mu        sync.Mutex
		quotes    []pricingDomain.PriceQuote
		venueErrs []domain.VenueError
		stale     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.params.Concurrency)

	now := time.Now()
	for _, venue := range venues {
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, s.params.VenueTimeout)
			defer cancel()

			got, err := s.feed.GetQuotes(vctx, token, []string{venue})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				venueErrs = append(venueErrs, domain.VenueError{
					Venue: venue,
					Token: token.Symbol(),
					Err:   apperror.Wrap(err, apperror.CodeQuoteFetchFailed, venue),
				})
				return nil
			}
			for _, q := range got {
				if q.Simulated || q.IsStale(now, s.params.FreshnessBound) {
					stale++
					s.metrics.staleQuotes.Add(gctx, 1)
					continue
				}
				if err := q.Validate(); err != nil {
					venueErrs = append(venueErrs, domain.VenueError{
						Venue: q.Venue, Token: token.Symbol(), Err: err,
					})
					continue
				}
				quotes = append(quotes, q)
			}
			return nil
		})
	}
	// Workers never return errors; per-venue failures are collected above.
	_ = g.Wait()

	return quotes, stale, venueErrs
}

// compare builds a candidate for every quote pair that clears the spread and
// net-profit gates.
func (s *Scanner) compare(
	ctx context.Context,
	token pricingDomain.Token,
	quotes []pricingDomain.PriceQuote,
	tradeAmount decimal.Decimal,
) []*domain.Opportunity {
	var candidates []*domain.Opportunity

	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			opp, err := s.candidate(token, quotes[i], quotes[j], tradeAmount)
			if err != nil {
				s.logger.Debug(ctx, "pair rejected",
					"token", token.Symbol(),
					"venue_a", quotes[i].Venue,
					"venue_b", quotes[j].Venue,
					"error", err,
				)
				continue
			}
			if opp != nil {
				candidates = append(candidates, opp)
			}
		}
	}

	return candidates
}

// candidate evaluates one quote pair; returns nil without error when the
// pair simply doesn't clear a threshold.
func (s *Scanner) candidate(
	token pricingDomain.Token,
	a, b pricingDomain.PriceQuote,
	tradeAmount decimal.Decimal,
) (*domain.Opportunity, error) {
	spread, err := s.calc.Spread(a.Price, b.Price)
	if err != nil {
		return nil, err
	}
	if !spread.IsValid || spread.BasisPoints.LessThan(s.params.MinSpreadBps) {
		return nil, nil
	}

	buyQuote, sellQuote := a, b
	if spread.Direction == pricingDomain.SpreadBToA {
		buyQuote, sellQuote = b, a
	}

	crossChain := buyQuote.Network != sellQuote.Network
	costs := pricingDomain.Costs{
		// Gas is unknown until the orchestrator estimates it; both legs'
		// protocol fees apply at scan time.
		ProtocolFeeRate: buyQuote.FeeRate.Add(sellQuote.FeeRate),
		SlippageRate:    s.params.DefaultSlippageRate,
	}
	if crossChain {
		costs.BridgeFeeUSD = s.params.BridgeFeeUSD
	}

	profit, err := s.calc.NetProfit(buyQuote.Price, sellQuote.Price, tradeAmount, costs)
	if err != nil {
		return nil, err
	}
	if profit.NetProfitPct.LessThan(s.params.MinNetProfitPct) {
		return nil, nil
	}

	return &domain.Opportunity{
		Type:       domain.TypeSimple,
		Token:      token,
		BuyVenue:   buyQuote,
		SellVenue:  sellQuote,
		CrossChain: crossChain,
		Spread:     spread,
		Profit:     profit,
		Complexity: domain.ClassifyComplexity(domain.TypeSimple, crossChain),
		DetectedAt: time.Now(),
	}, nil
}

// rank orders candidates descending by net-profit percentage and caps the
// list.
func rank(candidates []*domain.Opportunity, maxResults int) []*domain.Opportunity {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Profit.NetProfitPct.GreaterThan(candidates[j].Profit.NetProfitPct)
	})
	if maxResults > 0 && len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	for i, opp := range candidates {
		opp.Rank = i + 1
	}
	return candidates
}

// validate checks both legs' liquidity and models execution latency.
// Liquidity errors downgrade the leg, never abort the cycle.
func (s *Scanner) validate(
	ctx context.Context,
	opp *domain.Opportunity,
	tradeAmount decimal.Decimal,
	result *domain.ScanResult,
) {
	adequate := true
	for _, leg := range []pricingDomain.PriceQuote{opp.BuyVenue, opp.SellVenue} {
		pool, err := s.feed.GetPoolState(ctx, leg.Venue, s.pairFor(opp.Token))
		if err != nil {
			result.Errors = append(result.Errors, domain.VenueError{
				Venue: leg.Venue,
				Token: opp.Token.Symbol(),
				Err:   apperror.Wrap(err, apperror.CodePoolFetchFailed, leg.Venue),
			})
			adequate = false
			continue
		}
		ok, err := s.liquidity.ValidateLiquidity(ctx, pool, tradeAmount, leg.LiquidityUSD)
		if err != nil {
			result.Errors = append(result.Errors, domain.VenueError{
				Venue: leg.Venue, Token: opp.Token.Symbol(), Err: err,
			})
			adequate = false
			continue
		}
		adequate = adequate && ok
	}

	opp.Validation = &domain.ValidationResult{
		LiquidityAdequate:      adequate,
		Executable:             adequate,
		EstimatedExecutionTime: s.executionTime(opp),
	}
}

// executionTime scales the baseline: cross-chain settlement and high
// complexity each multiply the latency.
func (s *Scanner) executionTime(opp *domain.Opportunity) time.Duration {
	est := decimal.NewFromInt(s.params.BaseExecutionTime.Milliseconds())
	if opp.CrossChain {
		est = est.Mul(s.params.CrossChainTimeFactor)
	}
	if opp.Complexity == domain.ComplexityHigh {
		est = est.Mul(s.params.HighComplexityFactor)
	}
	return time.Duration(est.IntPart()) * time.Millisecond
}

func (s *Scanner) enrich(opp *domain.Opportunity) {
	opp.Confidence = decimal.Min(opp.BuyVenue.Reliability, opp.SellVenue.Reliability)
	opp.Urgency = domain.ClassifyUrgency(opp.Spread.BasisPoints, s.params.MinSpreadBps)

	if opp.CrossChain {
		opp.Tags = append(opp.Tags, "cross-chain")
	} else {
		opp.Tags = append(opp.Tags, "same-chain")
	}
	if opp.Urgency == domain.UrgencyHigh {
		opp.Tags = append(opp.Tags, "high-spread")
	}
	if opp.Validation != nil && !opp.Validation.LiquidityAdequate {
		opp.Tags = append(opp.Tags, "thin-liquidity")
	}
}

// ScanTokens fans out one scan per token, concurrently when requested. A
// failing token is reported in TokenErrors without affecting siblings.
func (s *Scanner) ScanTokens(
	ctx context.Context,
	tokens []pricingDomain.Token,
	params BatchParams,
) (*BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan_tokens",
		trace.WithAttributes(attribute.Int("tokens", len(tokens))),
	)
	defer span.End()

	if len(tokens) == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "no tokens to scan")
	}

	started := time.Now()
	batch := &BatchResult{
		PerToken:    make(map[string]*domain.ScanResult, len(tokens)),
		TokenErrors: make(map[string]error),
	}

	var mu sync.Mutex
	record := func(token pricingDomain.Token, res *domain.ScanResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			batch.TokenErrors[token.String()] = err
			return
		}
		batch.PerToken[token.String()] = res
		batch.Ranked = append(batch.Ranked, res.Opportunities...)
		batch.Summary.VenuesQueried += res.Summary.VenuesQueried
		batch.Summary.VenuesAnswered += res.Summary.VenuesAnswered
		batch.Summary.QuotesRejectedStale += res.Summary.QuotesRejectedStale
		batch.Summary.CandidatesFound += res.Summary.CandidatesFound
	}

	if params.Concurrent {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.params.Concurrency)
		for _, token := range tokens {
			g.Go(func() error {
				res, err := s.Scan(gctx, token, params.Venues, params.Amount)
				record(token, res, err)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, token := range tokens {
			res, err := s.Scan(ctx, token, params.Venues, params.Amount)
			record(token, res, err)
		}
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = s.params.MaxResults
	}
	batch.Ranked = rank(batch.Ranked, maxResults)
	batch.Summary.TokensScanned = len(tokens)
	batch.Summary.OpportunitiesKept = len(batch.Ranked)
	batch.Summary.Duration = time.Since(started)

	span.SetAttributes(
		attribute.Int("opportunities", len(batch.Ranked)),
		attribute.Int("token_errors", len(batch.TokenErrors)),
	)
	span.SetStatus(codes.Ok, "scanned")

	return batch, nil
}

// ScanTriangular simulates a 3-leg route (base -> intermediate -> base)
// against each leg's pool and keeps it only when the compounded output
// exceeds the input after all fees.
func (s *Scanner) ScanTriangular(
	ctx context.Context,
	base pricingDomain.Token,
	legs []LegSpec,
	amountIn decimal.Decimal,
) (*domain.Opportunity, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan_triangular",
		trace.WithAttributes(attribute.String("base", base.String())),
	)
	defer span.End()

	if len(legs) != 3 {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("triangular route needs exactly 3 legs, got %d", len(legs)))
	}
	if !amountIn.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, amountIn.String())
	}

	maxImpact := s.params.MaxPriceImpactPct.Div(decimal.NewFromInt(100))
	route := make([]domain.RouteLeg, 0, 3)
	amount := amountIn
	now := time.Now()

	for _, leg := range legs {
		pool, err := s.feed.GetPoolState(ctx, leg.Venue, leg.Pair)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodePoolFetchFailed,
				fmt.Sprintf("leg %s@%s", leg.Pair, leg.Venue))
		}
		if pool.Simulated || pool.IsStale(now, s.params.FreshnessBound) {
			return nil, apperror.New(apperror.CodeStaleData,
				apperror.WithContext(fmt.Sprintf("pool %s@%s", leg.Pair, leg.Venue)))
		}

		model, err := ammDomain.ModelFor(pool.Family)
		if err != nil {
			return nil, err
		}
		impact, err := model.PriceImpact(pool, amount, maxImpact)
		if err != nil {
			return nil, err
		}

		route = append(route, domain.RouteLeg{
			Venue:   leg.Venue,
			Pair:    leg.Pair,
			Price:   impact.EffectivePrice,
			FeeRate: pool.FeeRate,
		})
		amount = impact.AmountOut
	}

	// Triangular rejection gate: compounded output must beat the input.
	if amount.LessThanOrEqual(amountIn) {
		span.AddEvent("route_rejected", trace.WithAttributes(
			attribute.String("out", amount.String()),
			attribute.String("in", amountIn.String()),
		))
		return nil, nil
	}

	net := amount.Sub(amountIn)
	netPct := net.Div(amountIn).Mul(decimal.NewFromInt(100))
	profit := &pricingDomain.NetProfitAnalysis{
		GrossProfit:  net,
		TotalCosts:   decimal.Zero, // leg fees already applied by the pools
		NetProfit:    net,
		NetProfitPct: netPct,
		ROI:          netPct,
		Efficiency:   decimal.NewFromInt(1),
		IsProfitable: true,
		Score:        pricingDomain.Clamp01(netPct.Div(decimal.NewFromInt(5))),
	}

	opp := &domain.Opportunity{
		Type:       domain.TypeTriangular,
		Token:      base,
		Route:      route,
		Profit:     profit,
		Complexity: domain.ComplexityHigh,
		Confidence: decimal.RequireFromString("0.5"), // no venue reliability on raw pools
		Urgency:    domain.UrgencyHigh,
		Tags:       []string{"triangular"},
		Validation: &domain.ValidationResult{
			LiquidityAdequate: true,
			Executable:        true,
			EstimatedExecutionTime: time.Duration(
				decimal.NewFromInt(s.params.BaseExecutionTime.Milliseconds()).
					Mul(s.params.HighComplexityFactor).IntPart(),
			) * time.Millisecond,
		},
		DetectedAt: time.Now(),
	}

	span.SetStatus(codes.Ok, "route kept")
	return opp, nil
}

// ScanTriangularRoutes composes candidate base -> A -> B -> base routes from
// the token universe and scans each one per venue. Rejected routes are
// skipped; per-route failures are collected, never fatal to siblings.
func (s *Scanner) ScanTriangularRoutes(
	ctx context.Context,
	base pricingDomain.Token,
	tokens []pricingDomain.Token,
	venues []string,
	amountIn decimal.Decimal,
) ([]*domain.Opportunity, []error) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan_triangular_routes",
		trace.WithAttributes(
			attribute.String("base", base.String()),
			attribute.Int("tokens", len(tokens)),
		),
	)
	defer span.End()

	mids := make([]pricingDomain.Token, 0, len(tokens))
	for _, token := range tokens {
		if token.Symbol() != base.Symbol() {
			mids = append(mids, token)
		}
	}

	var opps []*domain.Opportunity
	var errs []error
	for _, a := range mids {
		for _, b := range mids {
			if a.Symbol() == b.Symbol() {
				continue
			}
			for _, venue := range venues {
				legs := []LegSpec{
					{Venue: venue, Pair: base.Symbol() + "-" + a.Symbol()},
					{Venue: venue, Pair: a.Symbol() + "-" + b.Symbol()},
					{Venue: venue, Pair: b.Symbol() + "-" + base.Symbol()},
				}
				opp, err := s.ScanTriangular(ctx, base, legs, amountIn)
				if err != nil {
					errs = append(errs, fmt.Errorf("route %s->%s->%s on %s: %w",
						base.Symbol(), a.Symbol(), b.Symbol(), venue, err))
					continue
				}
				if opp != nil {
					opps = append(opps, opp)
				}
			}
		}
	}

	span.SetAttributes(
		attribute.Int("routes_kept", len(opps)),
		attribute.Int("route_errors", len(errs)),
	)
	span.SetStatus(codes.Ok, "scanned")

	return opps, errs
}

// CacheStats exposes the result cache counters.
func (s *Scanner) CacheStats() (hits, misses int64, entries int) {
	hits, misses = s.results.Stats()
	return hits, misses, s.results.Len()
}

// Close releases the result cache.
func (s *Scanner) Close() {
	s.results.Close()
}

func (s *Scanner) pairFor(token pricingDomain.Token) string {
	return token.Symbol() + "-" + s.params.ReferenceAsset
}

func keyFor(token pricingDomain.Token, venues []string) scanKey {
	sorted := make([]string, len(venues))
	copy(sorted, venues)
	sort.Strings(sorted)
	return scanKey{Token: token.String(), Venues: strings.Join(sorted, ",")}
}
