package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/arb-analysis-engine/business/analysis/domain"
	gasfeeDomain "github.com/fd1az/arb-analysis-engine/business/gasfee/domain"
	pricingApp "github.com/fd1az/arb-analysis-engine/business/pricing/app"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	scannerApp "github.com/fd1az/arb-analysis-engine/business/scanner/app"
	scannerDomain "github.com/fd1az/arb-analysis-engine/business/scanner/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arb-analysis-engine/business/analysis/app"
	meterName  = "github.com/fd1az/arb-analysis-engine/business/analysis/app"
)

// Composite score weights. Profit dominates, then liquidity, risk, gas.
var (
	weightProfit        = decimal.RequireFromString("0.4")
	weightLiquidityComp = decimal.RequireFromString("0.3")
	weightRiskComp      = decimal.RequireFromString("0.2")
	weightGasComp       = decimal.RequireFromString("0.1")

	executeImmediatelyFloor = decimal.RequireFromString("0.8")
	monitoringFloor         = decimal.RequireFromString("0.7")
)

// EngineParams holds the orchestrator's own thresholds. Collaborator
// thresholds (impact ceiling, risk weights) live in their components.
type EngineParams struct {
	FreshnessBound      time.Duration
	MinCompositeScore   decimal.Decimal
	MinLiquidityUSD     decimal.Decimal
	NormalGasGwei       decimal.Decimal
	DefaultVolatility   decimal.Decimal // fraction, used when no source answers
	DefaultSlippageRate decimal.Decimal
	BridgeFeeUSD        decimal.Decimal
	ReferenceAsset      string
	Concurrency         int
}

// Constraints are optional per-call overrides; zero values keep defaults.
type Constraints struct {
	MinCompositeScore decimal.Decimal
	GasStrategy       gasfeeDomain.Strategy
	SlippageRate      decimal.Decimal
}

// AnalysisReport is the full breakdown of one analyzeOpportunity call.
type AnalysisReport struct {
	Opportunity *scannerDomain.Opportunity
	TradeAmount decimal.Decimal

	Spread         pricingDomain.Spread
	BuyValidation  *domain.LiquidityValidation
	SellValidation *domain.LiquidityValidation
	GasQuote       *gasfeeDomain.GasQuote
	Strategy       gasfeeDomain.Strategy
	Profit         *pricingDomain.NetProfitAnalysis
	Risk           *domain.RiskAssessment
	Assessment     *domain.FinalAssessment

	Duration   time.Duration
	AnalyzedAt time.Time
}

type engineMetrics struct {
	analyses    metric.Int64Counter
	executable  metric.Int64Counter
	failures    metric.Int64Counter
	scans       metric.Int64Counter
	scenarios   metric.Int64Counter
	analysisDur metric.Float64Histogram
}

// engineCounters back getEngineStats; the OTel instruments feed dashboards.
type engineCounters struct {
	analyses   atomic.Int64
	executable atomic.Int64
	failures   atomic.Int64
	scans      atomic.Int64
	scenarios  atomic.Int64
}

// Engine sequences the full analysis pipeline: freshness guard, spread,
// liquidity, gas, net profit, risk, strategy, composite verdict. Each call
// operates on its own snapshot; no state is shared across analyses beyond
// counters.
type Engine struct {
	params EngineParams

	calc       *pricingApp.ProfitCalculator
	validator  *LiquidityValidator
	scorer     *RiskScorer
	gas        GasEstimator
	feed       pricingApp.FeedProvider
	scanner    *scannerApp.Scanner
	volatility VolatilitySource // optional

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *engineMetrics

	counters engineCounters
	started  time.Time
}

// NewEngine wires the pipeline.
func NewEngine(
	params EngineParams,
	calc *pricingApp.ProfitCalculator,
	validator *LiquidityValidator,
	scorer *RiskScorer,
	gas GasEstimator,
	feed pricingApp.FeedProvider,
	scanner *scannerApp.Scanner,
	volatility VolatilitySource,
	log logger.LoggerInterface,
) (*Engine, error) {
	e := &Engine{
		params:     params,
		calc:       calc,
		validator:  validator,
		scorer:     scorer,
		gas:        gas,
		feed:       feed,
		scanner:    scanner,
		volatility: volatility,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		started:    time.Now(),
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &engineMetrics{}

	e.metrics.analyses, err = meter.Int64Counter(
		"analyses_total",
		metric.WithDescription("Opportunity analyses started"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return err
	}

	e.metrics.executable, err = meter.Int64Counter(
		"analyses_executable_total",
		metric.WithDescription("Analyses that produced an executable verdict"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return err
	}

	e.metrics.failures, err = meter.Int64Counter(
		"analysis_failures_total",
		metric.WithDescription("Analyses that failed before producing a verdict"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	e.metrics.scans, err = meter.Int64Counter(
		"scan_and_analyze_total",
		metric.WithDescription("Batch scan-and-analyze cycles"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return err
	}

	e.metrics.scenarios, err = meter.Int64Counter(
		"scenarios_simulated_total",
		metric.WithDescription("What-if scenarios simulated"),
		metric.WithUnit("{scenario}"),
	)
	if err != nil {
		return err
	}

	e.metrics.analysisDur, err = meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("End-to-end analysis duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

// AnalyzeOpportunity runs the full pipeline over one opportunity snapshot.
func (e *Engine) AnalyzeOpportunity(
	ctx context.Context,
	opp *scannerDomain.Opportunity,
	tradeAmount decimal.Decimal,
	constraints *Constraints,
) (*AnalysisReport, error) {
	ctx, span := e.tracer.Start(ctx, "engine.analyze")
	defer span.End()

	started := time.Now()
	e.counters.analyses.Add(1)
	e.metrics.analyses.Add(ctx, 1)

	report, err := e.analyze(ctx, opp, tradeAmount, constraints)
	if err != nil {
		e.counters.failures.Add(1)
		e.metrics.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	report.Duration = time.Since(started)
	report.AnalyzedAt = time.Now()
	e.metrics.analysisDur.Record(ctx, report.Duration.Seconds())

	if report.Assessment.IsExecutable {
		e.counters.executable.Add(1)
		e.metrics.executable.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Bool("executable", report.Assessment.IsExecutable),
		attribute.String("recommendation", string(report.Assessment.Recommendation)),
	)
	span.SetStatus(codes.Ok, "analyzed")

	e.logger.Info(ctx, "opportunity analyzed",
		"token", opp.Token.String(),
		"type", string(opp.Type),
		"executable", report.Assessment.IsExecutable,
		"composite", report.Assessment.CompositeScore.String(),
		"duration", report.Duration,
	)

	return report, nil
}

func (e *Engine) analyze(
	ctx context.Context,
	opp *scannerDomain.Opportunity,
	tradeAmount decimal.Decimal,
	constraints *Constraints,
) (*AnalysisReport, error) {
	if opp == nil {
		return nil, apperror.Validation(apperror.CodeRequiredField, "opportunity")
	}
	if !tradeAmount.IsPositive() {
		return nil, apperror.Validation(apperror.CodeInvalidTradeSize, tradeAmount.String())
	}
	if err := e.guardFreshness(opp); err != nil {
		return nil, err
	}

	if opp.Type == scannerDomain.TypeTriangular {
		return e.analyzeTriangular(ctx, opp, tradeAmount, constraints)
	}
	return e.analyzeSimple(ctx, opp, tradeAmount, constraints)
}

// guardFreshness rejects simulated payloads and anything older than the
// staleness bound before a single number is computed.
func (e *Engine) guardFreshness(opp *scannerDomain.Opportunity) error {
	now := time.Now()

	if opp.Type == scannerDomain.TypeTriangular {
		if now.Sub(opp.DetectedAt) > e.params.FreshnessBound {
			return apperror.New(apperror.CodeStaleData,
				apperror.WithContext(fmt.Sprintf("route detected %s ago", now.Sub(opp.DetectedAt))))
		}
		return nil
	}

	for _, leg := range []pricingDomain.PriceQuote{opp.BuyVenue, opp.SellVenue} {
		if leg.Simulated {
			return apperror.New(apperror.CodeSimulatedData,
				apperror.WithContext(fmt.Sprintf("venue %s returned a simulated quote", leg.Venue)))
		}
		if leg.IsStale(now, e.params.FreshnessBound) {
			return apperror.New(apperror.CodeStaleData,
				apperror.WithContext(fmt.Sprintf("venue %s quote is %s old", leg.Venue, leg.Age(now))))
		}
	}
	return nil
}

func (e *Engine) analyzeSimple(
	ctx context.Context,
	opp *scannerDomain.Opportunity,
	tradeAmount decimal.Decimal,
	constraints *Constraints,
) (*AnalysisReport, error) {
	report := &AnalysisReport{Opportunity: opp, TradeAmount: tradeAmount}

	// Spread
	spread, err := e.calc.Spread(opp.BuyVenue.Price, opp.SellVenue.Price)
	if err != nil {
		return nil, err
	}
	report.Spread = spread

	// Liquidity, both legs
	pair := opp.Token.Symbol() + "-" + e.params.ReferenceAsset
	report.BuyValidation, err = e.validateLeg(ctx, opp.BuyVenue, pair, tradeAmount)
	if err != nil {
		return nil, err
	}
	report.SellValidation, err = e.validateLeg(ctx, opp.SellVenue, pair, tradeAmount)
	if err != nil {
		return nil, err
	}
	liquidityValid := report.BuyValidation.IsValid && report.SellValidation.IsValid

	// Gas
	ops := operationsFor(opp)
	strategy := gasfeeDomain.StrategyStandard
	if constraints != nil && constraints.GasStrategy != "" {
		strategy = constraints.GasStrategy
	}
	report.GasQuote, err = e.gas.Estimate(ctx, ops, strategy)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGasEstimationFailed, "analysis gas estimate")
	}
	report.Strategy = strategy

	// Net profit with measured slippage
	slippage := decimal.Max(report.BuyValidation.Impact.Slippage, report.SellValidation.Impact.Slippage)
	slippageRate := e.params.DefaultSlippageRate
	if slippage.IsPositive() {
		slippageRate = slippage
	}
	if constraints != nil && constraints.SlippageRate.IsPositive() {
		slippageRate = constraints.SlippageRate
	}
	costs := pricingDomain.Costs{
		GasFeeUSD:       report.GasQuote.TotalCostUSD,
		ProtocolFeeRate: opp.BuyVenue.FeeRate.Add(opp.SellVenue.FeeRate),
		SlippageRate:    slippageRate,
	}
	if opp.CrossChain {
		costs.BridgeFeeUSD = e.params.BridgeFeeUSD
	}
	report.Profit, err = e.calc.NetProfit(opp.BuyVenue.Price, opp.SellVenue.Price, tradeAmount, costs)
	if err != nil {
		return nil, err
	}

	// Risk
	report.Risk = e.scorer.Assess(ctx, RiskInputs{
		Volatility:      e.volatilityFor(ctx, opp.Token),
		LiquidityUSD:    decimal.Min(opp.BuyVenue.LiquidityUSD, opp.SellVenue.LiquidityUSD),
		SlippagePct:     slippageRate.Mul(decimal.NewFromInt(100)),
		ExecutionTime:   executionTimeOf(opp),
		GasPriceGwei:    report.GasQuote.GasPriceGwei,
		CongestionLevel: e.congestionFor(ctx, opp.BuyVenue.Network),
	})

	// Strategy optimization, informational
	if optimized, quote, err := e.gas.OptimizeStrategy(ctx, report.Profit.NetProfit, ops); err == nil {
		report.Strategy = optimized
		report.GasQuote = quote
	}

	e.finalize(report, liquidityValid, constraints)
	return report, nil
}

// analyzeTriangular reuses the route's compounded profit (leg fees already
// applied by the pools) and charges gas on top.
func (e *Engine) analyzeTriangular(
	ctx context.Context,
	opp *scannerDomain.Opportunity,
	tradeAmount decimal.Decimal,
	constraints *Constraints,
) (*AnalysisReport, error) {
	if opp.Profit == nil {
		return nil, apperror.Validation(apperror.CodeRequiredField, "triangular route profit")
	}

	report := &AnalysisReport{Opportunity: opp, TradeAmount: tradeAmount}

	ops := operationsFor(opp)
	strategy := gasfeeDomain.StrategyStandard
	if constraints != nil && constraints.GasStrategy != "" {
		strategy = constraints.GasStrategy
	}
	quote, err := e.gas.Estimate(ctx, ops, strategy)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGasEstimationFailed, "triangular gas estimate")
	}
	report.GasQuote = quote
	report.Strategy = strategy

	// Re-derive net profit with gas charged.
	gross := opp.Profit.GrossProfit
	net := gross.Sub(quote.TotalCostUSD)
	netPct := decimal.Zero
	if tradeAmount.IsPositive() {
		netPct = net.Div(tradeAmount).Mul(decimal.NewFromInt(100))
	}
	profit := *opp.Profit
	profit.GasFee = quote.TotalCostUSD
	profit.TotalCosts = quote.TotalCostUSD
	profit.NetProfit = net
	profit.NetProfitPct = netPct
	profit.IsProfitable = net.IsPositive()
	profit.Score = pricingDomain.Clamp01(netPct.Div(decimal.NewFromInt(5)))
	report.Profit = &profit

	report.Risk = e.scorer.Assess(ctx, RiskInputs{
		Volatility:      e.volatilityFor(ctx, opp.Token),
		LiquidityUSD:    e.params.MinLiquidityUSD, // raw pools carry no USD quote; assume the floor
		SlippagePct:     e.params.DefaultSlippageRate.Mul(decimal.NewFromInt(100)),
		ExecutionTime:   executionTimeOf(opp),
		GasPriceGwei:    quote.GasPriceGwei,
		CongestionLevel: e.congestionFor(ctx, opp.Token.Network()),
	})

	liquidityValid := opp.Validation != nil && opp.Validation.LiquidityAdequate
	e.finalize(report, liquidityValid, constraints)
	return report, nil
}

// finalize merges the stage outputs into the composite verdict.
func (e *Engine) finalize(report *AnalysisReport, liquidityValid bool, constraints *Constraints) {
	profitScore := decimal.Zero
	if report.Profit.NetProfitPct.IsPositive() {
		profitScore = pricingDomain.Clamp01(report.Profit.NetProfitPct.Div(decimal.NewFromInt(5)))
	}

	liquidityScore := decimal.RequireFromString("0.5")
	if report.BuyValidation != nil && report.SellValidation != nil {
		worst := decimal.Max(report.BuyValidation.RiskScore, report.SellValidation.RiskScore)
		liquidityScore = decimal.NewFromInt(1).Sub(worst)
	}

	riskScore := decimal.NewFromInt(1).Sub(report.Risk.TotalScore)

	gasScore := decimal.NewFromInt(1)
	if ceiling := e.params.NormalGasGwei.Mul(decimal.NewFromInt(3)); ceiling.IsPositive() {
		gasScore = decimal.NewFromInt(1).Sub(pricingDomain.Clamp01(report.GasQuote.GasPriceGwei.Div(ceiling)))
	}

	composite := profitScore.Mul(weightProfit).
		Add(liquidityScore.Mul(weightLiquidityComp)).
		Add(riskScore.Mul(weightRiskComp)).
		Add(gasScore.Mul(weightGasComp))

	minComposite := e.params.MinCompositeScore
	if constraints != nil && constraints.MinCompositeScore.IsPositive() {
		minComposite = constraints.MinCompositeScore
	}

	executable := report.Profit.IsProfitable &&
		liquidityValid &&
		report.Risk.IsAcceptable &&
		composite.GreaterThanOrEqual(minComposite)

	assessment := &domain.FinalAssessment{
		CompositeScore: composite,
		ProfitScore:    profitScore,
		LiquidityScore: liquidityScore,
		RiskScore:      riskScore,
		GasScore:       gasScore,
		IsExecutable:   executable,
	}

	if !report.Profit.IsProfitable {
		assessment.CriticalFactors = append(assessment.CriticalFactors, "unprofitable after costs")
	}
	if !liquidityValid {
		assessment.CriticalFactors = append(assessment.CriticalFactors, "inadequate liquidity")
	}
	if !report.Risk.IsAcceptable {
		assessment.CriticalFactors = append(assessment.CriticalFactors, "risk above ceiling")
	}
	if composite.LessThan(minComposite) {
		assessment.CriticalFactors = append(assessment.CriticalFactors, "composite score below minimum")
	}

	switch {
	case executable && composite.GreaterThanOrEqual(executeImmediatelyFloor) && report.Risk.Level == domain.RiskLow:
		assessment.Recommendation = domain.ExecuteImmediately
	case executable && composite.GreaterThanOrEqual(monitoringFloor):
		assessment.Recommendation = domain.ExecuteWithMonitoring
	case executable:
		assessment.Recommendation = domain.ExecuteWithCaution
	default:
		assessment.Recommendation = domain.DoNotExecute
	}

	if executable {
		assessment.Plan = e.buildPlan(report)
	} else {
		assessment.Alternatives = e.alternatives(report, liquidityValid, gasScore)
	}

	report.Assessment = assessment
}

func (e *Engine) buildPlan(report *AnalysisReport) *domain.ExecutionPlan {
	opp := report.Opportunity
	confirm := report.Strategy.ConfirmationTime()

	var steps []domain.PlanStep
	add := func(desc string, dur time.Duration) {
		steps = append(steps, domain.PlanStep{
			Number:        len(steps) + 1,
			Description:   desc,
			EstimatedTime: dur,
		})
	}

	add(fmt.Sprintf("approve %s spend", opp.Token.Symbol()), 30*time.Second)

	if opp.Type == scannerDomain.TypeTriangular {
		for _, leg := range opp.Route {
			add(fmt.Sprintf("swap %s on %s", leg.Pair, leg.Venue), confirm)
		}
	} else {
		add(fmt.Sprintf("buy %s on %s", opp.Token.Symbol(), opp.BuyVenue.Venue), confirm)
		if opp.CrossChain {
			add(fmt.Sprintf("bridge %s to %s", opp.Token.Symbol(), opp.SellVenue.Network), 10*time.Minute)
		}
		add(fmt.Sprintf("sell %s on %s", opp.Token.Symbol(), opp.SellVenue.Venue), confirm)
	}

	var total time.Duration
	for _, s := range steps {
		total += s.EstimatedTime
	}

	return &domain.ExecutionPlan{
		Steps:         steps,
		EstimatedTime: total,
		GasStrategy:   string(report.Strategy),
	}
}

func (e *Engine) alternatives(report *AnalysisReport, liquidityValid bool, gasScore decimal.Decimal) []string {
	var alts []string
	if !liquidityValid {
		for _, v := range []*domain.LiquidityValidation{report.BuyValidation, report.SellValidation} {
			if v != nil {
				alts = append(alts, v.Recommendations...)
			}
		}
	}
	if !report.Profit.IsProfitable {
		alts = append(alts, "wait for a wider spread")
	}
	if gasScore.LessThan(decimal.RequireFromString("0.5")) {
		alts = append(alts, "wait for lower gas prices or use the economical strategy")
	}
	if len(alts) == 0 {
		alts = append(alts, "monitor for improved market conditions")
	}
	return dedupe(alts)
}

func (e *Engine) validateLeg(
	ctx context.Context,
	leg pricingDomain.PriceQuote,
	pair string,
	tradeAmount decimal.Decimal,
) (*domain.LiquidityValidation, error) {
	pool, err := e.feed.GetPoolState(ctx, leg.Venue, pair)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodePoolFetchFailed, leg.Venue)
	}
	if pool.Simulated {
		return nil, apperror.New(apperror.CodeSimulatedData,
			apperror.WithContext(fmt.Sprintf("pool %s@%s", pair, leg.Venue)))
	}
	if pool.IsStale(time.Now(), e.params.FreshnessBound) {
		return nil, apperror.New(apperror.CodeStaleData,
			apperror.WithContext(fmt.Sprintf("pool %s@%s", pair, leg.Venue)))
	}
	return e.validator.Validate(ctx, pool, tradeAmount, leg.LiquidityUSD)
}

func (e *Engine) volatilityFor(ctx context.Context, token pricingDomain.Token) decimal.Decimal {
	if e.volatility == nil {
		return e.params.DefaultVolatility
	}
	vol, err := e.volatility.Volatility(ctx, token)
	if err != nil {
		e.logger.Debug(ctx, "volatility source failed, using default",
			"token", token.String(), "error", err)
		return e.params.DefaultVolatility
	}
	return vol
}

// congestionFor treats a failed reading as moderate load rather than
// blocking the analysis.
func (e *Engine) congestionFor(ctx context.Context, network string) decimal.Decimal {
	level, err := e.gas.Congestion(ctx, network)
	if err != nil {
		e.logger.Debug(ctx, "congestion reading failed, assuming moderate",
			"network", network, "error", err)
		return decimal.NewFromInt(50)
	}
	return level.Score
}

func operationsFor(opp *scannerDomain.Opportunity) []gasfeeDomain.Operation {
	if opp.Type == scannerDomain.TypeTriangular {
		ops := []gasfeeDomain.Operation{{Kind: gasfeeDomain.OpApprove, Network: opp.Token.Network()}}
		for range opp.Route {
			ops = append(ops, gasfeeDomain.Operation{Kind: gasfeeDomain.OpSwap, Network: opp.Token.Network()})
		}
		return ops
	}

	ops := []gasfeeDomain.Operation{
		{Kind: gasfeeDomain.OpApprove, Network: opp.BuyVenue.Network},
		{Kind: gasfeeDomain.OpSwap, Network: opp.BuyVenue.Network},
	}
	if opp.CrossChain {
		ops = append(ops, gasfeeDomain.Operation{Kind: gasfeeDomain.OpBridge, Network: opp.BuyVenue.Network})
	}
	ops = append(ops, gasfeeDomain.Operation{Kind: gasfeeDomain.OpSwap, Network: opp.SellVenue.Network})
	return ops
}

func executionTimeOf(opp *scannerDomain.Opportunity) time.Duration {
	if opp.Validation != nil {
		return opp.Validation.EstimatedExecutionTime
	}
	return 15 * time.Second
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ScanAndAnalyzeParams controls a batch scan-and-analyze cycle.
// TriangularBases lists the assets to anchor 3-leg routes on; empty skips
// triangular scanning.
type ScanAndAnalyzeParams struct {
	Tokens          []pricingDomain.Token
	Venues          []string
	Amount          decimal.Decimal
	MaxResults      int
	Concurrent      bool
	TriangularBases []string
}

// ScanAndAnalyzeResult pairs the scan summary with per-opportunity reports.
// Per-token and per-opportunity failures are collected, never fatal.
type ScanAndAnalyzeResult struct {
	Summary         scannerDomain.ScanSummary
	Reports         []*AnalysisReport
	TokenErrors     map[string]error
	AnalysisErrors  []error
	Recommendations []string
}

// ScanAndAnalyze scans the tokens, then runs the full pipeline over each
// ranked survivor with bounded concurrency.
func (e *Engine) ScanAndAnalyze(
	ctx context.Context,
	params ScanAndAnalyzeParams,
) (*ScanAndAnalyzeResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.scan_and_analyze",
		trace.WithAttributes(attribute.Int("tokens", len(params.Tokens))),
	)
	defer span.End()

	e.counters.scans.Add(1)
	e.metrics.scans.Add(ctx, 1)

	batch, err := e.scanner.ScanTokens(ctx, params.Tokens, scannerApp.BatchParams{
		Amount:     params.Amount,
		Venues:     params.Venues,
		MaxResults: params.MaxResults,
		Concurrent: params.Concurrent,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}

	result := &ScanAndAnalyzeResult{
		Summary:     batch.Summary,
		TokenErrors: batch.TokenErrors,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency())

	for _, opp := range batch.Ranked {
		g.Go(func() error {
			report, err := e.AnalyzeOpportunity(gctx, opp, params.Amount, nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.AnalysisErrors = append(result.AnalysisErrors, err)
				return nil
			}
			result.Reports = append(result.Reports, report)
			return nil
		})
	}
	_ = g.Wait()

	e.scanTriangularBases(ctx, params, result)

	sortReports(result.Reports)
	result.Recommendations = summarize(result.Reports)

	span.SetAttributes(
		attribute.Int("reports", len(result.Reports)),
		attribute.Int("analysis_errors", len(result.AnalysisErrors)),
	)
	span.SetStatus(codes.Ok, "complete")

	return result, nil
}

// scanTriangularBases folds 3-leg routes anchored on each configured base
// asset into the cycle's reports. Route and analysis failures are collected
// alongside the pairwise ones.
func (e *Engine) scanTriangularBases(
	ctx context.Context,
	params ScanAndAnalyzeParams,
	result *ScanAndAnalyzeResult,
) {
	if len(params.TriangularBases) == 0 || len(params.Tokens) == 0 {
		return
	}
	network := params.Tokens[0].Network()

	for _, baseSym := range params.TriangularBases {
		base, err := pricingDomain.NewToken(strings.ToUpper(baseSym), network, 18)
		if err != nil {
			result.AnalysisErrors = append(result.AnalysisErrors, err)
			continue
		}

		routes, routeErrs := e.scanner.ScanTriangularRoutes(ctx, base, params.Tokens, params.Venues, params.Amount)
		result.AnalysisErrors = append(result.AnalysisErrors, routeErrs...)
		result.Summary.CandidatesFound += len(routes)
		result.Summary.OpportunitiesKept += len(routes)

		for _, opp := range routes {
			report, err := e.AnalyzeOpportunity(ctx, opp, params.Amount, nil)
			if err != nil {
				result.AnalysisErrors = append(result.AnalysisErrors, err)
				continue
			}
			result.Reports = append(result.Reports, report)
		}
	}
}

func (e *Engine) concurrency() int {
	if e.params.Concurrency > 0 {
		return e.params.Concurrency
	}
	return 4
}

// sortReports orders descending by composite score.
func sortReports(reports []*AnalysisReport) {
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Assessment.CompositeScore.GreaterThan(reports[j].Assessment.CompositeScore)
	})
}

func summarize(reports []*AnalysisReport) []string {
	executable := 0
	for _, r := range reports {
		if r.Assessment.IsExecutable {
			executable++
		}
	}

	var recs []string
	switch {
	case len(reports) == 0:
		recs = append(recs, "no opportunities cleared the filters; widen venues or lower thresholds")
	case executable == 0:
		recs = append(recs, "no executable opportunities; review critical factors on the top candidates")
	default:
		recs = append(recs, fmt.Sprintf("%d of %d analyzed opportunities are executable", executable, len(reports)))
		top := reports[0]
		if top.Assessment.IsExecutable {
			recs = append(recs, fmt.Sprintf("best candidate: %s via %s (composite %s)",
				top.Opportunity.Token.Symbol(),
				routeOf(top.Opportunity),
				top.Assessment.CompositeScore.StringFixed(3)))
		}
	}
	return recs
}

// routeOf renders an opportunity's venue path for log and summary lines.
func routeOf(opp *scannerDomain.Opportunity) string {
	if opp.Type == scannerDomain.TypeTriangular {
		legs := make([]string, len(opp.Route))
		for i, leg := range opp.Route {
			legs[i] = leg.Pair + "@" + leg.Venue
		}
		return strings.Join(legs, " -> ")
	}
	return opp.BuyVenue.Venue + " -> " + opp.SellVenue.Venue
}

// Scenario is one what-if variant; zero values inherit the base call.
type Scenario struct {
	Name              string
	TradeAmount       decimal.Decimal
	GasStrategy       gasfeeDomain.Strategy
	SlippageRate      decimal.Decimal
	MinCompositeScore decimal.Decimal
}

// ScenarioOutcome is one scenario's result or failure.
type ScenarioOutcome struct {
	Name   string
	Report *AnalysisReport
	Err    error
}

// SimulationResult aggregates a what-if sweep.
type SimulationResult struct {
	Outcomes    []ScenarioOutcome
	Best        *ScenarioOutcome
	RiskSummary map[string]domain.RiskLevel
}

// SimulateScenarios re-runs the pipeline per scenario with modified inputs.
// Each run gets its own constraint copy; nothing shared is mutated.
func (e *Engine) SimulateScenarios(
	ctx context.Context,
	opp *scannerDomain.Opportunity,
	baseAmount decimal.Decimal,
	scenarios []Scenario,
) (*SimulationResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.simulate",
		trace.WithAttributes(attribute.Int("scenarios", len(scenarios))),
	)
	defer span.End()

	if len(scenarios) == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "no scenarios to simulate")
	}

	result := &SimulationResult{
		Outcomes:    make([]ScenarioOutcome, 0, len(scenarios)),
		RiskSummary: make(map[string]domain.RiskLevel, len(scenarios)),
	}

	for _, sc := range scenarios {
		e.counters.scenarios.Add(1)
		e.metrics.scenarios.Add(ctx, 1)

		amount := baseAmount
		if sc.TradeAmount.IsPositive() {
			amount = sc.TradeAmount
		}
		constraints := &Constraints{
			GasStrategy:       sc.GasStrategy,
			SlippageRate:      sc.SlippageRate,
			MinCompositeScore: sc.MinCompositeScore,
		}

		report, err := e.AnalyzeOpportunity(ctx, opp, amount, constraints)
		outcome := ScenarioOutcome{Name: sc.Name, Report: report, Err: err}
		result.Outcomes = append(result.Outcomes, outcome)

		if err != nil {
			continue
		}
		result.RiskSummary[sc.Name] = report.Risk.Level

		if betterScenario(&outcome, result.Best) {
			latest := outcome
			result.Best = &latest
		}
	}

	span.SetStatus(codes.Ok, "simulated")
	return result, nil
}

// betterScenario prefers executable outcomes, then higher composite score.
func betterScenario(candidate, current *ScenarioOutcome) bool {
	if candidate.Report == nil {
		return false
	}
	if current == nil || current.Report == nil {
		return true
	}
	a, b := candidate.Report.Assessment, current.Report.Assessment
	if a.IsExecutable != b.IsExecutable {
		return a.IsExecutable
	}
	return a.CompositeScore.GreaterThan(b.CompositeScore)
}

// EngineStats is the observability snapshot returned by Stats.
type EngineStats struct {
	Uptime             time.Duration
	AnalysesTotal      int64
	AnalysesExecutable int64
	AnalysisFailures   int64
	ScansTotal         int64
	ScenariosTotal     int64

	ScanCacheHits    int64
	ScanCacheMisses  int64
	ScanCacheEntries int

	Params EngineParams
}

// Stats returns in-memory engine counters; nothing is persisted.
func (e *Engine) Stats() EngineStats {
	hits, misses, entries := e.scanner.CacheStats()
	return EngineStats{
		Uptime:             time.Since(e.started),
		AnalysesTotal:      e.counters.analyses.Load(),
		AnalysesExecutable: e.counters.executable.Load(),
		AnalysisFailures:   e.counters.failures.Load(),
		ScansTotal:         e.counters.scans.Load(),
		ScenariosTotal:     e.counters.scenarios.Load(),
		ScanCacheHits:      hits,
		ScanCacheMisses:    misses,
		ScanCacheEntries:   entries,
		Params:             e.params,
	}
}
