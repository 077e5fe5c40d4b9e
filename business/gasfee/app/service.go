package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/gasfee/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

var gweiPerNative = decimal.NewFromInt(1_000_000_000)

// GasService prices operation sequences and picks gas strategies.
type GasService struct {
	oracle     GasOracle
	congestion CongestionMonitor
	prices     NativePriceSource

	maxGasGwei decimal.Decimal // safety clamp; zero disables it
	logger     logger.LoggerInterface
}

// NewGasService creates a new GasService.
func NewGasService(
	oracle GasOracle,
	congestion CongestionMonitor,
	prices NativePriceSource,
	maxGasGwei decimal.Decimal,
	log logger.LoggerInterface,
) *GasService {
	return &GasService{
		oracle:     oracle,
		congestion: congestion,
		prices:     prices,
		maxGasGwei: maxGasGwei,
		logger:     log,
	}
}

// Estimate prices a sequence of operations under the given strategy. All
// operations must be on the same network; cross-network sequences are
// estimated per leg by the caller.
func (s *GasService) Estimate(
	ctx context.Context,
	ops []domain.Operation,
	strategy domain.Strategy,
) (*domain.GasQuote, error) {
	if len(ops) == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "no operations to estimate")
	}

	price, err := s.oracle.GetGasPrice(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGasEstimationFailed, "suggest gas price")
	}

	gwei := price.Gwei.Mul(strategy.Multiplier())
	if s.maxGasGwei.IsPositive() && gwei.GreaterThan(s.maxGasGwei) {
		gwei = s.maxGasGwei
	}

	var totalLimit uint64
	for _, op := range ops {
		totalLimit += op.Limit()
	}

	nativeUSD, err := s.prices.NativeTokenPriceUSD(ctx, ops[0].Network)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGasEstimationFailed, "native token price")
	}

	// limit * gwei is the cost in gwei of native token.
	costNative := decimal.NewFromInt(int64(totalLimit)).Mul(gwei).Div(gweiPerNative)
	quote := &domain.GasQuote{
		TotalGasLimit:       totalLimit,
		GasPriceGwei:        gwei,
		TotalCostUSD:        costNative.Mul(nativeUSD),
		Strategy:            strategy,
		MaxConfirmationTime: s.confirmationTime(ops, strategy),
		Timestamp:           time.Now(),
	}

	s.logger.Debug(ctx, "gas estimated",
		"operations", len(ops),
		"gas_limit", totalLimit,
		"gwei", gwei.String(),
		"cost_usd", quote.TotalCostUSD.String(),
	)

	return quote, nil
}

// OptimizeStrategy picks the fastest strategy the expected profit can
// afford; a thin margin settles for economical.
func (s *GasService) OptimizeStrategy(
	ctx context.Context,
	expectedProfitUSD decimal.Decimal,
	ops []domain.Operation,
) (domain.Strategy, *domain.GasQuote, error) {
	for _, strategy := range []domain.Strategy{domain.StrategyFast, domain.StrategyStandard, domain.StrategyEconomical} {
		quote, err := s.Estimate(ctx, ops, strategy)
		if err != nil {
			return "", nil, err
		}
		// Fast needs 3x headroom, standard 1.5x, economical takes what's left.
		headroom := decimal.NewFromInt(1)
		switch strategy {
		case domain.StrategyFast:
			headroom = decimal.NewFromInt(3)
		case domain.StrategyStandard:
			headroom = decimal.RequireFromString("1.5")
		}
		if expectedProfitUSD.GreaterThanOrEqual(quote.TotalCostUSD.Mul(headroom)) {
			return strategy, quote, nil
		}
	}

	quote, err := s.Estimate(ctx, ops, domain.StrategyEconomical)
	if err != nil {
		return "", nil, err
	}
	return domain.StrategyEconomical, quote, nil
}

// Congestion returns the current network load reading.
func (s *GasService) Congestion(ctx context.Context, network string) (*domain.CongestionLevel, error) {
	return s.congestion.Level(ctx, network)
}

// confirmationTime scales the strategy's base latency by the number of
// sequential bridge hops, which dominate cross-chain settlement.
func (s *GasService) confirmationTime(ops []domain.Operation, strategy domain.Strategy) time.Duration {
	base := strategy.ConfirmationTime()
	bridges := 0
	for _, op := range ops {
		if op.Kind == domain.OpBridge {
			bridges++
		}
	}
	if bridges > 0 {
		base += time.Duration(bridges) * 10 * time.Minute
	}
	return base
}
