package ethereum

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-analysis-engine/business/gasfee/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/circuitbreaker"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

// CongestionMonitorConfig holds configuration for the congestion monitor.
type CongestionMonitorConfig struct {
	RPCURL       string
	Network      string
	PollInterval time.Duration // ~1 block time
	Alpha        float64       // EWMA smoothing factor in (0,1]
}

// DefaultCongestionMonitorConfig returns sensible defaults.
func DefaultCongestionMonitorConfig(rpcURL, network string) CongestionMonitorConfig {
	return CongestionMonitorConfig{
		RPCURL:       rpcURL,
		Network:      network,
		PollInterval: 12 * time.Second,
		Alpha:        0.3,
	}
}

// CongestionMonitor derives a 0-100 network load score from block-header
// gas utilization, smoothed with an EWMA so single full blocks don't spike
// the risk signal.
type CongestionMonitor struct {
	config CongestionMonitorConfig
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	score      decimal.Decimal
	lastSample time.Time
	scoreMu    sync.RWMutex

	done    chan struct{}
	closeMu sync.Mutex
	closed  bool

	cb *circuitbreaker.CircuitBreaker[*types.Header]

	tracer        trace.Tracer
	scoreGauge    metric.Float64Gauge
	sampleCounter metric.Int64Counter
}

// NewCongestionMonitor creates a new congestion monitor.
func NewCongestionMonitor(cfg CongestionMonitorConfig, log logger.LoggerInterface) (*CongestionMonitor, error) {
	m := &CongestionMonitor{
		config: cfg,
		logger: log,
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
		cb:     circuitbreaker.New[*types.Header](circuitbreaker.DefaultConfig("congestion-monitor")),
	}

	meter := otel.Meter(meterName)
	var err error
	m.scoreGauge, err = meter.Float64Gauge(
		"network_congestion_score",
		metric.WithDescription("Smoothed network congestion score (0-100)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	m.sampleCounter, err = meter.Int64Counter(
		"congestion_samples_total",
		metric.WithDescription("Block header samples taken for congestion scoring"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Connect dials the node and starts background header polling.
func (m *CongestionMonitor) Connect(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "congestion.connect",
		trace.WithAttributes(attribute.String("url", m.config.RPCURL)),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, m.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeNodeConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect congestion monitor"))
	}

	m.clientMu.Lock()
	m.client = client
	m.clientMu.Unlock()

	go m.poll()

	span.SetStatus(codes.Ok, "connected")
	m.logger.Info(ctx, "congestion monitor connected",
		"url", m.config.RPCURL, "network", m.config.Network)

	return nil
}

// Level returns the current congestion reading. It falls back to one
// on-demand sample when no background sample has landed yet.
func (m *CongestionMonitor) Level(ctx context.Context, network string) (*domain.CongestionLevel, error) {
	m.scoreMu.RLock()
	score, sampled := m.score, m.lastSample
	m.scoreMu.RUnlock()

	if sampled.IsZero() {
		if err := m.sample(ctx); err != nil {
			return nil, err
		}
		m.scoreMu.RLock()
		score, sampled = m.score, m.lastSample
		m.scoreMu.RUnlock()
	}

	return &domain.CongestionLevel{
		Score:     score,
		Network:   network,
		Timestamp: sampled,
	}, nil
}

func (m *CongestionMonitor) poll() {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.config.PollInterval)
			if err := m.sample(ctx); err != nil {
				m.logger.Warn(ctx, "congestion sample failed", "error", err)
			}
			cancel()
		}
	}
}

// sample fetches the latest header and folds its gas utilization into the
// EWMA score.
func (m *CongestionMonitor) sample(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "congestion.sample")
	defer span.End()

	m.clientMu.RLock()
	client := m.client
	m.clientMu.RUnlock()

	if client == nil {
		return apperror.New(apperror.CodeNodeConnectionError,
			apperror.WithContext("congestion monitor not connected"))
	}

	header, err := m.cb.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "header fetch failed")
		return apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest header"))
	}

	m.sampleCounter.Add(ctx, 1)

	utilization := decimal.Zero
	if header.GasLimit > 0 {
		utilization = decimal.NewFromUint64(header.GasUsed).
			Div(decimal.NewFromUint64(header.GasLimit)).
			Mul(decimal.NewFromInt(100))
	}

	alpha := decimal.NewFromFloat(m.config.Alpha)
	m.scoreMu.Lock()
	if m.lastSample.IsZero() {
		m.score = utilization
	} else {
		m.score = alpha.Mul(utilization).Add(decimal.NewFromInt(1).Sub(alpha).Mul(m.score))
	}
	m.lastSample = time.Now()
	score := m.score
	m.scoreMu.Unlock()

	scoreF, _ := score.Float64()
	m.scoreGauge.Record(ctx, scoreF)
	span.SetAttributes(
		attribute.Int64("block", header.Number.Int64()),
		attribute.Float64("score", scoreF),
	)
	span.SetStatus(codes.Ok, "sampled")

	return nil
}

// Close stops polling and releases the client.
func (m *CongestionMonitor) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)

	m.clientMu.Lock()
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.clientMu.Unlock()

	return nil
}
