// Package dexfeed implements the pricing FeedProvider port against an
// aggregated DEX market-data service: a combined-streams WebSocket for live
// quote and pool updates, with a REST fallback when the stream goes stale.
package dexfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/wsconn"
)

const (
	tracerName = "dexfeed"
	meterName  = "dexfeed"
)

// StreamConfig holds configuration for the streaming client.
type StreamConfig struct {
	BaseURL      string   // WebSocket base URL
	Venues       []string // venues to subscribe (e.g. "uniswap-v3")
	Symbols      []string // token symbols to subscribe (e.g. "ETH")
	Pairs        []string // pair symbols to subscribe (e.g. "ETH-USDC")
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig(baseURL string, venues, symbols, pairs []string) StreamConfig {
	return StreamConfig{
		BaseURL:      baseURL,
		Venues:       venues,
		Symbols:      symbols,
		Pairs:        pairs,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type streamMetrics struct {
	messagesReceived metric.Int64Counter
	quoteUpdates     metric.Int64Counter
	poolUpdates      metric.Int64Counter
	subscriptions    metric.Int64UpDownCounter
	parseErrors      metric.Int64Counter
}

// StreamClient multiplexes quote and pool streams over one WebSocket.
type StreamClient struct {
	config StreamConfig
	logger logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	onQuote    func(*QuoteEvent)
	onPool     func(*PoolEvent)
	handlersMu sync.RWMutex

	subscriptions map[string]struct{}
	subsMu        sync.RWMutex
	nextID        atomic.Int64

	tracer  trace.Tracer
	metrics *streamMetrics

	running atomic.Bool
}

// NewStreamClient creates a streaming client. Connect must be called before
// any data flows.
func NewStreamClient(cfg StreamConfig, log logger.LoggerInterface) (*StreamClient, error) {
	c := &StreamClient{
		config:        cfg,
		logger:        log,
		subscriptions: make(map[string]struct{}),
		tracer:        otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *StreamClient) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &streamMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"dexfeed_messages_total",
		metric.WithDescription("Total stream messages received"),
	)
	if err != nil {
		return err
	}

	c.metrics.quoteUpdates, err = meter.Int64Counter(
		"dexfeed_quote_updates_total",
		metric.WithDescription("Total quote updates received"),
	)
	if err != nil {
		return err
	}

	c.metrics.poolUpdates, err = meter.Int64Counter(
		"dexfeed_pool_updates_total",
		metric.WithDescription("Total pool state updates received"),
	)
	if err != nil {
		return err
	}

	c.metrics.subscriptions, err = meter.Int64UpDownCounter(
		"dexfeed_subscriptions",
		metric.WithDescription("Active stream subscriptions"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"dexfeed_parse_errors_total",
		metric.WithDescription("Stream message parse errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// OnQuote registers a handler for quote updates.
func (c *StreamClient) OnQuote(handler func(*QuoteEvent)) {
	c.handlersMu.Lock()
	c.onQuote = handler
	c.handlersMu.Unlock()
}

// OnPool registers a handler for pool state updates.
func (c *StreamClient) OnPool(handler func(*PoolEvent)) {
	c.handlersMu.Lock()
	c.onPool = handler
	c.handlersMu.Unlock()
}

// Connect establishes the WebSocket connection and subscribes to all
// configured venue/symbol and venue/pair streams.
func (c *StreamClient) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "dexfeed.connect",
		trace.WithAttributes(
			attribute.StringSlice("venues", c.config.Venues),
			attribute.StringSlice("symbols", c.config.Symbols),
		),
	)
	defer span.End()

	wsURL, streams, err := c.buildStreamURL()
	if err != nil {
		return err
	}

	wsCfg := wsconn.DefaultConfig(wsURL, "dexfeed")
	wsCfg.ReadTimeout = c.config.ReadTimeout
	wsCfg.WriteTimeout = c.config.WriteTimeout

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to create stream connection"))
	}

	conn.OnMessage(c.handleMessage)

	if err := conn.ConnectWithRetry(ctx); err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to feed"))
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	// Combined URL auto-subscribes.
	c.subsMu.Lock()
	for _, s := range streams {
		c.subscriptions[s] = struct{}{}
	}
	c.subsMu.Unlock()

	c.metrics.subscriptions.Add(ctx, int64(len(streams)))

	c.running.Store(true)

	c.logger.Info(ctx, "feed stream connected",
		"url", wsURL,
		"streams", len(streams))

	return nil
}

// buildStreamURL constructs the combined-streams URL from the configured
// venues, symbols and pairs.
func (c *StreamClient) buildStreamURL() (string, []string, error) {
	if len(c.config.Venues) == 0 {
		return "", nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no venues configured"))
	}
	if len(c.config.Symbols) == 0 && len(c.config.Pairs) == 0 {
		return "", nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no symbols or pairs configured"))
	}

	streams := make([]string, 0, len(c.config.Venues)*(len(c.config.Symbols)+len(c.config.Pairs)))
	for _, venue := range c.config.Venues {
		for _, sym := range c.config.Symbols {
			streams = append(streams, QuoteStream(venue, sym))
		}
		for _, pair := range c.config.Pairs {
			streams = append(streams, PoolStream(venue, pair))
		}
	}

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", nil, err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")

	return u.String(), streams, nil
}

// handleMessage routes incoming stream messages.
func (c *StreamClient) handleMessage(ctx context.Context, data []byte) {
	c.metrics.messagesReceived.Add(ctx, 1)

	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		// Might be a subscription acknowledgment.
		var resp WSResponse
		if json.Unmarshal(data, &resp) == nil && resp.ID != 0 {
			c.logger.Debug(ctx, "subscription response received", "id", resp.ID)
			return
		}
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse stream message",
			"data", string(data[:min(len(data), 500)]))
		return
	}

	c.routeStreamEvent(ctx, &event)
}

func (c *StreamClient) routeStreamEvent(ctx context.Context, event *StreamEvent) {
	switch {
	case strings.HasSuffix(event.Stream, "@quote"):
		var quote QuoteEvent
		if err := json.Unmarshal(event.Data, &quote); err != nil {
			c.metrics.parseErrors.Add(ctx, 1)
			return
		}
		if quote.Venue == "" || quote.Symbol == "" {
			venue, symbol := extractStreamKey(event.Stream)
			quote.Venue = venue
			quote.Symbol = strings.ToUpper(symbol)
		}
		c.metrics.quoteUpdates.Add(ctx, 1)
		c.handlersMu.RLock()
		handler := c.onQuote
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(&quote)
		}

	case strings.HasSuffix(event.Stream, "@pool"):
		var pool PoolEvent
		if err := json.Unmarshal(event.Data, &pool); err != nil {
			c.metrics.parseErrors.Add(ctx, 1)
			c.logger.Warn(ctx, "failed to parse pool update",
				"error", err, "stream", event.Stream)
			return
		}
		if pool.Venue == "" || pool.Pair == "" {
			venue, pair := extractStreamKey(event.Stream)
			pool.Venue = venue
			pool.Pair = strings.ToUpper(pair)
		}
		c.metrics.poolUpdates.Add(ctx, 1)
		c.handlersMu.RLock()
		handler := c.onPool
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(&pool)
		}
	}
}

// Subscribe adds subscriptions on a live connection.
func (c *StreamClient) Subscribe(ctx context.Context, streams ...string) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithContext("not connected"))
	}

	req := WSRequest{
		Method: "SUBSCRIBE",
		Params: streams,
		ID:     c.nextID.Add(1),
	}

	if err := conn.SendJSON(ctx, req); err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to subscribe"))
	}

	c.subsMu.Lock()
	for _, s := range streams {
		c.subscriptions[s] = struct{}{}
	}
	c.subsMu.Unlock()

	c.metrics.subscriptions.Add(ctx, int64(len(streams)))

	return nil
}

// Unsubscribe removes subscriptions.
func (c *StreamClient) Unsubscribe(ctx context.Context, streams ...string) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return nil
	}

	req := WSRequest{
		Method: "UNSUBSCRIBE",
		Params: streams,
		ID:     c.nextID.Add(1),
	}

	if err := conn.SendJSON(ctx, req); err != nil {
		return err
	}

	c.subsMu.Lock()
	for _, s := range streams {
		delete(c.subscriptions, s)
	}
	c.subsMu.Unlock()

	c.metrics.subscriptions.Add(ctx, -int64(len(streams)))

	return nil
}

// IsConnected reports whether the underlying socket is up.
func (c *StreamClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close shuts the stream down.
func (c *StreamClient) Close() error {
	c.running.Store(false)

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
