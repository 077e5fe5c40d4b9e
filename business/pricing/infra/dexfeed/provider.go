package dexfeed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-analysis-engine/business/pricing/app"
	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
)

// Ensure Provider implements the feed port.
var _ app.FeedProvider = (*Provider)(nil)

// nativeSymbols maps a network identifier to its gas-denominating token.
var nativeSymbols = map[string]string{
	"ethereum":  "ETH",
	"arbitrum":  "ETH",
	"optimism":  "ETH",
	"base":      "ETH",
	"polygon":   "MATIC",
	"bsc":       "BNB",
	"avalanche": "AVAX",
}

// ProviderConfig holds configuration for the feed provider.
type ProviderConfig struct {
	WebSocketURL   string        // stream base URL (empty disables streaming)
	HTTPURL        string        // REST base URL (empty disables fallback)
	Venues         []string      // venues to track
	Networks       []string      // networks the feed covers
	Symbols        []string      // token symbols to stream
	Pairs          []string      // pair symbols to stream pool state for
	StaleTimeout   time.Duration // stream data older than this triggers fallback
	RequestTimeout time.Duration
	RequestsPerMin int
}

// DefaultProviderConfig returns sensible defaults for the given venues and
// symbols.
func DefaultProviderConfig(wsURL, httpURL string, venues, symbols []string) ProviderConfig {
	return ProviderConfig{
		WebSocketURL:   wsURL,
		HTTPURL:        httpURL,
		Venues:         venues,
		Networks:       []string{"ethereum"},
		Symbols:        symbols,
		StaleTimeout:   5 * time.Second,
		RequestTimeout: httpTimeout,
		RequestsPerMin: 300,
	}
}

// quoteState holds the latest streamed quote for one venue/symbol.
type quoteState struct {
	quote domain.PriceQuote
	mu    sync.RWMutex
}

// poolEntry holds the latest streamed pool snapshot for one venue/pair.
type poolEntry struct {
	pool domain.PoolState
	mu   sync.RWMutex
}

// Provider implements app.FeedProvider over the aggregated DEX feed. Stream
// data is preferred; the REST client backfills venues whose stream data is
// stale or absent. It also answers native-token USD prices for gas costing.
type Provider struct {
	config ProviderConfig
	logger logger.LoggerInterface

	stream     *StreamClient
	httpClient *HTTPClient

	quotes   map[string]*quoteState // keyed venue|SYMBOL
	quotesMu sync.RWMutex

	pools   map[string]*poolEntry // keyed venue|PAIR
	poolsMu sync.RWMutex

	tracer trace.Tracer
}

// NewProvider creates a feed provider. At least one of WebSocketURL and
// HTTPURL must be set.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	if cfg.WebSocketURL == "" && cfg.HTTPURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("feed needs a websocket or HTTP URL"))
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 5 * time.Second
	}

	p := &Provider{
		config: cfg,
		logger: log,
		quotes: make(map[string]*quoteState),
		pools:  make(map[string]*poolEntry),
		tracer: otel.Tracer(tracerName),
	}

	if cfg.WebSocketURL != "" {
		streamCfg := DefaultStreamConfig(cfg.WebSocketURL, cfg.Venues, cfg.Symbols, cfg.Pairs)
		stream, err := NewStreamClient(streamCfg, log)
		if err != nil {
			return nil, err
		}
		stream.OnQuote(p.handleQuote)
		stream.OnPool(p.handlePool)
		p.stream = stream
	}

	if cfg.HTTPURL != "" {
		httpCfg := HTTPClientConfig{
			BaseURL:           cfg.HTTPURL,
			Timeout:           cfg.RequestTimeout,
			RequestsPerMinute: cfg.RequestsPerMin,
		}
		httpClient, err := NewHTTPClient(httpCfg, log)
		if err != nil {
			if p.stream == nil {
				return nil, err
			}
			log.Warn(context.Background(), "feed HTTP fallback unavailable", "error", err)
		} else {
			p.httpClient = httpClient
		}
	}

	return p, nil
}

// Connect brings the stream up. A provider configured without a stream URL
// connects trivially and serves from REST only.
func (p *Provider) Connect(ctx context.Context) error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Connect(ctx)
}

// Close shuts down the stream.
func (p *Provider) Close() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Close()
}

// GetQuotes returns one quote per venue that answered for the token. Venues
// with fresh stream data answer from memory; the rest are backfilled over
// REST in a single call. The call fails only when no venue answered.
func (p *Provider) GetQuotes(ctx context.Context, token domain.Token, venues []string) ([]domain.PriceQuote, error) {
	ctx, span := p.tracer.Start(ctx, "dexfeed.get_quotes",
		trace.WithAttributes(
			attribute.String("token", token.String()),
			attribute.StringSlice("venues", venues),
		),
	)
	defer span.End()

	if len(venues) == 0 {
		venues = p.config.Venues
	}

	now := time.Now()
	quotes := make([]domain.PriceQuote, 0, len(venues))
	var missing []string

	for _, venue := range venues {
		q, ok := p.cachedQuote(venue, token.Symbol())
		if ok && !q.IsStale(now, p.config.StaleTimeout) {
			quotes = append(quotes, q)
			continue
		}
		missing = append(missing, venue)
	}

	streamed := len(quotes)

	if len(missing) > 0 && p.httpClient != nil {
		fetched, err := p.httpClient.GetQuotes(ctx, token.Symbol(), token.Network(), missing)
		if err != nil {
			p.logger.Warn(ctx, "quote fallback failed",
				"token", token.String(), "venues", missing, "error", err)
		} else {
			for _, q := range fetched {
				p.storeQuote(q.Venue, token.Symbol(), q)
				quotes = append(quotes, q)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("quotes", len(quotes)),
		attribute.Int("from_stream", streamed),
	)

	if len(quotes) == 0 {
		return nil, apperror.New(apperror.CodeFeedUnavailable,
			apperror.WithContext(fmt.Sprintf("no venue answered for %s", token)))
	}

	return quotes, nil
}

// GetPoolState returns the pool snapshot backing a venue's quote for the
// given pair, preferring fresh stream data over REST.
func (p *Provider) GetPoolState(ctx context.Context, venue, pair string) (domain.PoolState, error) {
	ctx, span := p.tracer.Start(ctx, "dexfeed.get_pool_state",
		trace.WithAttributes(
			attribute.String("venue", venue),
			attribute.String("pair", pair),
		),
	)
	defer span.End()

	now := time.Now()
	if pool, ok := p.cachedPool(venue, pair); ok && !pool.IsStale(now, p.config.StaleTimeout) {
		span.SetAttributes(attribute.String("source", "stream"))
		return pool, nil
	}

	if p.httpClient == nil {
		return domain.PoolState{}, apperror.New(apperror.CodePoolFetchFailed,
			apperror.WithContext(fmt.Sprintf("no fresh pool state for %s/%s", venue, pair)))
	}

	pool, err := p.httpClient.GetPoolState(ctx, venue, pair)
	if err != nil {
		span.RecordError(err)
		return domain.PoolState{}, err
	}

	p.storePool(venue, pair, pool)
	span.SetAttributes(attribute.String("source", "http_fallback"))

	return pool, nil
}

// NativeTokenPriceUSD returns the USD price of the network's gas token,
// averaged over the venues that answered. Satisfies the gas service's
// native price source.
func (p *Provider) NativeTokenPriceUSD(ctx context.Context, network string) (decimal.Decimal, error) {
	symbol, ok := nativeSymbols[strings.ToLower(network)]
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("unknown network %q", network)))
	}

	token, err := domain.NewToken(symbol, strings.ToLower(network), 18)
	if err != nil {
		return decimal.Zero, err
	}

	quotes, err := p.GetQuotes(ctx, token, p.config.Venues)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q.Price)
	}

	return sum.Div(decimal.NewFromInt(int64(len(quotes)))), nil
}

// handleQuote stores a streamed quote update.
func (p *Provider) handleQuote(ev *QuoteEvent) {
	quote, err := ev.ToQuote()
	if err != nil {
		p.logger.Debug(context.Background(), "dropping malformed quote update",
			"venue", ev.Venue, "symbol", ev.Symbol, "error", err)
		return
	}
	p.storeQuote(ev.Venue, ev.Symbol, quote)
}

// handlePool stores a streamed pool update.
func (p *Provider) handlePool(ev *PoolEvent) {
	pool, err := ev.ToPoolState()
	if err != nil {
		p.logger.Debug(context.Background(), "dropping malformed pool update",
			"venue", ev.Venue, "pair", ev.Pair, "error", err)
		return
	}
	p.storePool(ev.Venue, ev.Pair, pool)
}

func (p *Provider) cachedQuote(venue, symbol string) (domain.PriceQuote, bool) {
	p.quotesMu.RLock()
	state, ok := p.quotes[feedKey(venue, symbol)]
	p.quotesMu.RUnlock()
	if !ok {
		return domain.PriceQuote{}, false
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.quote.Timestamp.IsZero() {
		return domain.PriceQuote{}, false
	}
	return state.quote, true
}

func (p *Provider) storeQuote(venue, symbol string, quote domain.PriceQuote) {
	key := feedKey(venue, symbol)

	p.quotesMu.Lock()
	state, ok := p.quotes[key]
	if !ok {
		state = &quoteState{}
		p.quotes[key] = state
	}
	p.quotesMu.Unlock()

	state.mu.Lock()
	state.quote = quote
	state.mu.Unlock()
}

func (p *Provider) cachedPool(venue, pair string) (domain.PoolState, bool) {
	p.poolsMu.RLock()
	entry, ok := p.pools[feedKey(venue, pair)]
	p.poolsMu.RUnlock()
	if !ok {
		return domain.PoolState{}, false
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if entry.pool.Timestamp.IsZero() {
		return domain.PoolState{}, false
	}
	return entry.pool, true
}

func (p *Provider) storePool(venue, pair string, pool domain.PoolState) {
	key := feedKey(venue, pair)

	p.poolsMu.Lock()
	entry, ok := p.pools[key]
	if !ok {
		entry = &poolEntry{}
		p.pools[key] = entry
	}
	p.poolsMu.Unlock()

	entry.mu.Lock()
	entry.pool = pool
	entry.mu.Unlock()
}

func feedKey(venue, subject string) string {
	return strings.ToLower(venue) + "|" + strings.ToUpper(subject)
}
