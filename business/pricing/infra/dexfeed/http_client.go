package dexfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/internal/apperror"
	"github.com/fd1az/arb-analysis-engine/internal/circuitbreaker"
	"github.com/fd1az/arb-analysis-engine/internal/httpclient"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/ratelimit"
)

const (
	quotesEndpoint = "/v1/quotes"
	poolsEndpoint  = "/v1/pools"

	httpTimeout = 10 * time.Second
)

// HTTPClientConfig holds configuration for the REST feed client.
type HTTPClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig(baseURL string) HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:           baseURL,
		Timeout:           httpTimeout,
		RequestsPerMinute: 300,
	}
}

// HTTPClient provides REST access to the feed service, used as the fallback
// when stream data is stale or absent. All calls go through a rate limiter
// and a circuit breaker.
type HTTPClient struct {
	client  httpclient.Client
	config  HTTPClientConfig
	logger  logger.LoggerInterface
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.CircuitBreaker[*httpclient.Response]
	tracer  trace.Tracer
}

// NewHTTPClient creates a REST feed client.
func NewHTTPClient(cfg HTTPClientConfig, log logger.LoggerInterface) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("feed HTTP base URL is required"))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 300
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("dexfeed"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &HTTPClient{
		client:  client,
		config:  cfg,
		logger:  log,
		limiter: ratelimit.New(rpm),
		breaker: circuitbreaker.New[*httpclient.Response](circuitbreaker.DefaultConfig("dexfeed-http")),
		tracer:  tracer,
	}, nil
}

// quoteResponse is the REST payload for GET /v1/quotes.
type quoteResponse struct {
	Symbol string       `json:"symbol"`
	Quotes []QuoteEvent `json:"quotes"`
}

// poolResponse is the REST payload for GET /v1/pools.
type poolResponse struct {
	Pool PoolEvent `json:"pool"`
}

// GetQuotes fetches current quotes for a symbol across the given venues.
func (c *HTTPClient) GetQuotes(ctx context.Context, symbol, network string, venues []string) ([]domain.PriceQuote, error) {
	ctx, span := c.tracer.Start(ctx, "dexfeed.http.get_quotes",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.StringSlice("venues", venues),
		),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext("feed rate limit wait aborted"))
	}

	var result quoteResponse
	resp, err := c.breaker.Execute(func() (*httpclient.Response, error) {
		return c.client.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "quotes"),
				httpclient.NewLabel("symbol", symbol),
			),
			httpclient.WithResponseErrorHandler(feedErrorHandler),
		).
			SetQueryParam("symbol", symbol).
			SetQueryParam("network", network).
			SetQueryParam("venues", strings.Join(venues, ",")).
			SetResult(&result).
			Get(ctx, quotesEndpoint)
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeQuoteFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("fetch quotes for %s", symbol)))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeQuoteFetchFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	quotes := make([]domain.PriceQuote, 0, len(result.Quotes))
	for _, ev := range result.Quotes {
		q, err := ev.ToQuote()
		if err != nil {
			c.logger.Warn(ctx, "skipping malformed quote",
				"venue", ev.Venue, "symbol", symbol, "error", err)
			continue
		}
		quotes = append(quotes, q)
	}

	span.SetAttributes(attribute.Int("quotes", len(quotes)))

	c.logger.Debug(ctx, "fetched quotes via HTTP",
		"symbol", symbol, "quotes", len(quotes))

	return quotes, nil
}

// GetPoolState fetches the current pool snapshot for a venue/pair.
func (c *HTTPClient) GetPoolState(ctx context.Context, venue, pair string) (domain.PoolState, error) {
	ctx, span := c.tracer.Start(ctx, "dexfeed.http.get_pool_state",
		trace.WithAttributes(
			attribute.String("venue", venue),
			attribute.String("pair", pair),
		),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.PoolState{}, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext("feed rate limit wait aborted"))
	}

	var result poolResponse
	resp, err := c.breaker.Execute(func() (*httpclient.Response, error) {
		return c.client.NewRequestWithOptions(
			httpclient.WithLabels(
				httpclient.NewLabel("endpoint", "pools"),
				httpclient.NewLabel("venue", venue),
			),
			httpclient.WithResponseErrorHandler(feedErrorHandler),
		).
			SetQueryParam("venue", venue).
			SetQueryParam("pair", pair).
			SetResult(&result).
			Get(ctx, poolsEndpoint)
	})
	if err != nil {
		span.RecordError(err)
		return domain.PoolState{}, apperror.New(apperror.CodePoolFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("fetch pool %s/%s", venue, pair)))
	}
	if resp.IsError() {
		return domain.PoolState{}, apperror.New(apperror.CodePoolFetchFailed,
			apperror.WithContext(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.String())))
	}

	pool, err := result.Pool.ToPoolState()
	if err != nil {
		return domain.PoolState{}, apperror.New(apperror.CodePoolFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("decode pool %s/%s", venue, pair)))
	}

	return pool, nil
}

// FeedAPIError is an error payload from the feed service.
type FeedAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *FeedAPIError) Error() string {
	return fmt.Sprintf("feed API error %d: %s", e.Code, e.Message)
}

// feedErrorHandler parses feed service error responses.
func feedErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr FeedAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
