// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Node      NodeConfig      `mapstructure:"node"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// FeedConfig holds price/liquidity feed provider settings.
type FeedConfig struct {
	WebSocketURL      string        `mapstructure:"websocket_url"`
	HTTPURL           string        `mapstructure:"http_url"`
	Venues            []string      `mapstructure:"venues"`
	Networks          []string      `mapstructure:"networks"`
	Symbols           []string      `mapstructure:"symbols"`
	Pairs             []string      `mapstructure:"pairs"`
	FreshnessBound    time.Duration `mapstructure:"freshness_bound"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// NodeConfig holds chain node settings for the gas oracle.
type NodeConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	MaxGasPriceGwei float64       `mapstructure:"max_gas_price_gwei"`
	GasCacheTTL     time.Duration `mapstructure:"gas_cache_ttl"`
	DefaultGasLimit uint64        `mapstructure:"default_gas_limit"`
}

// AnalysisConfig holds every threshold and weight of the analysis pipeline.
// A copy of this struct is attached to each analysis call so scenario
// simulation can vary parameters without mutating shared state.
type AnalysisConfig struct {
	// Spread and profit gates
	MinSpreadPct    float64 `mapstructure:"min_spread_pct"`     // valid spread floor, percent
	MinNetProfitPct float64 `mapstructure:"min_net_profit_pct"` // scanner profit filter, percent

	// AMM price impact
	MaxPriceImpactPct float64 `mapstructure:"max_price_impact_pct"`

	// Risk normalization ceilings
	VolatilityCeiling  float64 `mapstructure:"volatility_ceiling"`
	MinLiquidityUSD    float64 `mapstructure:"min_liquidity_usd"`
	MaxSlippagePct     float64 `mapstructure:"max_slippage_pct"`
	MaxExecutionTimeMs int64   `mapstructure:"max_execution_time_ms"`
	NormalGasGwei      float64 `mapstructure:"normal_gas_gwei"`

	// Risk sub-score weights (must sum to 1)
	WeightVolatility    float64 `mapstructure:"weight_volatility"`
	WeightLiquidity     float64 `mapstructure:"weight_liquidity"`
	WeightSlippage      float64 `mapstructure:"weight_slippage"`
	WeightExecutionTime float64 `mapstructure:"weight_execution_time"`
	WeightGas           float64 `mapstructure:"weight_gas"`
	WeightCongestion    float64 `mapstructure:"weight_congestion"`

	// Acceptability gates
	MaxRiskScore      float64 `mapstructure:"max_risk_score"`
	MinCompositeScore float64 `mapstructure:"min_composite_score"`

	// Execution time model
	BaseExecutionTimeMs    int64   `mapstructure:"base_execution_time_ms"`
	CrossChainTimeFactor   float64 `mapstructure:"cross_chain_time_factor"`
	HighComplexityFactor   float64 `mapstructure:"high_complexity_factor"`
	ProtocolFeeRate        float64 `mapstructure:"protocol_fee_rate"`
	DefaultSlippageRate    float64 `mapstructure:"default_slippage_rate"`
	CrossChainBridgeFeeUSD float64 `mapstructure:"cross_chain_bridge_fee_usd"`
}

// ScannerConfig holds opportunity scanner settings.
type ScannerConfig struct {
	MinSpreadBps    float64       `mapstructure:"min_spread_bps"`
	MaxResults      int           `mapstructure:"max_results"`
	Concurrency     int           `mapstructure:"concurrency"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	VenueTimeout    time.Duration `mapstructure:"venue_timeout"`
	TriangularBases []string      `mapstructure:"triangular_bases"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("feed.websocket_url", "ARB_FEED_WS_URL", "FEED_WS_URL")
	v.BindEnv("feed.http_url", "ARB_FEED_HTTP_URL", "FEED_HTTP_URL")
	v.BindEnv("feed.venues", "ARB_FEED_VENUES")
	v.BindEnv("feed.networks", "ARB_FEED_NETWORKS")
	v.BindEnv("feed.symbols", "ARB_FEED_SYMBOLS")
	v.BindEnv("feed.pairs", "ARB_FEED_PAIRS")

	v.BindEnv("node.rpc_url", "ARB_NODE_RPC_URL", "ETH_RPC_URL")

	v.BindEnv("analysis.min_spread_pct", "ARB_MIN_SPREAD_PCT")
	v.BindEnv("analysis.min_net_profit_pct", "ARB_MIN_NET_PROFIT_PCT")
	v.BindEnv("analysis.max_price_impact_pct", "ARB_MAX_PRICE_IMPACT_PCT")
	v.BindEnv("analysis.max_risk_score", "ARB_MAX_RISK_SCORE")

	v.BindEnv("scanner.min_spread_bps", "ARB_SCANNER_MIN_SPREAD_BPS")
	v.BindEnv("scanner.max_results", "ARB_SCANNER_MAX_RESULTS")

	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arb-analysis-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("feed.venues", []string{"uniswap-v2", "uniswap-v3", "balancer", "curve"})
	v.SetDefault("feed.networks", []string{"ethereum"})
	v.SetDefault("feed.symbols", []string{"ETH", "WBTC", "USDC"})
	v.SetDefault("feed.pairs", []string{"ETH-USDC", "WBTC-USDC"})
	v.SetDefault("feed.freshness_bound", "30s")
	v.SetDefault("feed.request_timeout", "5s")
	v.SetDefault("feed.requests_per_minute", 300)

	v.SetDefault("node.max_gas_price_gwei", 500)
	v.SetDefault("node.gas_cache_ttl", "12s") // ~1 block
	v.SetDefault("node.default_gas_limit", 250000)

	v.SetDefault("analysis.min_spread_pct", 0.1)
	v.SetDefault("analysis.min_net_profit_pct", 0.5)
	v.SetDefault("analysis.max_price_impact_pct", 5.0)
	v.SetDefault("analysis.volatility_ceiling", 0.10)
	v.SetDefault("analysis.min_liquidity_usd", 100000)
	v.SetDefault("analysis.max_slippage_pct", 2.0)
	v.SetDefault("analysis.max_execution_time_ms", 300000)
	v.SetDefault("analysis.normal_gas_gwei", 30)
	v.SetDefault("analysis.weight_volatility", 0.25)
	v.SetDefault("analysis.weight_liquidity", 0.20)
	v.SetDefault("analysis.weight_slippage", 0.20)
	v.SetDefault("analysis.weight_execution_time", 0.15)
	v.SetDefault("analysis.weight_gas", 0.15)
	v.SetDefault("analysis.weight_congestion", 0.05)
	v.SetDefault("analysis.max_risk_score", 0.7)
	v.SetDefault("analysis.min_composite_score", 0.6)
	v.SetDefault("analysis.base_execution_time_ms", 15000)
	v.SetDefault("analysis.cross_chain_time_factor", 3.0)
	v.SetDefault("analysis.high_complexity_factor", 2.0)
	v.SetDefault("analysis.protocol_fee_rate", 0.003)
	v.SetDefault("analysis.default_slippage_rate", 0.005)
	v.SetDefault("analysis.cross_chain_bridge_fee_usd", 25)

	v.SetDefault("scanner.min_spread_bps", 10)
	v.SetDefault("scanner.max_results", 20)
	v.SetDefault("scanner.concurrency", 8)
	v.SetDefault("scanner.cache_ttl", "12s")
	v.SetDefault("scanner.venue_timeout", "3s")
	v.SetDefault("scanner.triangular_bases", []string{"USDC"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arb-analysis-engine")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Feed.Venues) == 0 {
		return fmt.Errorf("feed.venues cannot be empty")
	}
	if len(c.Feed.Networks) == 0 {
		return fmt.Errorf("feed.networks cannot be empty")
	}
	if c.Feed.FreshnessBound <= 0 {
		return fmt.Errorf("feed.freshness_bound must be positive")
	}
	if c.Analysis.MaxPriceImpactPct <= 0 {
		return fmt.Errorf("analysis.max_price_impact_pct must be positive")
	}
	if c.Scanner.Concurrency < 1 {
		return fmt.Errorf("scanner.concurrency must be at least 1")
	}

	weights := c.Analysis.WeightVolatility + c.Analysis.WeightLiquidity +
		c.Analysis.WeightSlippage + c.Analysis.WeightExecutionTime +
		c.Analysis.WeightGas + c.Analysis.WeightCongestion
	if weights < 0.999 || weights > 1.001 {
		return fmt.Errorf("analysis risk weights must sum to 1, got %f", weights)
	}

	return nil
}
