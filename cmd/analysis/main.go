// Package main is the entry point for the arbitrage opportunity analysis
// engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/analysis"
	analysisApp "github.com/fd1az/arb-analysis-engine/business/analysis/app"
	analysisDI "github.com/fd1az/arb-analysis-engine/business/analysis/di"
	"github.com/fd1az/arb-analysis-engine/business/gasfee"
	gasfeeDI "github.com/fd1az/arb-analysis-engine/business/gasfee/di"
	"github.com/fd1az/arb-analysis-engine/business/pricing"
	pricingDI "github.com/fd1az/arb-analysis-engine/business/pricing/di"
	pricingDomain "github.com/fd1az/arb-analysis-engine/business/pricing/domain"
	"github.com/fd1az/arb-analysis-engine/business/scanner"
	"github.com/fd1az/arb-analysis-engine/internal/apm"
	"github.com/fd1az/arb-analysis-engine/internal/config"
	"github.com/fd1az/arb-analysis-engine/internal/health"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/metrics"
	"github.com/fd1az/arb-analysis-engine/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	interval := flag.Duration("interval", 30*time.Second, "Scan cycle interval")
	amount := flag.Float64("amount", 10000, "Trade amount per opportunity (reference asset units)")
	once := flag.Bool("once", false, "Run a single scan cycle and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("arb-analysis-engine %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *interval, *amount, *once); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, interval time.Duration, amount float64, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting arbitrage opportunity analysis engine",
		"version", version,
		"environment", cfg.App.Environment,
	)

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}

	// Define modules in dependency order
	modules := []monolith.Module{
		&pricing.Module{},  // feeds and profit math
		&gasfee.Module{},   // depends on pricing for native token prices
		&analysis.Module{}, // validator + risk scorer + engine
		&scanner.Module{},  // depends on pricing and analysis
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	// Health endpoints report feed and node connectivity.
	healthServer := health.NewServer(cfg.Telemetry.HealthPort, version)
	registerHealthChecks(healthServer, mono)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Telemetry.HealthPort)
	}
	defer healthServer.Stop(ctx)

	engine := analysisDI.GetEngine(mono.Services())

	tokens, err := scanTokens(cfg)
	if err != nil {
		return err
	}

	params := analysisApp.ScanAndAnalyzeParams{
		Tokens:          tokens,
		Venues:          cfg.Feed.Venues,
		Amount:          decimal.NewFromFloat(amount),
		MaxResults:      cfg.Scanner.MaxResults,
		Concurrent:      cfg.Scanner.Concurrency > 1,
		TriangularBases: cfg.Scanner.TriangularBases,
	}

	if once {
		runCycle(ctx, engine, params, log)
		return nil
	}

	return runLoop(ctx, engine, params, interval, log)
}

// scanTokens builds the token universe from the configured feed symbols.
func scanTokens(cfg *config.Config) ([]pricingDomain.Token, error) {
	network := "ethereum"
	if len(cfg.Feed.Networks) > 0 {
		network = cfg.Feed.Networks[0]
	}

	tokens := make([]pricingDomain.Token, 0, len(cfg.Feed.Symbols))
	for _, sym := range cfg.Feed.Symbols {
		token, err := pricingDomain.NewToken(strings.ToUpper(sym), network, 18)
		if err != nil {
			return nil, fmt.Errorf("invalid feed symbol %q: %w", sym, err)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func registerHealthChecks(srv *health.Server, mono monolith.Monolith) {
	feed := pricingDI.GetFeedProvider(mono.Services())
	srv.RegisterCheck("feed", func(ctx context.Context) (bool, string) {
		if conn, ok := feed.(interface{ IsConnected() bool }); ok {
			if !conn.IsConnected() {
				return true, "stream down, serving from REST fallback"
			}
		}
		return true, "ok"
	})

	oracle := gasfeeDI.GetGasOracle(mono.Services())
	srv.RegisterCheck("gas-oracle", func(ctx context.Context) (bool, string) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if _, err := oracle.GetGasPrice(ctx); err != nil {
			return false, err.Error()
		}
		return true, "ok"
	})
}

func runLoop(
	ctx context.Context,
	engine *analysisApp.Engine,
	params analysisApp.ScanAndAnalyzeParams,
	interval time.Duration,
	log *logger.Logger,
) error {
	log.Info(ctx, "scan loop started",
		"interval", interval.String(),
		"tokens", len(params.Tokens),
		"venues", params.Venues,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle immediately, then on the ticker.
	runCycle(ctx, engine, params, log)

	for {
		select {
		case <-ctx.Done():
			stats := engine.Stats()
			log.Info(ctx, "shutting down",
				"uptime", stats.Uptime.String(),
				"scans", stats.ScansTotal,
				"analyses", stats.AnalysesTotal,
				"executable", stats.AnalysesExecutable,
			)
			return nil
		case <-ticker.C:
			runCycle(ctx, engine, params, log)
		}
	}
}

// runCycle executes one scan-and-analyze pass and logs the outcome. Errors
// are logged, never fatal; the next tick retries.
func runCycle(
	ctx context.Context,
	engine *analysisApp.Engine,
	params analysisApp.ScanAndAnalyzeParams,
	log *logger.Logger,
) {
	result, err := engine.ScanAndAnalyze(ctx, params)
	if err != nil {
		log.Error(ctx, "scan cycle failed", "error", err)
		return
	}

	log.Info(ctx, "scan cycle complete",
		"tokens_scanned", result.Summary.TokensScanned,
		"candidates", result.Summary.CandidatesFound,
		"kept", result.Summary.OpportunitiesKept,
		"stale_rejected", result.Summary.QuotesRejectedStale,
		"reports", len(result.Reports),
		"duration", result.Summary.Duration.String(),
	)

	for token, tokenErr := range result.TokenErrors {
		log.Warn(ctx, "token scan failed", "token", token, "error", tokenErr)
	}

	for _, report := range result.Reports {
		assessment := report.Assessment
		if assessment == nil {
			continue
		}

		fields := []any{
			"token", report.Opportunity.Token.String(),
			"type", string(report.Opportunity.Type),
			"composite", assessment.CompositeScore.StringFixed(3),
			"recommendation", string(assessment.Recommendation),
		}
		if legs := report.Opportunity.Route; len(legs) > 0 {
			pairs := make([]string, len(legs))
			for i, leg := range legs {
				pairs[i] = leg.Pair + "@" + leg.Venue
			}
			fields = append(fields, "route", strings.Join(pairs, " -> "))
		} else {
			fields = append(fields,
				"buy_venue", report.Opportunity.BuyVenue.Venue,
				"sell_venue", report.Opportunity.SellVenue.Venue,
			)
		}
		if report.Profit != nil {
			fields = append(fields,
				"net_profit_usd", report.Profit.NetProfit.StringFixed(2),
				"net_profit_pct", report.Profit.NetProfitPct.StringFixed(2),
			)
		}
		if report.Risk != nil {
			fields = append(fields, "risk", report.Risk.TotalScore.StringFixed(3))
		}

		if assessment.IsExecutable {
			log.Info(ctx, "executable opportunity", fields...)
		} else {
			log.Debug(ctx, "opportunity below threshold", fields...)
		}
	}
}
