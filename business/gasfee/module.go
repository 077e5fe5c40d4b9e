// Package gasfee implements the gas fee bounded context: gas price
// discovery, operation costing and execution strategy selection.
package gasfee

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-analysis-engine/business/gasfee/app"
	gasfeeDI "github.com/fd1az/arb-analysis-engine/business/gasfee/di"
	"github.com/fd1az/arb-analysis-engine/business/gasfee/infra/ethereum"
	pricingDI "github.com/fd1az/arb-analysis-engine/business/pricing/di"
	"github.com/fd1az/arb-analysis-engine/internal/config"
	"github.com/fd1az/arb-analysis-engine/internal/di"
	"github.com/fd1az/arb-analysis-engine/internal/logger"
	"github.com/fd1az/arb-analysis-engine/internal/monolith"
)

// Module implements the gas fee bounded context.
type Module struct{}

// RegisterServices registers all gas fee services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register GasOracle (private - internal dependency)
	di.RegisterToken(c, gasfeeDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		oracleCfg := ethereum.DefaultGasOracleConfig(cfg.Node.RPCURL)
		if cfg.Node.GasCacheTTL > 0 {
			oracleCfg.CacheTTL = cfg.Node.GasCacheTTL
		}
		if cfg.Node.DefaultGasLimit > 0 {
			oracleCfg.DefaultGas = cfg.Node.DefaultGasLimit
		}
		oracle, err := ethereum.NewGasOracle(oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// Register CongestionMonitor (private - internal dependency)
	di.RegisterToken(c, gasfeeDI.CongestionMonitor, func(sr di.ServiceRegistry) app.CongestionMonitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		monCfg := ethereum.DefaultCongestionMonitorConfig(cfg.Node.RPCURL, "ethereum")
		monitor, err := ethereum.NewCongestionMonitor(monCfg, log)
		if err != nil {
			panic("failed to create congestion monitor: " + err.Error())
		}
		return monitor
	})

	// Register GasService (public - exposed to other modules)
	di.RegisterToken(c, gasfeeDI.GasService, func(sr di.ServiceRegistry) *app.GasService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		oracle := gasfeeDI.GetGasOracle(sr)
		monitor := gasfeeDI.GetCongestionMonitor(sr)

		// The feed provider doubles as the native-token price source.
		feed := pricingDI.GetFeedProvider(sr)
		prices, ok := feed.(app.NativePriceSource)
		if !ok {
			panic("feed provider does not supply native token prices")
		}

		return app.NewGasService(oracle, monitor, prices,
			decimal.NewFromFloat(cfg.Node.MaxGasPriceGwei), log)
	})

	return nil
}

// Startup connects the oracle and the congestion monitor.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	oracle := gasfeeDI.GetGasOracle(mono.Services())
	monitor := gasfeeDI.GetCongestionMonitor(mono.Services())

	if connector, ok := oracle.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect gas oracle", "error", err)
			// Don't fail - estimates will error until the node is reachable
		}
	}

	if connector, ok := monitor.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Error(ctx, "failed to connect congestion monitor", "error", err)
		}
	}

	log.Info(ctx, "gasfee module started")
	return nil
}
