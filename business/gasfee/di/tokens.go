// Package di contains dependency injection tokens for the gas fee context.
package di

import (
	"github.com/fd1az/arb-analysis-engine/business/gasfee/app"
	"github.com/fd1az/arb-analysis-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	GasService = di.NewToken[*app.GasService]("gasfee.GasService")
)

// Private dependency tokens - internal to the gas fee module
var (
	GasOracle         = di.NewToken[app.GasOracle]("gasfee:gasOracle")
	CongestionMonitor = di.NewToken[app.CongestionMonitor]("gasfee:congestionMonitor")
)

// Helper functions for type-safe access
func GetGasService(c di.ServiceRegistry) *app.GasService {
	return di.GetToken(c, GasService)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetCongestionMonitor(c di.ServiceRegistry) app.CongestionMonitor {
	return di.GetToken(c, CongestionMonitor)
}
