package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeStaleData:     "Input data is older than the freshness bound",
	CodeSimulatedData: "Input data is flagged as simulated or placeholder",

	CodePoolStateInvalid:    "Pool state has non-positive reserves or liquidity",
	CodeUnsupportedProtocol: "No price impact model for this venue family",
	CodeImpactExceeded:      "Price impact exceeds the configured maximum",
	CodeSolverDiverged:      "Invariant solver failed to converge",

	CodeSpreadCalculationError: "Spread calculation error",
	CodeInvalidTradeSize:       "Invalid trade size",

	CodeLiquidityInsufficient: "Insufficient liquidity for trade size",

	CodeFeedUnavailable:     "Price feed unavailable",
	CodeFeedTimeout:         "Price feed request timed out",
	CodeQuoteFetchFailed:    "Failed to fetch venue quote",
	CodePoolFetchFailed:     "Failed to fetch pool state",
	CodeGasEstimationFailed: "Gas estimation failed",
	CodeNodeConnectionError: "Failed to connect to chain node",
	CodeNodeRPCError:        "Chain node RPC call failed",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",

	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	CodeCircuitOpen: "Circuit breaker is open",
}
