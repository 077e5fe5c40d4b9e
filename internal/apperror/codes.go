package apperror

// Code represents a unique error code for the engine.
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Analysis-specific error codes
const (
	// Input data quality
	CodeStaleData     Code = "STALE_DATA"
	CodeSimulatedData Code = "SIMULATED_DATA"

	// Pool / AMM model errors
	CodePoolStateInvalid    Code = "POOL_STATE_INVALID"
	CodeUnsupportedProtocol Code = "UNSUPPORTED_PROTOCOL"
	CodeImpactExceeded      Code = "IMPACT_EXCEEDED"
	CodeSolverDiverged      Code = "SOLVER_DIVERGED"

	// Spread / profit calculation
	CodeSpreadCalculationError Code = "SPREAD_CALCULATION_ERROR"
	CodeInvalidTradeSize       Code = "INVALID_TRADE_SIZE"

	// Liquidity validation
	CodeLiquidityInsufficient Code = "LIQUIDITY_INSUFFICIENT"

	// External collaborators
	CodeFeedUnavailable     Code = "FEED_UNAVAILABLE"
	CodeFeedTimeout         Code = "FEED_TIMEOUT"
	CodeQuoteFetchFailed    Code = "QUOTE_FETCH_FAILED"
	CodePoolFetchFailed     Code = "POOL_FETCH_FAILED"
	CodeGasEstimationFailed Code = "GAS_ESTIMATION_FAILED"
	CodeNodeConnectionError Code = "NODE_CONNECTION_ERROR"
	CodeNodeRPCError        Code = "NODE_RPC_ERROR"

	// WebSocket feed errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
