package common

// Environment variable keys
const (
	EnvConfigFile             = "CONFIG_FILE"
	EnvEnvFile                = "ENV_FILE"
	EnvModelsDir              = "MODELS_DIR"
	EnvDataPath               = "DATA_PATH"
	EnvHTTPPort               = "HTTP_PORT"
	EnvOverlapThreshold       = "OVERLAP_THRESHOLD"
	EnvRequestTimeout         = "REQUEST_TIMEOUT"
	EnvInferenceTimeout       = "INFERENCE_TIMEOUT"
	EnvRemoteInferenceTimeout = "REMOTE_INFERENCE_TIMEOUT"
	EnvPythonPath             = "PYTHON_PATH"
	EnvDefaultTargetQuality   = "DEFAULT_TARGET_QUALITY"
	EnvLogLevel               = "LOG_LEVEL"
	EnvLogFormat              = "LOG_FORMAT"
	EnvRecentLimit            = "RECENT_LIMIT"
	EnvRateLimitRPS           = "RATE_LIMIT_RPS"
	EnvRateLimitBurst         = "RATE_LIMIT_BURST"
)

// Configuration defaults
const (
	DefaultEnvFile              = ".env"
	DefaultModelsDir            = "models"
	DefaultDataPath             = "data/wastewater.db"
	DefaultHTTPPort             = 8000
	DefaultOverlapThreshold     = 0.5
	DefaultTargetQuality        = "environmental"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultRecentLimit          = 50
	DefaultRequestTimeoutSec    = 10
	DefaultInferenceTimeoutSec  = 5
	DefaultRemoteTimeoutSeconds = 5
	DefaultRateLimitRPS         = 2.0 // 120 requests per minute per client
	DefaultRateLimitBurst       = 120
)

// Log formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Validation constants
const (
	MinHTTPPort     = 1024
	MaxHTTPPort     = 65535
	MaxRecentLimit  = 1000
	MaxRateLimitRPS = 10000
)
