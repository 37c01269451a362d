package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wastewater-ai/internal/common"
	"wastewater-ai/internal/optimizer"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelsDir              string
	DataPath               string
	HTTPPort               int
	OverlapThreshold       float64
	RequestTimeout         time.Duration
	InferenceTimeout       time.Duration
	RemoteInferenceTimeout time.Duration
	PythonPath             string
	DefaultTargetQuality   string
	LogLevel               string
	LogFormat              string
	RecentLimit            int
	RateLimitRPS           float64 // per client IP; 0 disables limiting
	RateLimitBurst         int
}

type ConfigFile struct {
	Models struct {
		Dir              string  `yaml:"dir"`
		OverlapThreshold float64 `yaml:"overlapThreshold"`
		PythonPath       string  `yaml:"pythonPath"`
		InferenceTimeout string  `yaml:"inferenceTimeout"`
		RemoteTimeout    string  `yaml:"remoteTimeout"`
	} `yaml:"models"`

	Server struct {
		Port           int     `yaml:"port"`
		RequestTimeout string  `yaml:"requestTimeout"`
		RecentLimit    int     `yaml:"recentLimit"`
		RateLimitRPS   float64 `yaml:"rateLimitRps"`
		RateLimitBurst int     `yaml:"rateLimitBurst"`
	} `yaml:"server"`

	Storage struct {
		DataPath string `yaml:"dataPath"`
	} `yaml:"storage"`

	Treatment struct {
		DefaultTargetQuality string `yaml:"defaultTargetQuality"`
	} `yaml:"treatment"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads settings. A .env file (ENV_FILE, default ./.env) is loaded into
// the environment first without overriding variables that are already set.
// CONFIG_FILE selects a YAML file; environment variables override its values.
func Load() (Settings, error) {
	if err := loadEnvFile(); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadEnvFile() error {
	path := getEnvOrDefault(common.EnvEnvFile, common.DefaultEnvFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && os.Getenv(common.EnvEnvFile) == "" {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout := parseDurationOr(config.Server.RequestTimeout, common.DefaultRequestTimeoutSec*time.Second)
	inferenceTimeout := parseDurationOr(config.Models.InferenceTimeout, common.DefaultInferenceTimeoutSec*time.Second)
	remoteTimeout := parseDurationOr(config.Models.RemoteTimeout, common.DefaultRemoteTimeoutSeconds*time.Second)

	settings := Settings{
		ModelsDir:              getEnvOrDefault(common.EnvModelsDir, orString(config.Models.Dir, common.DefaultModelsDir)),
		DataPath:               getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		HTTPPort:               getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.Port, common.DefaultHTTPPort),
		OverlapThreshold:       getFloatFromEnvOrConfig(common.EnvOverlapThreshold, config.Models.OverlapThreshold, common.DefaultOverlapThreshold),
		RequestTimeout:         getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		InferenceTimeout:       getDurationOrDefault(common.EnvInferenceTimeout, inferenceTimeout),
		RemoteInferenceTimeout: getDurationOrDefault(common.EnvRemoteInferenceTimeout, remoteTimeout),
		PythonPath:             getEnvOrDefault(common.EnvPythonPath, config.Models.PythonPath),
		DefaultTargetQuality:   getEnvOrDefault(common.EnvDefaultTargetQuality, orString(config.Treatment.DefaultTargetQuality, common.DefaultTargetQuality)),
		LogLevel:               getEnvOrDefault(common.EnvLogLevel, orString(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:              getEnvOrDefault(common.EnvLogFormat, orString(config.Logging.Format, common.DefaultLogFormat)),
		RecentLimit:            getIntFromEnvOrConfig(common.EnvRecentLimit, config.Server.RecentLimit, common.DefaultRecentLimit),
		RateLimitRPS:           getFloatFromEnvOrConfig(common.EnvRateLimitRPS, config.Server.RateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:         getIntFromEnvOrConfig(common.EnvRateLimitBurst, config.Server.RateLimitBurst, common.DefaultRateLimitBurst),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelsDir:              getEnvOrDefault(common.EnvModelsDir, common.DefaultModelsDir),
		DataPath:               getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		HTTPPort:               getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		OverlapThreshold:       getFloatOrDefault(common.EnvOverlapThreshold, common.DefaultOverlapThreshold),
		RequestTimeout:         getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeoutSec*time.Second),
		InferenceTimeout:       getDurationOrDefault(common.EnvInferenceTimeout, common.DefaultInferenceTimeoutSec*time.Second),
		RemoteInferenceTimeout: getDurationOrDefault(common.EnvRemoteInferenceTimeout, common.DefaultRemoteTimeoutSeconds*time.Second),
		PythonPath:             os.Getenv(common.EnvPythonPath), // optional, discovered when empty
		DefaultTargetQuality:   getEnvOrDefault(common.EnvDefaultTargetQuality, common.DefaultTargetQuality),
		LogLevel:               getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:              getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		RecentLimit:            getIntOrDefault(common.EnvRecentLimit, common.DefaultRecentLimit),
		RateLimitRPS:           getFloatOrDefault(common.EnvRateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:         getIntOrDefault(common.EnvRateLimitBurst, common.DefaultRateLimitBurst),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// TargetTier returns the parsed default target quality.
func (s *Settings) TargetTier() optimizer.Tier {
	t, err := optimizer.ParseTier(s.DefaultTargetQuality)
	if err != nil {
		return optimizer.TierEnvironmental
	}
	return t
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func parseDurationOr(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings checks ranges and enumerations
func validateSettings(settings *Settings) error {
	if strings.TrimSpace(settings.ModelsDir) == "" {
		return fmt.Errorf("models directory cannot be empty")
	}

	if settings.HTTPPort < common.MinHTTPPort || settings.HTTPPort > common.MaxHTTPPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinHTTPPort, common.MaxHTTPPort, settings.HTTPPort)
	}

	if settings.OverlapThreshold <= 0 || settings.OverlapThreshold > 1 {
		return fmt.Errorf("overlap threshold must be in (0, 1], got %f", settings.OverlapThreshold)
	}

	// Validate time durations
	if settings.RequestTimeout < time.Second || settings.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("request timeout must be between 1s and 5m, got %v", settings.RequestTimeout)
	}
	if settings.InferenceTimeout < 100*time.Millisecond || settings.InferenceTimeout > 2*time.Minute {
		return fmt.Errorf("inference timeout must be between 100ms and 2m, got %v", settings.InferenceTimeout)
	}
	if settings.RemoteInferenceTimeout < 100*time.Millisecond || settings.RemoteInferenceTimeout > 2*time.Minute {
		return fmt.Errorf("remote inference timeout must be between 100ms and 2m, got %v", settings.RemoteInferenceTimeout)
	}
	if settings.InferenceTimeout > settings.RequestTimeout {
		return fmt.Errorf("inference timeout %v exceeds request timeout %v", settings.InferenceTimeout, settings.RequestTimeout)
	}

	if _, err := optimizer.ParseTier(settings.DefaultTargetQuality); err != nil {
		return fmt.Errorf("default target quality: %w", err)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}
	switch settings.LogFormat {
	case common.LogFormatJSON, common.LogFormatConsole:
	default:
		return fmt.Errorf("log format must be %q or %q, got %q", common.LogFormatJSON, common.LogFormatConsole, settings.LogFormat)
	}

	if settings.RecentLimit <= 0 || settings.RecentLimit > common.MaxRecentLimit {
		return fmt.Errorf("recent limit must be between 1 and %d, got %d", common.MaxRecentLimit, settings.RecentLimit)
	}

	if settings.RateLimitRPS < 0 || settings.RateLimitRPS > common.MaxRateLimitRPS {
		return fmt.Errorf("rate limit must be between 0 and %d requests per second, got %f", common.MaxRateLimitRPS, settings.RateLimitRPS)
	}
	if settings.RateLimitRPS > 0 && settings.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", settings.RateLimitBurst)
	}

	return nil
}
