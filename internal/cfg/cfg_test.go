package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wastewater-ai/internal/optimizer"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "ENV_FILE", "MODELS_DIR", "DATA_PATH", "HTTP_PORT",
		"OVERLAP_THRESHOLD", "REQUEST_TIMEOUT", "INFERENCE_TIMEOUT",
		"REMOTE_INFERENCE_TIMEOUT", "PYTHON_PATH", "DEFAULT_TARGET_QUALITY",
		"LOG_LEVEL", "LOG_FORMAT", "RECENT_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelsDir != "models" {
					t.Errorf("expected default ModelsDir 'models', got %s", settings.ModelsDir)
				}
				if settings.DataPath != "data/wastewater.db" {
					t.Errorf("expected default DataPath, got %s", settings.DataPath)
				}
				if settings.HTTPPort != 8000 {
					t.Errorf("expected default port 8000, got %d", settings.HTTPPort)
				}
				if settings.OverlapThreshold != 0.5 {
					t.Errorf("expected default threshold 0.5, got %f", settings.OverlapThreshold)
				}
				if settings.RequestTimeout != 10*time.Second {
					t.Errorf("expected default request timeout 10s, got %v", settings.RequestTimeout)
				}
				if settings.InferenceTimeout != 5*time.Second {
					t.Errorf("expected default inference timeout 5s, got %v", settings.InferenceTimeout)
				}
				if settings.TargetTier() != optimizer.TierEnvironmental {
					t.Errorf("expected default target environmental, got %s", settings.TargetTier())
				}
				if settings.LogFormat != "json" {
					t.Errorf("expected json log format, got %s", settings.LogFormat)
				}
				if settings.RateLimitRPS != 2 || settings.RateLimitBurst != 120 {
					t.Errorf("expected default rate limit 2 rps burst 120, got %f/%d", settings.RateLimitRPS, settings.RateLimitBurst)
				}
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				"MODELS_DIR":             "/srv/models",
				"HTTP_PORT":              "9090",
				"OVERLAP_THRESHOLD":      "0.75",
				"REQUEST_TIMEOUT":        "30s",
				"INFERENCE_TIMEOUT":      "2s",
				"PYTHON_PATH":            "/usr/bin/python3",
				"DEFAULT_TARGET_QUALITY": "irrigation",
				"LOG_LEVEL":              "debug",
				"LOG_FORMAT":             "console",
				"RECENT_LIMIT":           "200",
				"RATE_LIMIT_RPS":         "0.5",
				"RATE_LIMIT_BURST":       "10",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelsDir != "/srv/models" {
					t.Errorf("expected ModelsDir /srv/models, got %s", settings.ModelsDir)
				}
				if settings.HTTPPort != 9090 {
					t.Errorf("expected port 9090, got %d", settings.HTTPPort)
				}
				if settings.OverlapThreshold != 0.75 {
					t.Errorf("expected threshold 0.75, got %f", settings.OverlapThreshold)
				}
				if settings.RequestTimeout != 30*time.Second {
					t.Errorf("expected request timeout 30s, got %v", settings.RequestTimeout)
				}
				if settings.PythonPath != "/usr/bin/python3" {
					t.Errorf("expected python path, got %s", settings.PythonPath)
				}
				if settings.TargetTier() != optimizer.TierIrrigation {
					t.Errorf("expected irrigation, got %s", settings.TargetTier())
				}
				if settings.RecentLimit != 200 {
					t.Errorf("expected recent limit 200, got %d", settings.RecentLimit)
				}
				if settings.RateLimitRPS != 0.5 || settings.RateLimitBurst != 10 {
					t.Errorf("expected rate limit 0.5 rps burst 10, got %f/%d", settings.RateLimitRPS, settings.RateLimitBurst)
				}
			},
		},
		{
			name:    "unparseable values fall back to defaults",
			envVars: map[string]string{"HTTP_PORT": "eighty", "REQUEST_TIMEOUT": "soon"},
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 8000 {
					t.Errorf("expected default port, got %d", settings.HTTPPort)
				}
				if settings.RequestTimeout != 10*time.Second {
					t.Errorf("expected default request timeout, got %v", settings.RequestTimeout)
				}
			},
		},
		{
			name:    "threshold out of range",
			envVars: map[string]string{"OVERLAP_THRESHOLD": "1.5"},
			wantErr: true,
		},
		{
			name:    "unknown target quality",
			envVars: map[string]string{"DEFAULT_TARGET_QUALITY": "swimming"},
			wantErr: true,
		},
		{
			name:    "privileged port",
			envVars: map[string]string{"HTTP_PORT": "80"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, settings)
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
models:
  dir: /opt/models
  overlapThreshold: 0.6
  inferenceTimeout: 3s
  remoteTimeout: 4s
server:
  port: 8081
  requestTimeout: 20s
  rateLimitRps: 5
  rateLimitBurst: 30
storage:
  dataPath: /var/lib/wastewater.db
treatment:
  defaultTargetQuality: industrial
logging:
  level: warn
  format: console
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9191")

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ModelsDir != "/opt/models" {
		t.Errorf("expected ModelsDir from YAML, got %s", settings.ModelsDir)
	}
	if settings.HTTPPort != 9191 {
		t.Errorf("expected env override port 9191, got %d", settings.HTTPPort)
	}
	if settings.OverlapThreshold != 0.6 {
		t.Errorf("expected threshold 0.6, got %f", settings.OverlapThreshold)
	}
	if settings.InferenceTimeout != 3*time.Second || settings.RemoteInferenceTimeout != 4*time.Second {
		t.Errorf("unexpected inference timeouts %v / %v", settings.InferenceTimeout, settings.RemoteInferenceTimeout)
	}
	if settings.RequestTimeout != 20*time.Second {
		t.Errorf("expected request timeout 20s, got %v", settings.RequestTimeout)
	}
	if settings.DataPath != "/var/lib/wastewater.db" {
		t.Errorf("expected data path from YAML, got %s", settings.DataPath)
	}
	if settings.TargetTier() != optimizer.TierIndustrial {
		t.Errorf("expected industrial, got %s", settings.TargetTier())
	}
	if settings.LogLevel != "warn" || settings.LogFormat != "console" {
		t.Errorf("unexpected logging settings %s/%s", settings.LogLevel, settings.LogFormat)
	}
	if settings.RecentLimit != 50 {
		t.Errorf("expected default recent limit, got %d", settings.RecentLimit)
	}
	if settings.RateLimitRPS != 5 || settings.RateLimitBurst != 30 {
		t.Errorf("expected rate limit 5 rps burst 30 from YAML, got %f/%d", settings.RateLimitRPS, settings.RateLimitBurst)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("models: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("MODELS_DIR=/from/dotenv\nHTTP_PORT=8123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_PORT", "8444")
	// godotenv refuses to override variables that are set, even empty ones,
	// so MODELS_DIR must be absent rather than blank.
	os.Unsetenv("MODELS_DIR")
	t.Cleanup(func() { os.Unsetenv("MODELS_DIR") })

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ModelsDir != "/from/dotenv" {
		t.Errorf("expected ModelsDir from env file, got %s", settings.ModelsDir)
	}
	if settings.HTTPPort != 8444 {
		t.Errorf("expected process env to win over env file, got %d", settings.HTTPPort)
	}
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing ENV_FILE")
	}
}
