package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "models/demand_forecaster.gob", cfg.Model.ArtifactPath)
	assert.Equal(t, "data/training_data.csv", cfg.Training.Dataset)
	assert.Equal(t, "historical_demand", cfg.Training.TargetColumn)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 100, cfg.Training.NEstimators)
	assert.Equal(t, 2, cfg.Training.MinSamplesSplit)
	assert.Equal(t, 1, cfg.Training.MinSamplesLeaf)
	assert.InDelta(t, 0.2, cfg.Training.TestRatio, 0.001)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("train"))
	assert.NoError(t, cfg.Validate("runs"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/forecast
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - https://dashboard.example.com
training:
  n_estimators: 250
  max_depth: 12
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/forecast", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dashboard.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 250, cfg.Training.NEstimators)
	assert.Equal(t, 12, cfg.Training.MaxDepth)
	// Defaults still apply for unset values
	assert.Equal(t, "historical_demand", cfg.Training.TargetColumn)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("FORECAST_STORE_DRIVER", "postgres")
	t.Setenv("FORECAST_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FORECAST_SERVER_PORT", "3000")
	t.Setenv("FORECAST_MODEL_ARTIFACT_PATH", "/srv/model.gob")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/srv/model.gob", cfg.Model.ArtifactPath)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	// Register cleanup for the variable godotenv is about to set.
	t.Setenv("FORECAST_TRAINING_SEED", "")
	require.NoError(t, os.Unsetenv("FORECAST_TRAINING_SEED"))
	t.Setenv("FORECAST_TRAINING_TEST_RATIO", "0.3")

	env := "FORECAST_TRAINING_SEED=7\nFORECAST_TRAINING_TEST_RATIO=0.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	// Existing environment wins over .env
	assert.InDelta(t, 0.3, cfg.Training.TestRatio, 0.001)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [1, 2"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Model.ArtifactPath = "models/demand_forecaster.gob"
	cfg.Training = TrainingConfig{
		Dataset:         "data/training_data.csv",
		TargetColumn:    "historical_demand",
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		TestRatio:       0.2,
	}
	cfg.Server = ServerConfig{Port: 5000, RateLimitRPS: 50, RateLimitBurst: 100, MaxBodyBytes: 1 << 20}
	cfg.Store = StoreConfig{Driver: "sqlite", DatabaseURL: "runs.db", MaxConns: 4, MinConns: 1}
	return cfg
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate("serve"))
}

func TestValidateServe_RateLimit(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.RateLimitRPS = 0
	cfg.Server.RateLimitBurst = 0
	assert.NoError(t, cfg.Validate("serve"), "rate limiting disabled")

	cfg.Server.RateLimitRPS = 10
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_burst")
}

func TestValidateTrain_ReportsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Training.Dataset = ""
	cfg.Training.NEstimators = 0
	cfg.Training.TestRatio = 1
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("train")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training.dataset is required")
	assert.Contains(t, err.Error(), "training.n_estimators must be >= 1")
	assert.Contains(t, err.Error(), "training.test_ratio")
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateRuns_PostgresPool(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.MinConns = 8
	cfg.Store.MaxConns = 2

	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_conns")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
