package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Training TrainingConfig `yaml:"training" mapstructure:"training"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ModelConfig locates the persisted model artifact.
type ModelConfig struct {
	ArtifactPath string `yaml:"artifact_path" mapstructure:"artifact_path"`
}

// TrainingConfig configures the offline training run.
type TrainingConfig struct {
	Dataset         string  `yaml:"dataset" mapstructure:"dataset"`
	Sheet           string  `yaml:"sheet" mapstructure:"sheet"`
	TargetColumn    string  `yaml:"target_column" mapstructure:"target_column"`
	Seed            int64   `yaml:"seed" mapstructure:"seed"`
	NEstimators     int     `yaml:"n_estimators" mapstructure:"n_estimators"`
	MaxDepth        int     `yaml:"max_depth" mapstructure:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split" mapstructure:"min_samples_split"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" mapstructure:"min_samples_leaf"`
	MaxFeatures     int     `yaml:"max_features" mapstructure:"max_features"`
	TestRatio       float64 `yaml:"test_ratio" mapstructure:"test_ratio"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the prediction API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"` // 0 disables
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// StoreConfig configures the training run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("model.artifact_path", "models/demand_forecaster.gob")
	v.SetDefault("training.dataset", "data/training_data.csv")
	v.SetDefault("training.sheet", "")
	v.SetDefault("training.target_column", "historical_demand")
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.n_estimators", 100)
	v.SetDefault("training.max_depth", 0)
	v.SetDefault("training.min_samples_split", 2)
	v.SetDefault("training.min_samples_leaf", 1)
	v.SetDefault("training.max_features", 0)
	v.SetDefault("training.test_ratio", 0.2)
	v.SetDefault("training.workers", 0)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 50.0)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/runs.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "forecast-cli/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on and reports every
// problem at once. Modes are "serve", "train" and "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Model.ArtifactPath == "" {
			problems = append(problems, "model.artifact_path is required")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			problems = append(problems, "server.rate_limit_rps must be >= 0")
		}
		if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
			problems = append(problems, "server.rate_limit_burst must be >= 1 when rate limiting")
		}
		if c.Server.MaxBodyBytes <= 0 {
			problems = append(problems, "server.max_body_bytes must be > 0")
		}
	case "train":
		if c.Model.ArtifactPath == "" {
			problems = append(problems, "model.artifact_path is required")
		}
		if c.Training.Dataset == "" {
			problems = append(problems, "training.dataset is required")
		}
		if c.Training.TargetColumn == "" {
			problems = append(problems, "training.target_column is required")
		}
		if c.Training.NEstimators < 1 {
			problems = append(problems, "training.n_estimators must be >= 1")
		}
		if c.Training.MaxDepth < 0 {
			problems = append(problems, "training.max_depth must be >= 0")
		}
		if c.Training.MinSamplesSplit < 2 {
			problems = append(problems, "training.min_samples_split must be >= 2")
		}
		if c.Training.MinSamplesLeaf < 1 {
			problems = append(problems, "training.min_samples_leaf must be >= 1")
		}
		if c.Training.MaxFeatures < 0 {
			problems = append(problems, "training.max_features must be >= 0")
		}
		if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
			problems = append(problems, "training.test_ratio must be between 0 and 1 (exclusive)")
		}
		if c.Training.Workers < 0 {
			problems = append(problems, "training.workers must be >= 0")
		}
		if c.Fetch.MaxRetries < 0 {
			problems = append(problems, "fetch.max_retries must be >= 0")
		}
		problems = append(problems, c.storeProblems()...)
	case "runs":
		problems = append(problems, c.storeProblems()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Store.Driver == "postgres" && c.Store.MinConns > c.Store.MaxConns {
		problems = append(problems, "store.min_conns must be <= store.max_conns")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
