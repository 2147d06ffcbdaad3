package common

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	Server       ServerConfig       `mapstructure:"server"`
	OCR          OCRConfig          `mapstructure:"ocr"`
	Verification VerificationConfig `mapstructure:"verification"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Log          LogConfig          `mapstructure:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // postgres | sqlite
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr     string        `mapstructure:"grpc_addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	RetryAfter   time.Duration `mapstructure:"retry_after"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TessdataDir   string        `mapstructure:"tessdata_dir"`
	Language      string        `mapstructure:"language"`
	MaxPages      int           `mapstructure:"max_pages"`
	RasterTimeout time.Duration `mapstructure:"raster_timeout"`
	TempDir       string        `mapstructure:"temp_dir"`
	Preprocessor  string        `mapstructure:"preprocessor"`
}

// VerificationConfig controls the auto-verification decision engine.
type VerificationConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MinScore int  `mapstructure:"min_score"`
}

// OrchestratorConfig controls document waiting and reviewer lookup.
type OrchestratorConfig struct {
	WaitAttempts     int           `mapstructure:"wait_attempts"`
	WaitBaseDelay    time.Duration `mapstructure:"wait_base_delay"`
	FallbackWindow   time.Duration `mapstructure:"fallback_window"`
	HPGOrganization  string        `mapstructure:"hpg_organization"`
	InsuranceOrg     string        `mapstructure:"insurance_organization"`
	ReviewerRoleHPG  string        `mapstructure:"reviewer_role_hpg"`
	ReviewerRoleIns  string        `mapstructure:"reviewer_role_insurance"`
	RequestedByLabel string        `mapstructure:"requested_by"`
}

// RegistryConfig selects and tunes the external record sources.
type RegistryConfig struct {
	Source      string        `mapstructure:"source"` // fixture | http | postgres
	FixturePath string        `mapstructure:"fixture_path"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	Burst       int           `mapstructure:"burst"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// LogConfig configures the slog handler built by the binaries.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

// LoadConfig reads configuration from an optional YAML file and VC_* environment variables.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("VC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, NewAppError("CONFIG_ERROR", "read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.poll_interval", 10*time.Second)
	v.SetDefault("server.workers", 4)
	v.SetDefault("server.queue_size", 256)
	v.SetDefault("server.job_timeout", 3*time.Minute)
	v.SetDefault("server.retry_after", 10*time.Minute)

	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.max_pages", 5)
	v.SetDefault("ocr.raster_timeout", 30*time.Second)
	v.SetDefault("ocr.temp_dir", "")
	v.SetDefault("ocr.preprocessor", "magick")

	v.SetDefault("verification.enabled", true)
	v.SetDefault("verification.min_score", 90)

	v.SetDefault("orchestrator.wait_attempts", 5)
	v.SetDefault("orchestrator.wait_base_delay", 100*time.Millisecond)
	v.SetDefault("orchestrator.fallback_window", 2*time.Minute)
	v.SetDefault("orchestrator.hpg_organization", "HPG")
	v.SetDefault("orchestrator.insurance_organization", "INSURANCE")
	v.SetDefault("orchestrator.reviewer_role_hpg", "hpg_admin")
	v.SetDefault("orchestrator.reviewer_role_insurance", "insurance_verifier")
	v.SetDefault("orchestrator.requested_by", "system")

	v.SetDefault("registry.source", "fixture")
	v.SetDefault("registry.fixture_path", "")
	v.SetDefault("registry.base_url", "")
	v.SetDefault("registry.api_key", "")
	v.SetDefault("registry.timeout", 10*time.Second)
	v.SetDefault("registry.rate_per_sec", 5.0)
	v.SetDefault("registry.burst", 5)
	v.SetDefault("registry.max_attempts", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported database.driver %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "database.dsn is required", ErrInvalidInput)
	}
	if c.Verification.MinScore < 0 || c.Verification.MinScore > 100 {
		return NewAppError("CONFIG_ERROR", "verification.min_score must be within 0..100", ErrInvalidInput)
	}
	switch c.Registry.Source {
	case "fixture", "postgres":
	case "http":
		if c.Registry.BaseURL == "" {
			return NewAppError("CONFIG_ERROR", "registry.base_url is required for the http source", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported registry.source %q", c.Registry.Source), ErrInvalidInput)
	}
	if c.Registry.Source == "postgres" && c.Database.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "registry.source postgres requires database.driver postgres", ErrInvalidInput)
	}
	return nil
}

// NewLogger builds the process logger from LogConfig.
func NewLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
