// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the job board API.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	HttpListenAddr string `mapstructure:"http_listen_addr" validate:"required"`
	GrpcListenAddr string `mapstructure:"grpc_listen_addr" validate:"required"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// LedgerBackend selects where applications live: "etcd" for a cluster, "memory" for a single dev node.
	LedgerBackend     string        `mapstructure:"ledger_backend" validate:"oneof=etcd memory"`
	EtcdEndpoints     []string      `mapstructure:"etcd_endpoints" validate:"required_if=LedgerBackend etcd"`
	EtcdTimeout       time.Duration `mapstructure:"etcd_timeout" validate:"required"`
	LeaderElectionTTL time.Duration `mapstructure:"leader_election_ttl" validate:"required,min=1s"`
	LedgerMaxRetries  int           `mapstructure:"ledger_max_retries" validate:"min=1,max=50"`

	DatabaseURL    string `mapstructure:"database_url" validate:"required"`
	DbMaxOpenConns int    `mapstructure:"db_max_open_conns" validate:"min=1"`
	DbMaxIdleConns int    `mapstructure:"db_max_idle_conns" validate:"min=0"`

	// RedisAddr is optional; without it submissions are rate limited per node.
	RedisAddr string `mapstructure:"redis_addr"`
	JwtSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`

	DriveCredentialsFile string        `mapstructure:"drive_credentials_file" validate:"required"`
	DriveResumeFolderID  string        `mapstructure:"drive_resume_folder_id" validate:"required"`
	UploadTimeout        time.Duration `mapstructure:"upload_timeout" validate:"required"`

	JanitorSchedule  string        `mapstructure:"janitor_schedule" validate:"required"`
	StatsSchedule    string        `mapstructure:"stats_schedule" validate:"required"`
	SubmitRateLimit  int           `mapstructure:"submit_rate_limit" validate:"min=0"`
	SubmitRateWindow time.Duration `mapstructure:"submit_rate_window" validate:"required"`
}

var defaults = map[string]any{
	"http_listen_addr":       ":8080",
	"grpc_listen_addr":       ":9090",
	"log_level":              "info",
	"ledger_backend":         "etcd",
	"etcd_endpoints":         []string{"localhost:2379"},
	"etcd_timeout":           "5s",
	"leader_election_ttl":    "10s",
	"ledger_max_retries":     5,
	"database_url":           "",
	"db_max_open_conns":      10,
	"db_max_idle_conns":      5,
	"redis_addr":             "",
	"jwt_secret":             "",
	"drive_credentials_file": "",
	"drive_resume_folder_id": "",
	"upload_timeout":         "30s",
	"janitor_schedule":       "0 */5 * * * *",
	"stats_schedule":         "30 * * * * *",
	"submit_rate_limit":      10,
	"submit_rate_window":     "1m",
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Every key can be overridden by its upper-case environment variable, e.g. DATABASE_URL.
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps log_level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
