package config

import (
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Local store
	DataPath string `mapstructure:"DATA_PATH"`

	// Remote endpoint
	RemoteEndpoint string `mapstructure:"REMOTE_ENDPOINT"`
	RemoteTimeout  int    `mapstructure:"REMOTE_TIMEOUT_SECONDS"`

	// Sync
	PullSchedule  string `mapstructure:"SYNC_PULL_SCHEDULE"`
	DrainSchedule string `mapstructure:"SYNC_DRAIN_SCHEDULE"`
	MaxRetries    int    `mapstructure:"SYNC_MAX_RETRIES"`
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Sensible defaults for development
	viper.SetDefault("PORT", 8900)
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATA_PATH", "pos.db")
	viper.SetDefault("REMOTE_ENDPOINT", "http://localhost:9090/api")
	viper.SetDefault("REMOTE_TIMEOUT_SECONDS", 15)
	viper.SetDefault("SYNC_PULL_SCHEDULE", "@every 5m")
	viper.SetDefault("SYNC_DRAIN_SCHEDULE", "@every 30s")
	viper.SetDefault("SYNC_MAX_RETRIES", 8)

	// Optional .env file for local development — does not fail if missing
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
