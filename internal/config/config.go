package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultContentBudget is the character budget for file content
	// embedded in classification prompts.
	DefaultContentBudget = 6000

	// DefaultConcurrency is the number of files classified at once. The
	// default of 1 keeps the original strictly sequential behavior.
	DefaultConcurrency = 1

	// DefaultRequestsPerMinute caps outbound model calls.
	DefaultRequestsPerMinute = 50

	// DefaultCharacterCap is how many top-ranked characters become codex entries.
	DefaultCharacterCap = 20

	// DefaultLocationCap is how many top-ranked locations become codex entries.
	DefaultLocationCap = 15
)

// Config holds all configuration for storyloom.
type Config struct {
	Claude  ClaudeConfig  `mapstructure:"claude"`
	Store   StoreConfig   `mapstructure:"store"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s, RequestsPerMinute:%d}",
		maskAPIKey(c.APIKey), c.Model, c.RequestsPerMinute)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// IngestConfig holds ingestion pipeline tuning.
type IngestConfig struct {
	ContentBudget int `mapstructure:"content_budget"`
	Concurrency   int `mapstructure:"concurrency"`
	CharacterCap  int `mapstructure:"character_cap"`
	LocationCap   int `mapstructure:"location_cap"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("claude.requests_per_minute", DefaultRequestsPerMinute)

	v.SetDefault("store.data_dir", filepath.Join(homeDir(), ".storyloom", "data"))

	v.SetDefault("ingest.content_budget", DefaultContentBudget)
	v.SetDefault("ingest.concurrency", DefaultConcurrency)
	v.SetDefault("ingest.character_cap", DefaultCharacterCap)
	v.SetDefault("ingest.location_cap", DefaultLocationCap)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".storyloom"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("STORYLOOM")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("claude.model", "STORYLOOM_CLAUDE_MODEL")
	_ = v.BindEnv("store.data_dir", "STORYLOOM_DATA_DIR")
	_ = v.BindEnv("ingest.concurrency", "STORYLOOM_INGEST_CONCURRENCY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Claude.Model == "" {
		return fmt.Errorf("claude.model must not be empty")
	}
	if c.Claude.RequestsPerMinute <= 0 {
		return fmt.Errorf("claude.requests_per_minute must be greater than 0")
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir must not be empty")
	}
	if c.Ingest.ContentBudget <= 0 {
		return fmt.Errorf("ingest.content_budget must be greater than 0")
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be greater than 0")
	}
	if c.Ingest.CharacterCap <= 0 {
		return fmt.Errorf("ingest.character_cap must be greater than 0")
	}
	if c.Ingest.LocationCap <= 0 {
		return fmt.Errorf("ingest.location_cap must be greater than 0")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
