// Package config loads application configuration from file and environment
// via viper. Defaults are set first, file values layer on top, and a small
// set of environment variables override both.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Store configuration
	Store StoreConfig `mapstructure:"store"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Classifier configuration
	Classifier ClassifierConfig `mapstructure:"classifier"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
	// RequestTimeout is the hard per-request ceiling in seconds.
	RequestTimeout int `mapstructure:"request_timeout"`
}

// StoreConfig holds graph store configuration
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // memory, badger, neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// PipelineConfig holds interpreter and retriever tuning
type PipelineConfig struct {
	HopLimit                   int          `mapstructure:"hop_limit"`
	SeedCap                    int          `mapstructure:"seed_cap"`
	MentionSimilarityThreshold float64      `mapstructure:"mention_similarity_threshold"`
	IntentConfidenceFloor      float64      `mapstructure:"intent_confidence_floor"`
	KDefault                   int          `mapstructure:"k_default"`
	ScoreWeights               ScoreWeights `mapstructure:"score_weights"`
}

// ScoreWeights holds the four ranking weights
type ScoreWeights struct {
	Mention  float64 `mapstructure:"mention"`
	HopDecay float64 `mapstructure:"hop_decay"`
	Edge     float64 `mapstructure:"edge"`
	Spatial  float64 `mapstructure:"spatial"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai, embedeverything, none
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ClassifierConfig holds fallback intent classifier configuration
type ClassifierConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, none
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ParquetPath string `mapstructure:"parquet_path"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects malformed settings at startup so they cannot surface
// mid-query.
func (c *Config) Validate() error {
	if c.Pipeline.HopLimit <= 0 {
		return fmt.Errorf("pipeline.hop_limit must be positive, got %d", c.Pipeline.HopLimit)
	}
	if c.Pipeline.SeedCap <= 0 {
		return fmt.Errorf("pipeline.seed_cap must be positive, got %d", c.Pipeline.SeedCap)
	}
	if t := c.Pipeline.MentionSimilarityThreshold; t < -1 || t > 1 {
		return fmt.Errorf("pipeline.mention_similarity_threshold must be in [-1,1], got %v", t)
	}
	if f := c.Pipeline.IntentConfidenceFloor; f < 0 || f > 1 {
		return fmt.Errorf("pipeline.intent_confidence_floor must be in [0,1], got %v", f)
	}
	if c.Pipeline.KDefault <= 0 {
		return fmt.Errorf("pipeline.k_default must be positive, got %d", c.Pipeline.KDefault)
	}
	w := c.Pipeline.ScoreWeights
	if w.Mention < 0 || w.HopDecay < 0 || w.Edge < 0 || w.Spatial < 0 {
		return fmt.Errorf("pipeline.score_weights must be non-negative")
	}
	switch c.Store.Driver {
	case "memory", "badger", "neo4j":
	default:
		return fmt.Errorf("store.driver must be one of memory, badger, neo4j; got %q", c.Store.Driver)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.request_timeout", 30)

	// Store defaults
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.uri", "")
	viper.SetDefault("store.username", "")
	viper.SetDefault("store.password", "")
	viper.SetDefault("store.database", "")

	// Pipeline defaults
	viper.SetDefault("pipeline.hop_limit", 3)
	viper.SetDefault("pipeline.seed_cap", 500)
	viper.SetDefault("pipeline.mention_similarity_threshold", 0.6)
	viper.SetDefault("pipeline.intent_confidence_floor", 0.5)
	viper.SetDefault("pipeline.k_default", 10)
	viper.SetDefault("pipeline.score_weights.mention", 0.25)
	viper.SetDefault("pipeline.score_weights.hop_decay", 0.25)
	viper.SetDefault("pipeline.score_weights.edge", 0.25)
	viper.SetDefault("pipeline.score_weights.spatial", 0.25)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")

	// Classifier defaults
	viper.SetDefault("classifier.provider", "none")
	viper.SetDefault("classifier.temperature", 0.0)
	viper.SetDefault("classifier.max_tokens", 100)

	// Telemetry defaults
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.batch_size", 100)
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.cartograph/telemetry", home))
	}

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
		if config.Classifier.APIKey == "" {
			config.Classifier.APIKey = apiKey
		}
	}

	// Store credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Store.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Store.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Store.Password = pass
	}
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		config.Store.Driver = driver
	}
	if uri := os.Getenv("STORE_URI"); uri != "" {
		config.Store.URI = uri
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
