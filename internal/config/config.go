// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DBPath             string
	SeedDemoData       bool
	TemplatesPath      string // optional YAML response catalog; empty = embedded catalog
	RandomSeed         uint64 // 0 = seeded from the clock
	SimulateLatency    bool
	HealthCheckTimeout time.Duration
	Live               LiveConfig
	Retry              RetryConfig
}

// LiveConfig controls the live update feed.
type LiveConfig struct {
	SnapshotDelay              time.Duration
	PingInterval               time.Duration
	MessageInterval            time.Duration
	NewConversationInterval    time.Duration
	MetricsProbability         float64
	NewConversationProbability float64
	MaxMessages                int
	WriteTimeout               time.Duration
}

// RetryConfig controls retries of SQLite writes under lock contention.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "9000"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/supervisor.db"),
		SeedDemoData:       getEnvBool("SEED_DEMO_DATA", true),
		TemplatesPath:      getEnv("TEMPLATES_PATH", ""),
		RandomSeed:         getEnvUint64("RANDOM_SEED", 0),
		SimulateLatency:    getEnvBool("LLM_SIMULATE_LATENCY", true),
		HealthCheckTimeout: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		Live: LiveConfig{
			SnapshotDelay:              getEnvDuration("LIVE_SNAPSHOT_DELAY", time.Second),
			PingInterval:               getEnvDuration("LIVE_PING_INTERVAL", 30*time.Second),
			MessageInterval:            getEnvDuration("LIVE_MESSAGE_INTERVAL", 5*time.Second),
			NewConversationInterval:    getEnvDuration("LIVE_NEW_CONVERSATION_INTERVAL", 15*time.Second),
			MetricsProbability:         getEnvFloat("LIVE_METRICS_PROBABILITY", 0.3),
			NewConversationProbability: getEnvFloat("LIVE_NEW_CONVERSATION_PROBABILITY", 0.2),
			MaxMessages:                getEnvInt("LIVE_MAX_MESSAGES", 200),
			WriteTimeout:               getEnvDuration("LIVE_WRITE_TIMEOUT", 5*time.Second),
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be > 0")
	}
	if c.Live.SnapshotDelay < 0 {
		return fmt.Errorf("LIVE_SNAPSHOT_DELAY cannot be negative")
	}
	if c.Live.PingInterval <= 0 {
		return fmt.Errorf("LIVE_PING_INTERVAL must be > 0")
	}
	if c.Live.MessageInterval <= 0 {
		return fmt.Errorf("LIVE_MESSAGE_INTERVAL must be > 0")
	}
	if c.Live.NewConversationInterval <= 0 {
		return fmt.Errorf("LIVE_NEW_CONVERSATION_INTERVAL must be > 0")
	}
	if c.Live.MetricsProbability < 0 || c.Live.MetricsProbability > 1 {
		return fmt.Errorf("LIVE_METRICS_PROBABILITY must be within [0,1]")
	}
	if c.Live.NewConversationProbability < 0 || c.Live.NewConversationProbability > 1 {
		return fmt.Errorf("LIVE_NEW_CONVERSATION_PROBABILITY must be within [0,1]")
	}
	if c.Live.WriteTimeout <= 0 {
		return fmt.Errorf("LIVE_WRITE_TIMEOUT must be > 0")
	}
	if c.Retry.DatabaseMaxRetries < 0 {
		return fmt.Errorf("DB_MAX_RETRIES cannot be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the REST API.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvUint64(key string, fallback uint64) uint64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
