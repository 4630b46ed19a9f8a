package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl         string
	ConfirmTimeout time.Duration

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Aggregator settings
	AggregatorBaseURL string
	AggregatorAPIKey  string

	// Pool relay settings
	RelayBaseURL string
	RelayAPIKey  string

	// Wallet key service (custodial transfer authorization)
	KeyServiceURL    string
	KeyServiceAPIKey string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Optional JSON file with extra token descriptors (artist coins).
	TokenConfigPath string

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// LLM settings for the ops agent
	OpenRouterAPIKey string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:         getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		ConfirmTimeout: getDurationEnv("CONFIRM_TIMEOUT", 60*time.Second),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "swaps"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Aggregator
		AggregatorBaseURL: getEnv("AGGREGATOR_BASE_URL", ""),
		AggregatorAPIKey:  getEnv("AGGREGATOR_API_KEY", ""),

		// Relay
		RelayBaseURL: getEnv("RELAY_BASE_URL", ""),
		RelayAPIKey:  getEnv("RELAY_API_KEY", ""),

		// Key service
		KeyServiceURL:    getEnv("KEY_SERVICE_URL", ""),
		KeyServiceAPIKey: getEnv("KEY_SERVICE_API_KEY", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 1*time.Second),

		// Tokens
		TokenConfigPath: getEnv("TOKEN_CONFIG_PATH", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// LLM
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
	}
}

// Validate checks the settings every binary needs. Optional integrations
// (relay, key service, LLM) are validated at the point of use instead.
func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
