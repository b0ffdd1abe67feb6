package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	StoreDriver string
	DbURL       string
	APIPort     int
	KafkaBroker string
	KafkaTopic  string
	// Confirmation consumption is disabled when ConfirmationTopic is empty.
	ConfirmationTopic string
	ConsumerGroup     string
	RelayInterval     time.Duration
	RelayBatchSize    int
	ReviewerIDs       []string
	MCPHTTPPath       string
	SeedFixtures      bool
}

// NewConfig loads configuration from environment variables
func NewConfig() *Config {
	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DbURL:             os.Getenv("DB_URL"),
		APIPort:           getEnvInt("API_PORT", 8080),
		KafkaBroker:       os.Getenv("KAFKA_BROKER"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "settlement-events"),
		ConfirmationTopic: os.Getenv("KAFKA_CONFIRMATION_TOPIC"),
		ConsumerGroup:     getEnv("KAFKA_CONSUMER_GROUP", "settlement-confirmations"),
		RelayInterval:     getEnvDuration("RELAY_INTERVAL", 3*time.Second),
		RelayBatchSize:    getEnvInt("RELAY_BATCH_SIZE", 100),
		ReviewerIDs:       getEnvList("REVIEWER_IDS"),
		MCPHTTPPath:       getEnv("MCP_HTTP_PATH", "/mcp"),
		SeedFixtures:      getEnvBool("SEED_FIXTURES", true),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DbURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.MCPHTTPPath != "" && !strings.HasPrefix(cfg.MCPHTTPPath, "/") {
		return nil, fmt.Errorf("MCP_HTTP_PATH must start with /")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
