package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion      string
	DynamoDBTable  string
	StorageBackend string // "memory" or "dynamodb"

	// Export backend configuration
	ExportBaseURL string
	ExportAPIKey  string

	// Notification intake
	NATSURL             string
	NotificationSubject string

	// Orchestration
	OperationTimeout  time.Duration
	RetryAfterSeconds int

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:  getEnv("TABLE_NAME", "report-operations"),
		StorageBackend: getEnv("STORAGE_BACKEND", "memory"),

		ExportBaseURL: getEnv("EXPORT_BASE_URL", "http://localhost:9090"),
		ExportAPIKey:  getEnv("EXPORT_API_KEY", ""),

		NATSURL:             getEnv("NATS_URL", ""),
		NotificationSubject: getEnv("NOTIFICATION_SUBJECT", "reports.file.created"),

		OperationTimeout:  time.Duration(getEnvInt("OPERATION_TIMEOUT_SECONDS", 300)) * time.Second,
		RetryAfterSeconds: getEnvInt("RETRY_AFTER_SECONDS", 10),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.StorageBackend != "memory" && c.StorageBackend != "dynamodb" {
		return fmt.Errorf("STORAGE_BACKEND must be memory or dynamodb, got %q", c.StorageBackend)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT_SECONDS must be positive")
	}
	if c.RetryAfterSeconds <= 0 {
		return fmt.Errorf("RETRY_AFTER_SECONDS must be positive")
	}

	if c.Environment == "production" {
		if c.ExportBaseURL == "" {
			return fmt.Errorf("EXPORT_BASE_URL is required in production")
		}
		if c.StorageBackend == "dynamodb" && c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required with the dynamodb backend")
		}
	}

	return nil
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
