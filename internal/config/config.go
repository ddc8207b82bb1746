// Package config provides configuration loading for the lakehouse services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EngineAthena   = "athena"
	EnginePostgres = "postgres"

	TriggerTemporal      = "temporal"
	TriggerStepFunctions = "stepfunctions"
)

// Config holds all configuration for the lakehouse binaries.
type Config struct {
	// Query engine settings
	EngineKind  string
	Database    string
	Workgroup   string
	AWSRegion   string
	PostgresURL string
	Bucket      string

	// Poll settings for query executions
	PollInterval      time.Duration
	PollMaxAttempts   int
	FailureFetchLimit int

	// Catalog and results
	ResultsTable string
	ProjectName  string
	CatalogPath  string

	// Object store settings
	ObjectStoreEndpoint  string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreRegion    string
	ObjectStoreUseSSL    bool
	ObjectStoreBucket    string

	// Temporal settings
	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string

	// Workflow trigger settings
	TriggerKind         string
	StateMachineARN     string
	TriggerPollInterval time.Duration
	TriggerTimeout      time.Duration

	// Ambient
	PushgatewayURL string
	LogLevel       string
	HTTPAddr       string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	bucket := getEnv("S3_BUCKET", "")
	return &Config{
		EngineKind:  strings.ToLower(getEnv("LAKEHOUSE_ENGINE", EngineAthena)),
		Database:    getEnv("GLUE_DATABASE", "default"),
		Workgroup:   getEnv("ATHENA_WORKGROUP", "primary"),
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		PostgresURL: getEnv("LAKEHOUSE_POSTGRES_URL", ""),
		Bucket:      bucket,

		PollInterval:      getEnvDuration("LAKEHOUSE_POLL_INTERVAL", 2*time.Second),
		PollMaxAttempts:   getEnvInt("LAKEHOUSE_POLL_MAX_ATTEMPTS", 60),
		FailureFetchLimit: getEnvInt("LAKEHOUSE_FAILURE_FETCH_LIMIT", 10),

		ResultsTable: getEnv("LAKEHOUSE_RESULTS_TABLE", "elementary_test_results"),
		ProjectName:  getEnv("LAKEHOUSE_PROJECT", "lakehouse"),
		CatalogPath:  getEnv("LAKEHOUSE_CATALOG_PATH", ""),

		ObjectStoreEndpoint:  getEnv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreAccessKey: getEnv("OBJECT_STORE_ACCESS_KEY", ""),
		ObjectStoreSecretKey: getEnv("OBJECT_STORE_SECRET_KEY", ""),
		ObjectStoreRegion:    getEnv("OBJECT_STORE_REGION", "us-east-1"),
		ObjectStoreUseSSL:    getEnvBool("OBJECT_STORE_USE_SSL", false),
		ObjectStoreBucket:    getEnv("OBJECT_STORE_BUCKET", bucket),

		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace: getEnv("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue: getEnv("TEMPORAL_TASK_QUEUE", "lakehouse"),

		TriggerKind:         strings.ToLower(getEnv("LAKEHOUSE_TRIGGER", TriggerTemporal)),
		StateMachineARN:     getEnv("STATE_MACHINE_ARN", ""),
		TriggerPollInterval: getEnvDuration("LAKEHOUSE_TRIGGER_POLL_INTERVAL", time.Minute),
		TriggerTimeout:      getEnvDuration("LAKEHOUSE_TRIGGER_TIMEOUT", 2*time.Hour),

		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPAddr:       getEnv("LAKEHOUSE_HTTP_ADDR", ":8080"),
	}
}

// Validate rejects combinations no component can run with.
func (c *Config) Validate() error {
	switch c.EngineKind {
	case EngineAthena:
	case EnginePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("LAKEHOUSE_POSTGRES_URL is required for the postgres engine")
		}
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", c.EngineKind, EngineAthena, EnginePostgres)
	}
	switch c.TriggerKind {
	case TriggerTemporal, TriggerStepFunctions:
	default:
		return fmt.Errorf("unknown trigger %q (want %s or %s)", c.TriggerKind, TriggerTemporal, TriggerStepFunctions)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive")
	}
	if c.FailureFetchLimit <= 0 {
		return fmt.Errorf("failure fetch limit must be positive")
	}
	if c.TriggerPollInterval <= 0 || c.TriggerTimeout <= 0 {
		return fmt.Errorf("trigger poll interval and timeout must be positive")
	}
	if c.Database == "" || c.ResultsTable == "" {
		return fmt.Errorf("database and results table are required")
	}
	return nil
}

// DefaultStorageLocation is where marts tables land when a request names none.
func (c *Config) DefaultStorageLocation() string {
	if c.Bucket == "" {
		return ""
	}
	return fmt.Sprintf("s3://%s/curated", c.Bucket)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
