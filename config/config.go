// Package config loads and validates the runtime's configuration: gRPC and
// metrics listen addresses, heartbeat timing, S3 connection settings, and
// retry tuning. Values come from environment variables with documented
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the runtime reads at startup.
type Config struct {
	GRPCAddr    string // PULSE_GRPC_ADDR
	MetricsAddr string // PULSE_METRICS_ADDR

	HeartbeatInterval time.Duration // PULSE_HEARTBEAT_INTERVAL_SECS
	HeartbeatTimeout  time.Duration // PULSE_HEARTBEAT_TIMEOUT_SECS

	S3Endpoint   string // PULSE_S3_ENDPOINT
	S3Bucket     string // PULSE_S3_BUCKET
	S3Region     string // PULSE_S3_REGION
	S3PathPrefix string // PULSE_S3_PATH_PREFIX

	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY

	MaxRetries    int           // PULSE_MAX_RETRIES
	RetryDelay    time.Duration // PULSE_RETRY_DELAY_MS
	MaxRetryDelay time.Duration // PULSE_MAX_RETRY_DELAY_MS

	LogLevel string // PULSE_LOG_LEVEL
}

// Load reads Config from the environment, applying the runtime's defaults
// wherever a variable is unset.
func Load() Config {
	return Config{
		GRPCAddr:    getEnv("PULSE_GRPC_ADDR", "0.0.0.0:50051"),
		MetricsAddr: getEnv("PULSE_METRICS_ADDR", "0.0.0.0:9090"),

		HeartbeatInterval: getEnvSeconds("PULSE_HEARTBEAT_INTERVAL_SECS", 30*time.Second),
		HeartbeatTimeout:  getEnvSeconds("PULSE_HEARTBEAT_TIMEOUT_SECS", 90*time.Second),

		S3Endpoint:   getEnv("PULSE_S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:     getEnv("PULSE_S3_BUCKET", "checkpoints"),
		S3Region:     getEnv("PULSE_S3_REGION", "us-east-1"),
		S3PathPrefix: getEnv("PULSE_S3_PATH_PREFIX", ""),

		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),

		MaxRetries:    getEnvInt("PULSE_MAX_RETRIES", 3),
		RetryDelay:    getEnvMillis("PULSE_RETRY_DELAY_MS", 100*time.Millisecond),
		MaxRetryDelay: getEnvMillis("PULSE_MAX_RETRY_DELAY_MS", 5*time.Second),

		LogLevel: getEnv("PULSE_LOG_LEVEL", "info"),
	}
}

// Validate ensures every field is in a range the runtime can act on.
func (c *Config) Validate() error {
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpc addr is required")
	}

	if c.MetricsAddr == "" {
		return fmt.Errorf("metrics addr is required")
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}

	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat timeout must exceed the heartbeat interval")
	}

	if c.S3Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}

	if c.S3Region == "" {
		return fmt.Errorf("s3 region is required")
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}

	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}

	if c.MaxRetryDelay < c.RetryDelay {
		return fmt.Errorf("max retry delay must be at least the initial retry delay")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
