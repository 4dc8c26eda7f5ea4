package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// Environment Variables:
//
// Server:
// - LISTEN_ADDR: address the HTTP server binds to (default: :8080)
// - DB_PATH: path of the SQLite database file (default: data/legalocr.db)
// - ALLOWED_ORIGINS: comma-separated CORS origin allow-list
// - LOG_LEVEL: debug|info|warn|error (default: info)
// - LOG_FILE: optional log file path; empty logs to stdout
//
// OCR provider:
// - OCR_API_URL: provider base URL (default: https://api.mistral.ai/v1)
// - OCR_MODEL: OCR model name (default: mistral-ocr-latest)
// - OCR_TIMEOUT: request timeout in seconds (default: 120)
// - OCR_MAX_RETRIES: attempts per provider call (default: 3)
//
// Batch jobs:
// - BATCH_JOB_TTL: job record lifetime in seconds (default: 7 days)
// - SWEEP_SCHEDULE: cron expression for the expiry sweep (default: @every 1h)
// - MAX_UPLOAD_BYTES: per-request upload cap (default: 50 MB)
// - UPLOAD_CONCURRENCY: parallel provider uploads per batch create (default: 4)
type Config struct {
	Server ServerConfig `json:"server"`
	OCR    OCRConfig    `json:"ocr"`
	Batch  BatchConfig  `json:"batch"`
}

type ServerConfig struct {
	ListenAddr     string   `json:"listen_addr"`
	DBPath         string   `json:"db_path"`
	AllowedOrigins []string `json:"allowed_origins"`
	LogLevel       string   `json:"log_level"`
	LogFile        string   `json:"log_file"`
}

// OCRConfig holds the configuration for the remote OCR provider client.
// The API key is never configured server-side; callers supply it per request.
type OCRConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	Timeout    int    `json:"timeout"`
	MaxRetries int    `json:"max_retries"`
}

type BatchConfig struct {
	JobTTL            time.Duration `json:"job_ttl"`
	SweepSchedule     string        `json:"sweep_schedule"`
	MaxUploadBytes    int64         `json:"max_upload_bytes"`
	UploadConcurrency int           `json:"upload_concurrency"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			ListenAddr:     getEnvString("LISTEN_ADDR", ":8080"),
			DBPath:         getEnvString("DB_PATH", "data/legalocr.db"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", defaultAllowedOrigins),
			LogLevel:       getEnvString("LOG_LEVEL", "info"),
			LogFile:        getEnvString("LOG_FILE", ""),
		},
		OCR: OCRConfig{
			BaseURL:    getEnvString("OCR_API_URL", "https://api.mistral.ai/v1"),
			Model:      getEnvString("OCR_MODEL", "mistral-ocr-latest"),
			Timeout:    getEnvInt("OCR_TIMEOUT", 120),
			MaxRetries: getEnvInt("OCR_MAX_RETRIES", 3),
		},
		Batch: BatchConfig{
			JobTTL:            time.Duration(getEnvInt("BATCH_JOB_TTL", 7*24*60*60)) * time.Second,
			SweepSchedule:     getEnvString("SWEEP_SCHEDULE", "@every 1h"),
			MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 50*1024*1024)),
			UploadConcurrency: getEnvInt("UPLOAD_CONCURRENCY", 4),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

var defaultAllowedOrigins = []string{
	"https://ocr.jus.team",
	"https://jus-team-pdf-converter.pages.dev",
	"http://localhost:5173",
	"http://localhost:3000",
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.OCR.BaseURL == "" {
		return fmt.Errorf("OCR_API_URL is required")
	}
	if c.OCR.MaxRetries < 1 {
		return fmt.Errorf("OCR_MAX_RETRIES must be at least 1")
	}
	if c.Batch.JobTTL <= 0 {
		return fmt.Errorf("BATCH_JOB_TTL must be positive")
	}
	if c.Batch.UploadConcurrency < 1 {
		return fmt.Errorf("UPLOAD_CONCURRENCY must be at least 1")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated list from environment variables with default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	if len(ret) == 0 {
		return defaultValue
	}
	return ret
}
