package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	Duplicate  DuplicateConfig
	Retraining RetrainingConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string // binary name or absolute path
	TesseractLang string
	TessdataDir   string
	Provider      string // provenance value recorded on correction rows
	Timeout       time.Duration
}

// DuplicateConfig holds duplicate-detection configuration
type DuplicateConfig struct {
	WindowDays        int
	MerchantThreshold int
	AmountThreshold   int
	MaxDateDiffDays   int
}

// RetrainingConfig holds correction-mining and retraining configuration
type RetrainingConfig struct {
	WindowDays     int // trailing window for pattern mining
	IntervalDays   int // recurring schedule; 0 disables
	ValidationDays int // trailing window for the self-validation metric
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Provider:      getEnv("OCR_PROVIDER", "tesseract"),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 45*time.Second),
		},
		Duplicate: DuplicateConfig{
			WindowDays:        getEnvAsInt("DUP_WINDOW_DAYS", 30),
			MerchantThreshold: getEnvAsInt("DUP_MERCHANT_THRESHOLD", 75),
			AmountThreshold:   getEnvAsInt("DUP_AMOUNT_THRESHOLD", 75),
			MaxDateDiffDays:   getEnvAsInt("DUP_MAX_DATE_DIFF_DAYS", 1),
		},
		Retraining: RetrainingConfig{
			WindowDays:     getEnvAsInt("RETRAIN_WINDOW_DAYS", 30),
			IntervalDays:   getEnvAsInt("RETRAIN_INTERVAL_DAYS", 0),
			ValidationDays: getEnvAsInt("RETRAIN_VALIDATION_DAYS", 7),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Duplicate.WindowDays <= 0 {
		return NewAppError("CONFIG_ERROR", "DUP_WINDOW_DAYS must be positive", ErrInvalidInput)
	}
	if c.Retraining.WindowDays <= 0 {
		return NewAppError("CONFIG_ERROR", "RETRAIN_WINDOW_DAYS must be positive", ErrInvalidInput)
	}
	return nil
}
