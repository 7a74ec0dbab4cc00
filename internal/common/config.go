package common

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string `validate:"oneof=postgres sqlite"`
	DSN              string
	MaxConns         int32 `validate:"gte=1"`
	MinConns         int32 `validate:"gte=0"`
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string `validate:"required"`
	MetricsAddr     string
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// PipelineConfig holds extraction and batch settings
type PipelineConfig struct {
	Workers         int           `validate:"gte=1,lte=64"`
	DocumentTimeout time.Duration `validate:"gt=0"`
	Encodings       []string      `validate:"min=1,dive,oneof=utf-8 windows-1252 iso-8859-1"`
	LayoutsFile     string
	InboxDir        string
	OutboxDir       string
	ShipOffsetDays  int `validate:"gte=0,lte=90"`
	QueueSize       int `validate:"gte=1"`
	RecordHistory   bool
}

// LoadConfig loads configuration from environment variables, reading .env first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:         getEnvAsInt("PIPELINE_WORKERS", 4),
			DocumentTimeout: getEnvAsDuration("PIPELINE_DOCUMENT_TIMEOUT", 30*time.Second),
			Encodings:       getEnvAsList("PIPELINE_ENCODINGS", []string{"utf-8", "windows-1252", "iso-8859-1"}),
			LayoutsFile:     getEnv("LAYOUTS_FILE", ""),
			InboxDir:        getEnv("INBOX_DIR", ""),
			OutboxDir:       getEnv("OUTBOX_DIR", ""),
			ShipOffsetDays:  getEnvAsInt("SHIP_OFFSET_DAYS", 7),
			QueueSize:       getEnvAsInt("QUEUE_SIZE", 256),
			RecordHistory:   getEnvAsBool("RECORD_HISTORY", true),
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
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
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return NewAppError("CONFIG_ERROR", verrs[0].Namespace()+" failed "+verrs[0].Tag(), ErrInvalidInput)
		}
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return NewAppError("CONFIG_ERROR", "DB_MIN_CONNS exceeds DB_MAX_CONNS", ErrInvalidInput)
	}
	return nil
}
