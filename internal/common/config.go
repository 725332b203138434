package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendFS       = "fs"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Text source names accepted by TEXT_SOURCE.
const (
	TextSourcePDF       = "pdf"
	TextSourcePdftotext = "pdftotext"
)

// Config holds all application configuration
type Config struct {
	Store      StoreConfig
	Database   DatabaseConfig
	S3         S3Config
	Text       TextConfig
	Origins    OriginConfig
	Categories CategoryConfig
	Log        LogConfig
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	Backend         string
	DataDir         string
	SQLitePath      string
	DefaultPageSize int
	MemoSize        int
	MemoTTL         time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// S3Config holds object storage configuration
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// TextConfig selects how page text is recovered from documents
type TextConfig struct {
	Source    string
	Pdftotext string
}

// OriginConfig lists the canonical origin tags. Any other string is still a
// legal tag; canonical ones only matter to aggregation.
type OriginConfig struct {
	Canonical []string
	Default   string
	Wildcard  string
	Unknown   string
}

// CategoryConfig points at the category tree definition
type CategoryConfig struct {
	File string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", BackendFS)),
			DataDir:         getEnv("DATA_DIR", "./facturas"),
			SQLitePath:      getEnv("SQLITE_PATH", "./data/ledger.db"),
			DefaultPageSize: getEnvAsInt("DEFAULT_PAGE_SIZE", 10),
			MemoSize:        getEnvAsInt("MEMO_SIZE", 256),
			MemoTTL:         getEnvAsDuration("MEMO_TTL", 10*time.Minute),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			Table:           getEnv("DB_TABLE", "ledger_entries"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "facturas"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			UseSSL:    getEnvAsBool("S3_USE_SSL", false),
		},
		Text: TextConfig{
			Source:    strings.ToLower(getEnv("TEXT_SOURCE", TextSourcePDF)),
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
		},
		Origins: OriginConfig{
			Canonical: getEnvAsList("ORIGINS", []string{"Centrales", "Campo"}),
			Default:   getEnv("DEFAULT_ORIGIN", "Centrales"),
			Wildcard:  getEnv("ORIGIN_WILDCARD", "Todos"),
			Unknown:   getEnv("ORIGIN_UNKNOWN", "Desconocido"),
		},
		Categories: CategoryConfig{
			File: getEnv("CATEGORIES_FILE", "./categories_config.json"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
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
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFS:
		if c.Store.DataDir == "" {
			return NewAppError(CodeConfig, "DATA_DIR is required for the fs backend", ErrInvalidInput)
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return NewAppError(CodeConfig, "SQLITE_PATH is required for the sqlite backend", ErrInvalidInput)
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "DB_URL is required for the postgres backend", ErrInvalidInput)
		}
	case BackendS3:
		if c.S3.Bucket == "" || c.S3.Endpoint == "" {
			return NewAppError(CodeConfig, "S3_ENDPOINT and S3_BUCKET are required for the s3 backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown STORE_BACKEND %q", c.Store.Backend), ErrInvalidInput)
	}
	switch c.Text.Source {
	case TextSourcePDF, TextSourcePdftotext:
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown TEXT_SOURCE %q", c.Text.Source), ErrInvalidInput)
	}
	if c.Store.DefaultPageSize <= 0 {
		return NewAppError(CodeConfig, "DEFAULT_PAGE_SIZE must be positive", ErrInvalidInput)
	}
	if len(c.Origins.Canonical) == 0 || c.Origins.Default == "" {
		return NewAppError(CodeConfig, "ORIGINS and DEFAULT_ORIGIN are required", ErrInvalidInput)
	}
	if err := ValidateOriginTag(c.Origins.Default); err != nil {
		return NewAppError(CodeConfig, "DEFAULT_ORIGIN is not a valid tag", err)
	}
	if c.Origins.Default == c.Origins.Wildcard {
		return NewAppError(CodeConfig, "DEFAULT_ORIGIN must differ from ORIGIN_WILDCARD", ErrInvalidInput)
	}
	return nil
}
