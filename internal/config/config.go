package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full runtime configuration of the copier.
type Config struct {
	Source  DBConfig
	Target  DBConfig
	Copy    CopyConfig
	Log     LogConfig
	Metrics MetricsConfig

	// BatchFile is the YAML job file to execute.
	BatchFile string
}

// DBConfig holds connection parameters for one database.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// CopyConfig holds tunables of the copy engine.
type CopyConfig struct {
	// Workers is the size of the per-table worker pool.
	Workers int
	// RowsForInsert is how many decoded rows are flushed per batched insert.
	RowsForInsert int
	// RowsForSelect caps how many rows a single chunk SELECT may request.
	RowsForSelect int
	// QueryTimeout bounds each query/insert call. Zero means no timeout.
	QueryTimeout time.Duration
}

type LogConfig struct {
	Format string
	Level  string
}

type MetricsConfig struct {
	Enabled bool
	Address string
}

// DSN renders the connection string in keyword/value form.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s",
		d.Host, d.Port, d.Database, d.User, d.Password)
}

// Addr returns host:port for logging, without credentials.
func (d DBConfig) Addr() string {
	return d.Host + ":" + d.Port
}

// MustLoad reads configuration from the environment, applying defaults.
// The target defaults to port 5555 so a local throwaway database can run
// next to a default source install.
func MustLoad() Config {
	return Config{
		Source: DBConfig{
			Host:     getenvDefault("SOURCE_DB_HOST", "localhost"),
			Port:     getenvDefault("SOURCE_DB_PORT", "5432"),
			User:     getenvDefault("SOURCE_DB_USER", "postgres"),
			Password: os.Getenv("SOURCE_DB_PASS"),
			Database: getenvDefault("SOURCE_DB_DATABASE", "postgres"),
		},
		Target: DBConfig{
			Host:     getenvDefault("TARGET_DB_HOST", "localhost"),
			Port:     getenvDefault("TARGET_DB_PORT", "5555"),
			User:     getenvDefault("TARGET_DB_USER", "postgres"),
			Password: os.Getenv("TARGET_DB_PASS"),
			Database: getenvDefault("TARGET_DB_DATABASE", "postgres"),
		},
		Copy: CopyConfig{
			Workers:       parseIntDefault("MAX_WORKERS", 8),
			RowsForInsert: parseIntDefault("ROWS_FOR_INSERT", 1000),
			RowsForSelect: parseIntDefault("ROWS_FOR_SELECT", 10000),
			QueryTimeout:  time.Duration(parseIntDefault("QUERY_TIMEOUT_SECONDS", 0)) * time.Second,
		},
		Log: LogConfig{
			Format: getenvDefault("LOG_FORMAT", "text"),
			Level:  getenvDefault("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Enabled: os.Getenv("METRICS_ENABLED") == "true",
			Address: getenvDefault("METRICS_ADDR", ":9090"),
		},
		BatchFile: os.Getenv("BATCH_FILENAME"),
	}
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}
