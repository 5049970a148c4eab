// Package config provides centralized configuration for sheetload.
// Every setting is read from an environment variable with a default, and the
// whole struct is validated on startup so a bad threshold fails fast instead of
// silently skewing a mapping run.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Source   SourceConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP API settings for `sheetload serve`.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MetadataCacheSize is the number of destination tables whose column
	// snapshots are kept in memory between requests.
	MetadataCacheSize int `env:"SERVER_METADATA_CACHE_SIZE" default:"128"`

	// APIKeys enables X-API-Key authentication on /api when non-empty.
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES" default:"127.0.0.1/32,::1/128"`
}

// DatabaseConfig holds destination database settings.
type DatabaseConfig struct {
	// Driver selects the catalog implementation: postgres, sqlserver or sqlite.
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the driver-specific connection string (required).
	// Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// SourceConfig holds spreadsheet reading settings.
type SourceConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"SOURCE_MAX_FILE_SIZE" default:"52428800"`

	// MaxRows caps rows read from a single sheet (default: 100000)
	MaxRows int `env:"SOURCE_MAX_ROWS" default:"100000"`

	// S3 settings used for s3://bucket/key paths.
	S3Region       string `env:"SOURCE_S3_REGION" envAlt:"AWS_REGION"`
	S3Endpoint     string `env:"SOURCE_S3_ENDPOINT"`
	S3UsePathStyle bool   `env:"SOURCE_S3_PATH_STYLE" default:"false"`
}

// PipelineConfig holds the thresholds and limits for a mapping run.
type PipelineConfig struct {
	// InferenceThreshold is the share of non-null values the winning type
	// bucket must cover; below it a column is treated as STRING.
	InferenceThreshold float64 `env:"INFERENCE_THRESHOLD" default:"0.6"`
	InferenceSample    int     `env:"INFERENCE_SAMPLE_SIZE" default:"0"`

	FuzzyThreshold float64 `env:"FUZZY_MATCH_THRESHOLD" default:"70"`
	HighThreshold  float64 `env:"FUZZY_HIGH_THRESHOLD" default:"85"`

	// MatchStrategy is greedy (first column wins) or optimal (global assignment).
	MatchStrategy string `env:"MATCH_STRATEGY" default:"greedy"`

	// MinApplyConfidence is the confidence a mapping needs before its column
	// is renamed into the destination table.
	MinApplyConfidence float64 `env:"MIN_APPLY_CONFIDENCE" default:"0.5"`

	MaxErrorRate  float64 `env:"MAX_ERROR_RATE" default:"0.1"`
	OverlapPolicy string  `env:"VALIDATION_OVERLAP" default:"keep_all"`

	DedupBatchSize int    `env:"DEDUP_BATCH_SIZE" envAlt:"EXCEL_MAX_ROWS_PER_BATCH" default:"100"`
	DedupMaxRows   int    `env:"DEDUP_MAX_ROWS" default:"10000"`
	DedupWorkers   int    `env:"DEDUP_WORKERS" default:"1"`
	DedupStrategy  string `env:"DEDUP_STRATEGY" default:"per_row"`
	KeepPolicy     string `env:"DEDUP_KEEP" default:"first"`

	// Timeout bounds a whole pipeline call.
	Timeout time.Duration `env:"PIPELINE_TIMEOUT" default:"5m"`

	// MaxConcurrent and MaxWait bound parallel runs in the API.
	MaxConcurrent int           `env:"PIPELINE_MAX_CONCURRENT" default:"4"`
	MaxWait       time.Duration `env:"PIPELINE_MAX_WAIT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
