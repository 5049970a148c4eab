package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return load(true)
}

// LoadOffline is Load for commands that only read spreadsheets: the
// database settings are loaded when present but DATABASE_URL may be unset.
func LoadOffline() (*Config, error) {
	return load(false)
}

func load(needDatabase bool) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), needDatabase); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.validate(needDatabase); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config populated only from tag defaults, ignoring the
// environment. Required fields are left empty and validation is skipped.
// Library callers and tests use it as a starting point.
func Defaults() *Config {
	cfg := &Config{}
	_ = loadDefaults(reflect.ValueOf(cfg).Elem())
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value, enforceRequired bool) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, enforceRequired); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required && enforceRequired {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// loadDefaults applies only the default tags.
func loadDefaults(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadDefaults(fieldVal); err != nil {
				return err
			}
			continue
		}
		if def := field.Tag.Get("default"); def != "" {
			if err := setField(fieldVal, def); err != nil {
				return fmt.Errorf("default for %s: %w", field.Name, err)
			}
		}
	}
	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(needDatabase bool) error {
	var errs []string

	// Database
	if needDatabase && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlserver", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER (%q) must be one of: postgres, sqlserver, sqlite", c.Database.Driver))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MetadataCacheSize <= 0 {
		errs = append(errs, "SERVER_METADATA_CACHE_SIZE must be positive")
	}

	// Source
	if c.Source.MaxFileSize <= 0 {
		errs = append(errs, "SOURCE_MAX_FILE_SIZE must be positive")
	}
	if c.Source.MaxRows <= 0 {
		errs = append(errs, "SOURCE_MAX_ROWS must be positive")
	}

	errs = append(errs, c.Pipeline.validate()...)

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p *PipelineConfig) validate() []string {
	var errs []string

	if p.InferenceThreshold <= 0 || p.InferenceThreshold > 1 {
		errs = append(errs, "INFERENCE_THRESHOLD must be in (0, 1]")
	}
	if p.InferenceSample < 0 {
		errs = append(errs, "INFERENCE_SAMPLE_SIZE must be non-negative")
	}
	if p.FuzzyThreshold <= 0 || p.FuzzyThreshold > 100 {
		errs = append(errs, "FUZZY_MATCH_THRESHOLD must be in (0, 100]")
	}
	if p.HighThreshold < p.FuzzyThreshold || p.HighThreshold > 100 {
		errs = append(errs, fmt.Sprintf("FUZZY_HIGH_THRESHOLD (%.0f) must be between FUZZY_MATCH_THRESHOLD (%.0f) and 100",
			p.HighThreshold, p.FuzzyThreshold))
	}
	switch p.MatchStrategy {
	case "greedy", "optimal":
	default:
		errs = append(errs, fmt.Sprintf("MATCH_STRATEGY (%q) must be one of: greedy, optimal", p.MatchStrategy))
	}
	if p.MinApplyConfidence < 0 || p.MinApplyConfidence > 1 {
		errs = append(errs, "MIN_APPLY_CONFIDENCE must be in [0, 1]")
	}
	if p.MaxErrorRate < 0 || p.MaxErrorRate > 1 {
		errs = append(errs, "MAX_ERROR_RATE must be in [0, 1]")
	}
	switch p.OverlapPolicy {
	case "keep_all", "most_severe":
	default:
		errs = append(errs, fmt.Sprintf("VALIDATION_OVERLAP (%q) must be one of: keep_all, most_severe", p.OverlapPolicy))
	}
	if p.DedupBatchSize <= 0 {
		errs = append(errs, "DEDUP_BATCH_SIZE must be positive")
	}
	if p.DedupMaxRows <= 0 {
		errs = append(errs, "DEDUP_MAX_ROWS must be positive")
	}
	if p.DedupWorkers <= 0 {
		errs = append(errs, "DEDUP_WORKERS must be positive")
	}
	switch p.DedupStrategy {
	case "per_row", "batched":
	default:
		errs = append(errs, fmt.Sprintf("DEDUP_STRATEGY (%q) must be one of: per_row, batched", p.DedupStrategy))
	}
	switch p.KeepPolicy {
	case "first", "last", "none":
	default:
		errs = append(errs, fmt.Sprintf("DEDUP_KEEP (%q) must be one of: first, last, none", p.KeepPolicy))
	}
	if p.Timeout <= 0 {
		errs = append(errs, "PIPELINE_TIMEOUT must be positive")
	}
	if p.MaxConcurrent <= 0 {
		errs = append(errs, "PIPELINE_MAX_CONCURRENT must be positive")
	}
	if p.MaxWait <= 0 {
		errs = append(errs, "PIPELINE_MAX_WAIT must be positive")
	}

	return errs
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, APIKeys: %d configured}, ",
		c.Server.Host, c.Server.Port, len(c.Server.APIKeys))
	fmt.Fprintf(&b, "Database: {Driver: %q, URL: [MASKED], MaxConns: %d}, ",
		c.Database.Driver, c.Database.MaxConns)
	fmt.Fprintf(&b, "Source: {MaxFileSize: %d, MaxRows: %d}, ", c.Source.MaxFileSize, c.Source.MaxRows)
	fmt.Fprintf(&b, "Pipeline: {Fuzzy: %.0f/%.0f, Strategy: %q, MaxErrorRate: %.2f, Dedup: %s x%d}, ",
		c.Pipeline.FuzzyThreshold, c.Pipeline.HighThreshold, c.Pipeline.MatchStrategy,
		c.Pipeline.MaxErrorRate, c.Pipeline.DedupStrategy, c.Pipeline.DedupWorkers)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
