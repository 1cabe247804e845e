package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vendorlens/reconciler/internal/common"
)

const configPathEnv = "RECONCILER_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Export     ExportConfig     `yaml:"export"`
	LogLevel   string           `yaml:"logLevel"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
}

// ExtractionConfig defines how to contact the document analysis provider.
type ExtractionConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MockMode    bool          `yaml:"mockMode"`
}

// JobsConfig tunes the async job engine and processing workers.
type JobsConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queueSize"`
	ProcessTimeout time.Duration `yaml:"processTimeout"`
	RetentionTTL   time.Duration `yaml:"retentionTtl"`
}

// ExportConfig bounds bulk export jobs.
type ExportConfig struct {
	MaxRecords   int `yaml:"maxRecords"`
	DefaultChunk int `yaml:"defaultChunk"`
	MaxChunk     int `yaml:"maxChunk"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() *Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			var fileCfg Config
			if yaml.Unmarshal(raw, &fileCfg) == nil {
				cfg = merge(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return &cfg
}

func (c *Config) applyEnvOverrides() {
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Extraction.BaseURL = getEnv("OPENAI_BASE_URL", c.Extraction.BaseURL)
	c.Extraction.APIKey = getEnv("OPENAI_API_KEY", c.Extraction.APIKey)
	c.Extraction.Model = getEnv("OPENAI_MODEL", c.Extraction.Model)
	c.Extraction.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.Extraction.Temperature)
	c.Extraction.MaxTokens = getEnvAsInt("OPENAI_MAX_TOKENS", c.Extraction.MaxTokens)
	c.Extraction.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.Extraction.Timeout)
	c.Extraction.MockMode = getEnvAsBool("EXTRACTION_MOCK_MODE", c.Extraction.MockMode)
	c.Jobs.Workers = getEnvAsInt("JOB_WORKERS", c.Jobs.Workers)
	c.Jobs.ProcessTimeout = getEnvAsDuration("JOB_PROCESS_TIMEOUT", c.Jobs.ProcessTimeout)
	c.Export.MaxRecords = getEnvAsInt("EXPORT_MAX_RECORDS", c.Export.MaxRecords)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return common.NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", common.ErrValidation)
	}
	if !c.Extraction.MockMode && c.Extraction.APIKey == "" {
		return common.NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required outside mock mode", common.ErrValidation)
	}
	if c.Export.MaxRecords <= 0 {
		return common.NewAppError("CONFIG_ERROR", "export maxRecords must be positive", common.ErrValidation)
	}
	return nil
}

func merge(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ShutdownTimeout > 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = override.Server.AllowedOrigins
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.MaxConns > 0 {
		base.Database.MaxConns = override.Database.MaxConns
	}
	if override.Database.MinConns > 0 {
		base.Database.MinConns = override.Database.MinConns
	}
	if override.Database.MaxConnLifetime > 0 {
		base.Database.MaxConnLifetime = override.Database.MaxConnLifetime
	}
	if override.Database.MaxConnIdleTime > 0 {
		base.Database.MaxConnIdleTime = override.Database.MaxConnIdleTime
	}
	if override.Database.DialTimeout > 0 {
		base.Database.DialTimeout = override.Database.DialTimeout
	}
	if override.Extraction.BaseURL != "" {
		base.Extraction.BaseURL = override.Extraction.BaseURL
	}
	if override.Extraction.Model != "" {
		base.Extraction.Model = override.Extraction.Model
	}
	if override.Extraction.APIKey != "" {
		base.Extraction.APIKey = override.Extraction.APIKey
	}
	if override.Extraction.MaxTokens > 0 {
		base.Extraction.MaxTokens = override.Extraction.MaxTokens
	}
	if override.Extraction.Timeout > 0 {
		base.Extraction.Timeout = override.Extraction.Timeout
	}
	if override.Extraction.MockMode {
		base.Extraction.MockMode = true
	}
	if override.Jobs.Workers > 0 {
		base.Jobs.Workers = override.Jobs.Workers
	}
	if override.Jobs.QueueSize > 0 {
		base.Jobs.QueueSize = override.Jobs.QueueSize
	}
	if override.Jobs.ProcessTimeout > 0 {
		base.Jobs.ProcessTimeout = override.Jobs.ProcessTimeout
	}
	if override.Jobs.RetentionTTL > 0 {
		base.Jobs.RetentionTTL = override.Jobs.RetentionTTL
	}
	if override.Export.MaxRecords > 0 {
		base.Export.MaxRecords = override.Export.MaxRecords
	}
	if override.Export.DefaultChunk > 0 {
		base.Export.DefaultChunk = override.Export.DefaultChunk
	}
	if override.Export.MaxChunk > 0 {
		base.Export.MaxChunk = override.Export.MaxChunk
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Extraction: ExtractionConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.0,
			MaxTokens:   4096,
			Timeout:     45 * time.Second,
		},
		Jobs: JobsConfig{
			Workers:        4,
			QueueSize:      256,
			ProcessTimeout: 3 * time.Minute,
			RetentionTTL:   time.Hour,
		},
		Export: ExportConfig{
			MaxRecords:   10000,
			DefaultChunk: 200,
			MaxChunk:     1000,
		},
		LogLevel: "info",
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
