// Package config assembles the per-component configuration structs into
// one aggregate, loaded from an optional YAML file overlay then
// environment variables, following the donor's godotenv+defaults+env-
// override+Validate layering (internal/config/config.go's LoadConfig).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/docindex/internal/chunker"
	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/logging"
	"github.com/example/docindex/internal/ratelimiter"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/syncengine"
	"github.com/example/docindex/internal/vectorstore"
)

// ServerConfig holds the HTTP boundary's own settings (spec §5's "HTTP I/O
// at the boundary (out of scope)" — the listener itself is ambient
// plumbing, not a spec'd component).
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int
	WriteTimeout int
}

// LoggingConfig controls the structured logger's verbosity and output
// shape.
type LoggingConfig struct {
	Level  string
	Format string
}

// Config is the application aggregate: one sub-config per component named
// in spec §6, plus the ambient Server/Logging sections.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Embedding   embedding.Config   `yaml:"embedding"`
	RelStore    relstore.Config    `yaml:"relstore"`
	VectorStore vectorstore.Config `yaml:"vectorstore"`
	Engine      syncengine.Config  `yaml:"engine"`
	Chunker     chunker.Config     `yaml:"chunker"`
	RateLimiter ratelimiter.Config `yaml:"ratelimiter"`
}

// DefaultConfig composes each component package's own DefaultConfig.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Embedding:   *embedding.DefaultConfig(),
		RelStore:    *relstore.DefaultConfig(),
		VectorStore: *vectorstore.DefaultConfig(),
		Engine:      *syncengine.DefaultConfig(),
		Chunker:     *chunker.DefaultConfig(),
		RateLimiter: *ratelimiter.DefaultConfig(),
	}
}

// Load builds the effective configuration: defaults, then an optional
// config.yaml overlay, then environment variable overrides, then
// validation — mirroring the donor's LoadConfig but with a YAML layer
// inserted ahead of the env layer (SPEC_FULL.md's domain stack entry for
// gopkg.in/yaml.v3).
func Load(yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := DefaultConfig()

	if yamlPath != "" {
		if err := overlayYAML(cfg, yamlPath); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv overrides cfg in place, delegating each sub-config's override
// to its own package's LoadFromEnv — the donor composes one big
// loadXConfig per section; here each section already owns its override
// logic next to its DefaultConfig.
func loadFromEnv(cfg *Config) {
	loadServerConfig(&cfg.Server)
	loadLoggingConfig(&cfg.Logging)
	embedding.LoadFromEnv(&cfg.Embedding)
	relstore.LoadFromEnv(&cfg.RelStore)
	vectorstore.LoadFromEnv(&cfg.VectorStore)
	syncengine.LoadFromEnv(&cfg.Engine)
	chunker.LoadFromEnv(&cfg.Chunker)
	ratelimiter.LoadFromEnv(&cfg.RateLimiter)
}

func loadServerConfig(s *ServerConfig) {
	s.Host = getStringEnvWithDefault("DOCINDEX_SERVER_HOST", s.Host)
	s.Port = getIntEnvWithDefault("DOCINDEX_SERVER_PORT", s.Port)
	s.ReadTimeout = getIntEnvWithDefault("DOCINDEX_SERVER_READ_TIMEOUT_SECONDS", s.ReadTimeout)
	s.WriteTimeout = getIntEnvWithDefault("DOCINDEX_SERVER_WRITE_TIMEOUT_SECONDS", s.WriteTimeout)
}

func loadLoggingConfig(l *LoggingConfig) {
	l.Level = getStringEnvWithDefault("DOCINDEX_LOG_LEVEL", l.Level)
	l.Format = getStringEnvWithDefault("DOCINDEX_LOG_FORMAT", l.Format)
}

func getStringEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks the aggregate for internally-inconsistent settings the
// individual sub-config loaders don't catch themselves, following the
// donor's Validate's one-function-per-section shape.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return errors.New("server host cannot be empty")
	}
	if c.RelStore.Path == "" {
		return errors.New("relstore path cannot be empty")
	}
	if c.VectorStore.Collection == "" {
		return errors.New("vectorstore collection cannot be empty")
	}
	if c.Embedding.Dimension != c.VectorStore.VectorSize {
		return fmt.Errorf("embedding dimension (%d) must match vectorstore vector size (%d)",
			c.Embedding.Dimension, c.VectorStore.VectorSize)
	}
	if c.Engine.MaxParallelDocs <= 0 {
		return errors.New("engine max parallel docs must be positive")
	}
	if c.Chunker.MaxChunkSize <= 0 {
		return errors.New("chunker max chunk size must be positive")
	}
	return nil
}

// NewLogger builds the process's root logger from LoggingConfig, following
// the donor's level-string-to-LogLevel parsing in logging.ParseLogLevel.
// Output format (json/text) is controlled by the LOG_JSON env var that
// logging.NewLogger itself reads.
func (c *Config) NewLogger() logging.Logger {
	level := logging.ParseLogLevel(c.Logging.Level)
	return logging.NewLogger(level)
}
