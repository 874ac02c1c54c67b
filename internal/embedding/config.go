package embedding

import (
	"os"
	"strconv"
	"time"
)

// Config recognizes the options enumerated in spec §6: "Embedding:
// {baseUrl, apiKey, model, batchSize (default 200), dimension (default
// 1536), timeoutMs, maxInFlight}."
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	BatchSize   int
	Dimension   int
	Timeout     time.Duration
	MaxInFlight int

	CacheSize int
	CacheTTL  time.Duration
}

// DefaultConfig applies spec-mandated defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1/embeddings",
		Model:       "text-embedding-3-small",
		BatchSize:   200,
		Dimension:   1536,
		Timeout:     30 * time.Second,
		MaxInFlight: 4,
		CacheSize:   1000,
		CacheTTL:    24 * time.Hour,
	}
}

// LoadFromEnv overrides cfg in place, following the donor's env-override
// pattern (internal/config/config.go's loadOpenAIConfig).
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DOCINDEX_EMBEDDING_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DOCINDEX_EMBEDDING_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DOCINDEX_EMBEDDING_MODEL"); v != "" {
		cfg.Model = v
	}
	cfg.BatchSize = getEnvInt("DOCINDEX_EMBEDDING_BATCH_SIZE", cfg.BatchSize)
	cfg.Dimension = getEnvInt("DOCINDEX_EMBEDDING_DIMENSION", cfg.Dimension)
	cfg.MaxInFlight = getEnvInt("DOCINDEX_EMBEDDING_MAX_IN_FLIGHT", cfg.MaxInFlight)
	if ms := getEnvInt("DOCINDEX_EMBEDDING_TIMEOUT_MS", 0); ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}
