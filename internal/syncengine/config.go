package syncengine

import (
	"os"
	"strconv"
	"time"

	"github.com/example/docindex/internal/apperrors"
)

// Config carries the Engine sub-config from spec §6: "Engine:
// {maxParallelDocs, defaultRetry {maxRetries, baseDelayMs, maxDelayMs,
// factor, jitter}, cleanupAfterHours, jobRetentionDays}."
type Config struct {
	MaxParallelDocs  int
	DefaultRetry     apperrors.Strategy
	CleanupAfterHours int
	JobRetentionDays int
	CleanupInterval  time.Duration
	StepTimeout      time.Duration
}

// DefaultConfig mirrors spec §5's "configurable parallelism P, default
// small, e.g., 4" and fills DefaultRetry with the NETWORK/TIMEOUT retry row.
// Engine does not read DefaultRetry: retry policies come from
// apperrors.GetStrategy for the failure's category.
func DefaultConfig() *Config {
	return &Config{
		MaxParallelDocs:   4,
		DefaultRetry:      apperrors.GetStrategy(apperrors.CategoryNetwork),
		CleanupAfterHours: 24,
		JobRetentionDays:  30,
		CleanupInterval:   time.Hour,
		StepTimeout:       30 * time.Second,
	}
}

// LoadFromEnv overrides cfg in place, following the pack's getEnvInt/
// os.Getenv override pattern.
func LoadFromEnv(cfg *Config) {
	cfg.MaxParallelDocs = getEnvInt("DOCINDEX_ENGINE_MAX_PARALLEL_DOCS", cfg.MaxParallelDocs)
	cfg.CleanupAfterHours = getEnvInt("DOCINDEX_ENGINE_CLEANUP_AFTER_HOURS", cfg.CleanupAfterHours)
	cfg.JobRetentionDays = getEnvInt("DOCINDEX_ENGINE_JOB_RETENTION_DAYS", cfg.JobRetentionDays)
	if ms := getEnvInt("DOCINDEX_ENGINE_STEP_TIMEOUT_MS", 0); ms > 0 {
		cfg.StepTimeout = time.Duration(ms) * time.Millisecond
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
