package ratelimiter

import (
	"os"
	"strconv"
	"strings"
)

// TierConfig is the serializable form of Tier, per spec §6's RateLimiter
// option: "{tiers: [{name, maxTokens, refillRate, whitelist, priority,
// enabled}]}".
type TierConfig struct {
	Name       string
	MaxTokens  float64
	RefillRate float64
	Whitelist  []string
	Priority   int
	Enabled    bool
}

// RedisConfig carries the optional shared-state backend (SPEC_FULL.md's
// domain-stack wiring for redis/go-redis/v9); when Addr is empty the
// limiter runs fully in-memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config aggregates every tier plus the optional Redis backend.
type Config struct {
	Tiers []TierConfig
	Redis RedisConfig
}

// DefaultConfig returns the three tiers spec §4.9 names by example: global,
// ip, and endpoint classes search/upload/default. Priority order is
// global (checked first, catches systemic overload) then ip then
// endpoint-class, matching the donor's Scope ordering intuition
// (ScopeGlobal before ScopePerIP in its EndpointLimit).
func DefaultConfig() *Config {
	return &Config{
		Tiers: []TierConfig{
			{Name: "global", MaxTokens: 1000, RefillRate: 200, Priority: 0, Enabled: true},
			{Name: "ip", MaxTokens: 60, RefillRate: 1, Priority: 1, Enabled: true, Whitelist: []string{"127.0.0.1", "::1"}},
			{Name: "search", MaxTokens: 30, RefillRate: 0.5, Priority: 2, Enabled: true},
			{Name: "upload", MaxTokens: 10, RefillRate: 0.2, Priority: 2, Enabled: true},
			{Name: "default", MaxTokens: 100, RefillRate: 2, Priority: 2, Enabled: true},
		},
	}
}

// LoadFromEnv overrides the Redis backend address from the environment,
// following the pack's os.Getenv override pattern; per-tier overrides are
// expected to come from a YAML config overlay rather than flat env vars,
// given their nested shape.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DOCINDEX_RATELIMIT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DOCINDEX_RATELIMIT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DOCINDEX_RATELIMIT_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

func (t TierConfig) whitelistSet() map[string]bool {
	set := make(map[string]bool, len(t.Whitelist))
	for _, w := range t.Whitelist {
		set[strings.TrimSpace(w)] = true
	}
	return set
}
