package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docindex/internal/logging"
)

func newTestConfig() *Config {
	return &Config{
		Tiers: []TierConfig{
			{Name: "global", MaxTokens: 100, RefillRate: 1000, Priority: 0, Enabled: true},
			{Name: "ip", MaxTokens: 10, RefillRate: 1, Priority: 1, Enabled: true, Whitelist: []string{"10.0.0.1"}},
			{Name: "search", MaxTokens: 1, RefillRate: 0.001, Priority: 2, Enabled: true},
			{Name: "default", MaxTokens: 3, RefillRate: 0.001, Priority: 2, Enabled: true},
		},
	}
}

func TestMemoryLimiter_AllowsUpToMaxTokensThenRejects(t *testing.T) {
	l := NewMemoryLimiter(newTestConfig(), logging.NewNoOpLogger())
	req := Request{IP: "1.2.3.4", EndpointClass: "search"}

	d1, err := l.Allow(req)
	require.NoError(t, err)
	assert.True(t, d1.Allowed)

	d2, err := l.Allow(req)
	require.NoError(t, err)
	assert.False(t, d2.Allowed)
	assert.Equal(t, "search", d2.RejectedTier)
	assert.Greater(t, d2.RetryAfter, time.Duration(0))
}

func TestMemoryLimiter_FallsBackToDefaultTierForUnknownEndpointClass(t *testing.T) {
	l := NewMemoryLimiter(newTestConfig(), logging.NewNoOpLogger())
	req := Request{IP: "1.2.3.4", EndpointClass: "unknown-class"}

	for i := 0; i < 3; i++ {
		d, err := l.Allow(req)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d should be allowed by default tier", i)
	}

	d, err := l.Allow(req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "default", d.RejectedTier)
}

func TestMemoryLimiter_WhitelistBypassesTier(t *testing.T) {
	cfg := &Config{
		Tiers: []TierConfig{
			{Name: "ip", MaxTokens: 2, RefillRate: 0.001, Priority: 1, Enabled: true, Whitelist: []string{"10.0.0.1"}},
		},
	}
	l := NewMemoryLimiter(cfg, logging.NewNoOpLogger())
	req := Request{IP: "10.0.0.1", EndpointClass: "search"}

	for i := 0; i < 5; i++ {
		d, err := l.Allow(req)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "whitelisted ip should never be rejected by the ip tier")
	}
}

func TestMemoryLimiter_HigherPriorityTierRejectsFirst(t *testing.T) {
	cfg := &Config{
		Tiers: []TierConfig{
			{Name: "global", MaxTokens: 1, RefillRate: 0.001, Priority: 0, Enabled: true},
			{Name: "ip", MaxTokens: 100, RefillRate: 1000, Priority: 1, Enabled: true},
		},
	}
	l := NewMemoryLimiter(cfg, logging.NewNoOpLogger())
	req := Request{IP: "1.2.3.4", EndpointClass: "search"}

	d1, err := l.Allow(req)
	require.NoError(t, err)
	assert.True(t, d1.Allowed)

	d2, err := l.Allow(req)
	require.NoError(t, err)
	assert.False(t, d2.Allowed)
	assert.Equal(t, "global", d2.RejectedTier)
}

func TestMemoryLimiter_RefillsOverTime(t *testing.T) {
	cfg := &Config{
		Tiers: []TierConfig{
			{Name: "global", MaxTokens: 100, RefillRate: 1000, Priority: 0, Enabled: true},
			{Name: "ip", MaxTokens: 1, RefillRate: 50, Priority: 1, Enabled: true},
		},
	}
	l := NewMemoryLimiter(cfg, logging.NewNoOpLogger())
	req := Request{IP: "1.2.3.4"}

	d1, err := l.Allow(req)
	require.NoError(t, err)
	assert.True(t, d1.Allowed)

	d2, err := l.Allow(req)
	require.NoError(t, err)
	assert.False(t, d2.Allowed)

	require.Eventually(t, func() bool {
		d, err := l.Allow(req)
		return err == nil && d.Allowed
	}, time.Second, 10*time.Millisecond, "bucket should refill and allow again")
}

func TestMemoryLimiter_Reset(t *testing.T) {
	l := NewMemoryLimiter(newTestConfig(), logging.NewNoOpLogger())
	req := Request{IP: "1.2.3.4", EndpointClass: "search"}

	_, err := l.Allow(req)
	require.NoError(t, err)
	d, err := l.Allow(req)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.NoError(t, l.Reset("search", "1.2.3.4"))

	d, err = l.Allow(req)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "reset should clear the bucket so the next request is allowed")
}

func TestMemoryLimiter_ResetUnknownTierIsNoop(t *testing.T) {
	l := NewMemoryLimiter(newTestConfig(), logging.NewNoOpLogger())
	assert.NoError(t, l.Reset("nonexistent", "1.2.3.4"))
}

func TestDeltaFor_DisabledTierIsSkipped(t *testing.T) {
	cfg := &Config{
		Tiers: []TierConfig{
			{Name: "global", MaxTokens: 0, RefillRate: 0, Priority: 0, Enabled: false},
			{Name: "ip", MaxTokens: 5, RefillRate: 1000, Priority: 1, Enabled: true},
		},
	}
	l := NewMemoryLimiter(cfg, logging.NewNoOpLogger())
	req := Request{IP: "1.2.3.4"}

	d, err := l.Allow(req)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "disabled tier with zero tokens must not block requests")
}
