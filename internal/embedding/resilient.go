package embedding

import (
	"context"

	"github.com/example/docindex/internal/circuitbreaker"
	"github.com/example/docindex/internal/logging"
)

// ResilientClient layers caching and circuit-breaking around an inner
// Client, mirroring the donor's openai.go → retry_wrapper.go →
// circuit_breaker_wrapper.go composition chain.
type ResilientClient struct {
	inner   Client
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	logger  logging.Logger
}

// NewDefaultClient builds the fully wrapped embedding client: HTTPClient
// wrapped with an LRU+TTL cache and a circuit breaker.
func NewDefaultClient(cfg *Config, logger logging.Logger) *ResilientClient {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return NewResilientClient(NewHTTPClient(cfg, logger), cfg, logger)
}

// NewResilientClient wraps an arbitrary Client (useful for tests with a
// fake inner client).
func NewResilientClient(inner Client, cfg *Config, logger logging.Logger) *ResilientClient {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &ResilientClient{
		inner:   inner,
		cache:   NewCache(cfg.CacheSize, cfg.CacheTTL),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:  logger.WithComponent("embedding"),
	}
}

func (c *ResilientClient) Dimension() int { return c.inner.Dimension() }
func (c *ResilientClient) Model() string  { return c.inner.Model() }

// Embed resolves as many texts as possible from cache, calls the inner
// client (behind the circuit breaker) for the remainder, and populates the
// cache with freshly computed vectors before returning results in the
// caller's original order.
func (c *ResilientClient) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.inner.Model()
	out := make([]Vector, len(texts))
	var misses []string
	var missIdx []int

	for i, t := range texts {
		if v, ok := c.cache.Get(model, t); ok {
			out[i] = v
			continue
		}
		misses = append(misses, t)
		missIdx = append(missIdx, i)
	}

	if len(misses) == 0 {
		return out, nil
	}

	var fetched []Vector
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := c.inner.Embed(ctx, misses)
		if err != nil {
			return err
		}
		fetched = v
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding call rejected or failed", "error", err.Error())
		return nil, err
	}

	for j, idx := range missIdx {
		out[idx] = fetched[j]
		c.cache.Set(model, misses[j], fetched[j])
	}
	return out, nil
}

func (c *ResilientClient) HealthCheck(ctx context.Context) error {
	return c.breaker.Execute(ctx, c.inner.HealthCheck)
}

// CacheStats exposes the embedding cache's hit/miss counters for
// observability endpoints.
func (c *ResilientClient) CacheStats() Stats { return c.cache.Stats() }

// CircuitStats exposes the breaker's counters.
func (c *ResilientClient) CircuitStats() circuitbreaker.Stats { return c.breaker.GetStats() }
