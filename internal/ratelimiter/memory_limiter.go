package ratelimiter

import (
	"sort"
	"sync"
	"time"

	"github.com/example/docindex/internal/logging"
)

// MemoryLimiter implements Limiter with per-process in-memory buckets, all
// guarded by a single limiter-wide mutex — grounded on the donor's
// SlidingWindow's map[string]*Window + sync.RWMutex shape, adapted to
// continuous-refill token buckets.
type MemoryLimiter struct {
	mu     sync.Mutex
	tiers  []Tier
	keyed  map[string]map[string]*bucket // tier name -> key -> bucket
	logger logging.Logger
}

// NewMemoryLimiter builds a limiter from cfg's tiers, checked in priority
// order (spec §4.9: "consume 1 token from each applicable tier in
// priority order").
func NewMemoryLimiter(cfg *Config, logger logging.Logger) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	tiers := make([]Tier, 0, len(cfg.Tiers))
	keyed := make(map[string]map[string]*bucket, len(cfg.Tiers))
	for _, tc := range cfg.Tiers {
		tiers = append(tiers, Tier{
			Name:       tc.Name,
			MaxTokens:  tc.MaxTokens,
			RefillRate: tc.RefillRate,
			Whitelist:  tc.whitelistSet(),
			Priority:   tc.Priority,
			Enabled:    tc.Enabled,
		})
		keyed[tc.Name] = make(map[string]*bucket)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Priority < tiers[j].Priority })

	return &MemoryLimiter{tiers: tiers, keyed: keyed, logger: logger.WithComponent("ratelimiter")}
}

// applicableTiers returns the tiers a request participates in: the
// "global" tier always applies; "ip" applies to every request; an
// endpoint-class tier applies only when its name matches req.EndpointClass,
// falling back to "default" if no specific tier is configured for it.
func (l *MemoryLimiter) applicableTiers(req Request) []Tier {
	var out []Tier
	haveClassTier := false
	for _, t := range l.tiers {
		switch t.Name {
		case "global", "ip":
			out = append(out, t)
		default:
			if t.Name == req.EndpointClass {
				out = append(out, t)
				haveClassTier = true
			}
		}
	}
	if !haveClassTier {
		for _, t := range l.tiers {
			if t.Name == "default" {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func keyFor(tierName string, req Request) string {
	switch tierName {
	case "global":
		return "global"
	case "ip":
		return req.IP
	default:
		return req.IP
	}
}

// Allow implements spec §4.9's per-request admission check.
func (l *MemoryLimiter) Allow(req Request) (Decision, error) {
	now := time.Now()
	tiers := l.applicableTiers(req)

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range tiers {
		if !t.Enabled {
			continue
		}
		key := keyFor(t.Name, req)
		if t.Whitelist[key] {
			continue
		}

		tierBuckets := l.keyed[t.Name]
		if tierBuckets == nil {
			tierBuckets = make(map[string]*bucket)
			l.keyed[t.Name] = tierBuckets
		}
		b, ok := tierBuckets[key]
		if !ok {
			b = &bucket{}
			tierBuckets[key] = b
		}

		allowed, retryAfter := b.tryConsume(now, t.MaxTokens, t.RefillRate)
		if !allowed {
			return Decision{Allowed: false, RejectedTier: t.Name, RetryAfter: retryAfter}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

// Reset clears the bucket for (tier, key), per spec §4.9: "Reset clears
// tokens for a given (tier, key) and emits a reset event."
func (l *MemoryLimiter) Reset(tier, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tierBuckets, ok := l.keyed[tier]; ok {
		delete(tierBuckets, key)
	}
	l.logger.Info("rate limit bucket reset", "tier", tier, "key", key)
	return nil
}
