package syncengine

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/logging"
)

// RetryScheduler implements component C6: in-memory, goroutine-per-pending-
// retry scheduling keyed by docId, single-owner per docId (spec §4.6).
// Grounded on internal/retry's delay formula and internal/circuitbreaker's
// timeout-driven half-open pattern, generalized to a per-key scheduler
// instead of a single global retrier.
type RetryScheduler struct {
	mu      sync.Mutex
	pending map[string]*scheduledTask
	logger  logging.Logger
}

type scheduledTask struct {
	timer   *time.Timer
	taskID  string
	attempt int
}

// NewRetryScheduler constructs an empty scheduler.
func NewRetryScheduler(logger logging.Logger) *RetryScheduler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &RetryScheduler{
		pending: make(map[string]*scheduledTask),
		logger:  logger.WithComponent("retry_scheduler"),
	}
}

// delayFor computes spec §4.6's delay for attempt k (1-indexed): min(maxDelay,
// base*factor^(k-1)) * (1 ± rand*jitter).
func delayFor(strategy apperrors.Strategy, attempt int) time.Duration {
	raw := float64(strategy.BaseDelay) * math.Pow(strategy.Factor, float64(attempt-1))
	capped := math.Min(float64(strategy.MaxDelay), raw)
	if strategy.Jitter <= 0 {
		return time.Duration(capped)
	}
	spread := capped * strategy.Jitter
	jittered := capped + (rand.Float64()*2-1)*spread
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// ScheduleRetry schedules runFn to execute after the delay implied by
// strategy and attempt. If a retry is already pending for docId, it is
// replaced (single-owner semantics per spec §4.6).
func (s *RetryScheduler) ScheduleRetry(docID string, strategy apperrors.Strategy, attempt int, runFn func()) {
	delay := delayFor(strategy, attempt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[docID]; ok {
		existing.timer.Stop()
		delete(s.pending, docID)
	}

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, docID)
		s.mu.Unlock()
		runFn()
	})

	s.pending[docID] = &scheduledTask{timer: timer, attempt: attempt}
	s.logger.Debug("scheduled retry", "doc_id", docID, "attempt", attempt, "delay", delay.String())
}

// CancelAllFor cancels any pending (not in-flight) retry for docID,
// returning the count removed (0 or 1 — the scheduler holds at most one
// pending task per docId).
func (s *RetryScheduler) CancelAllFor(docID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.pending[docID]
	if !ok {
		return 0
	}
	task.timer.Stop()
	delete(s.pending, docID)
	return 1
}

// ActiveCount returns the number of docIds with a pending retry.
func (s *RetryScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stats reports scheduler-internal counts for tests/observability.
func (s *RetryScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{ScheduledCount: len(s.pending)}
}
