package syncengine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docindex/internal/apperrors"
)

func TestDelayFor_ExponentialWithCapAndNoJitter(t *testing.T) {
	strategy := apperrors.Strategy{MaxRetries: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Factor: 2.0, Jitter: 0}

	assert.Equal(t, 10*time.Millisecond, delayFor(strategy, 1))
	assert.Equal(t, 20*time.Millisecond, delayFor(strategy, 2))
	assert.Equal(t, 40*time.Millisecond, delayFor(strategy, 3))
	assert.Equal(t, 80*time.Millisecond, delayFor(strategy, 4))
	assert.Equal(t, 100*time.Millisecond, delayFor(strategy, 5)) // capped at maxDelay
}

func TestScheduleRetry_FiresRunFnAfterDelay(t *testing.T) {
	s := NewRetryScheduler(nil)
	strategy := apperrors.Strategy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Factor: 2, Jitter: 0}

	var fired int32
	s.ScheduleRetry("doc-1", strategy, 1, func() { atomic.AddInt32(&fired, 1) })

	assert.Equal(t, 1, s.ActiveCount())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.ActiveCount())
}

func TestScheduleRetry_ReplacesPendingTaskForSameDoc(t *testing.T) {
	s := NewRetryScheduler(nil)
	strategy := apperrors.Strategy{MaxRetries: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second, Factor: 2, Jitter: 0}

	var firstFired, secondFired int32
	s.ScheduleRetry("doc-1", strategy, 1, func() { atomic.AddInt32(&firstFired, 1) })
	s.ScheduleRetry("doc-1", apperrors.Strategy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1, Jitter: 0}, 1, func() { atomic.AddInt32(&secondFired, 1) })

	require.Eventually(t, func() bool { return atomic.LoadInt32(&secondFired) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&firstFired), "replaced task must not fire")
}

func TestCancelAllFor_RemovesPendingTask(t *testing.T) {
	s := NewRetryScheduler(nil)
	strategy := apperrors.Strategy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Factor: 2, Jitter: 0}

	var fired int32
	s.ScheduleRetry("doc-1", strategy, 1, func() { atomic.AddInt32(&fired, 1) })

	removed := s.CancelAllFor("doc-1")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, s.ActiveCount())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCancelAllFor_NoPendingTaskReturnsZero(t *testing.T) {
	s := NewRetryScheduler(nil)
	assert.Equal(t, 0, s.CancelAllFor("unknown-doc"))
}
