package core

// execution_limiter.go bounds how many batches execute at once. Each
// execution holds a slot for its whole run; callers that cannot get a slot
// within maxWait fail with ErrTooManyExecutions.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/catalog-import/internal/metrics"
)

// ErrTooManyExecutions is returned when every execution slot stays busy for
// longer than the wait limit.
var ErrTooManyExecutions = errors.New("too many concurrent executions, please try again later")

const (
	DefaultMaxConcurrentExecutions = 4
	DefaultMaxWaitTime             = 30 * time.Second
)

// ExecutionLimiter is a counting semaphore over batch executions.
type ExecutionLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewExecutionLimiter allows maxConcurrent executions at once.
func NewExecutionLimiter(maxConcurrent int, maxWait time.Duration) *ExecutionLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExecutions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ExecutionLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. Every successful Acquire must be paired with
// exactly one Release.
func (l *ExecutionLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.acquired()
		return nil
	case <-timer.C:
		return ErrTooManyExecutions
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *ExecutionLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.acquired()
		return true
	default:
		return false
	}
}

func (l *ExecutionLimiter) acquired() {
	l.active.Add(1)
	metrics.ActiveExecutions.Inc()
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *ExecutionLimiter) Release() {
	l.active.Add(-1)
	metrics.ActiveExecutions.Dec()
	<-l.slots
}

// ActiveCount returns the number of running executions.
func (l *ExecutionLimiter) ActiveCount() int { return int(l.active.Load()) }

// Available returns the number of free slots.
func (l *ExecutionLimiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until no execution is running or ctx ends. Used on
// shutdown so running batches can finish.
func (l *ExecutionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExecutionLimiterStatus is a snapshot of limiter usage.
type ExecutionLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current usage.
func (l *ExecutionLimiter) Status() ExecutionLimiterStatus {
	return ExecutionLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
