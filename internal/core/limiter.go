package core

// limiter.go implements the slot limiter guarding the parse worker.
//
// The limiter uses a semaphore pattern. The parse worker is created with a
// single slot so only one parse is ever outstanding. Interactive uploads use
// TryAcquire and fail fast with ErrParseInFlight; the inbox watcher uses
// Acquire and waits up to maxWait for the running parse to finish.
//
// WaitForDrain lets shutdown block until the outstanding parse completes.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxWaitTime is how long Acquire waits for a slot before giving up.
const DefaultMaxWaitTime = 30 * time.Second

// SlotLimiter bounds concurrent work using a semaphore.
type SlotLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewSlotLimiter creates a limiter with the given number of slots.
// Non-positive values fall back to one slot and DefaultMaxWaitTime.
func NewSlotLimiter(slots int, maxWait time.Duration) *SlotLimiter {
	if slots <= 0 {
		slots = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &SlotLimiter{
		semaphore: make(chan struct{}, slots),
		maxWait:   maxWait,
	}
}

// Acquire waits for a slot. It returns ErrParseInFlight if no slot frees up
// within maxWait, or the context error if ctx ends first.
// The caller MUST call Release when done.
func (l *SlotLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrParseInFlight
	}
}

// TryAcquire takes a slot without blocking.
func (l *SlotLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *SlotLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of held slots.
func (l *SlotLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Slots returns the limiter capacity.
func (l *SlotLimiter) Slots() int {
	return cap(l.semaphore)
}

// WaitForDrain blocks until no slot is held or ctx ends.
func (l *SlotLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
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
