package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for request rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed right now
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// RequestLimiter is a token-bucket limiter for outbound HTTP requests
type RequestLimiter struct {
	limiter *rate.Limiter
}

// NewRequestLimiter allows perSecond requests with the given burst
func NewRequestLimiter(perSecond float64, burst int) *RequestLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RequestLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Unlimited returns a limiter that never blocks
func Unlimited() *RequestLimiter {
	return &RequestLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
}

func (r *RequestLimiter) Allow() bool {
	return r.limiter.Allow()
}

func (r *RequestLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Batch is a fixed-window issuance throttle: after every size issued items
// it pauses before the next one. It counts issued items only and ignores
// whether earlier items have finished.
type Batch struct {
	size  int
	pause time.Duration

	mu     sync.Mutex
	issued int
	pauses int
}

// NewBatch creates a throttle pausing for pause after every size items.
// A non-positive size disables throttling.
func NewBatch(size int, pause time.Duration) *Batch {
	return &Batch{size: size, pause: pause}
}

// Issued records one issued item and pauses when the window is full.
func (b *Batch) Issued(ctx context.Context) error {
	b.mu.Lock()
	b.issued++
	full := b.size > 0 && b.issued%b.size == 0
	if full {
		b.pauses++
	}
	b.mu.Unlock()

	if !full || b.pause <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(b.pause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns how many items have been issued
func (b *Batch) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issued
}

// Pauses returns how many times the throttle has paused
func (b *Batch) Pauses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pauses
}
