package throttle

import (
	"context"
	"math"
	"sync"
	"time"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
)

// Limit is a rate in events per second.
type Limit float64

// Inf is the infinite rate limit; it allows all events.
var Inf = Limit(math.Inf(1))

// Every converts a minimum interval between events to a Limit.
func Every(interval time.Duration) Limit {
	if interval <= 0 {
		return Inf
	}
	return Limit(time.Second) / Limit(interval)
}

// Clock provides the current time. It can be replaced in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds configuration for a Bucket.
type Config struct {
	// Rate is the number of tokens added per second. Must be > 0.
	Rate Limit

	// Burst is the maximum number of stored tokens. Must be > 0.
	Burst int

	// Clock provides the current time. If nil, the system clock is used.
	Clock Clock
}

// Bucket is a token bucket rate limiter. It starts full.
type Bucket struct {
	mu     sync.Mutex
	limit  Limit
	burst  int
	tokens float64
	last   time.Time
	clock  Clock
}

// New creates a Bucket allowing rate events per second with the given burst.
func New(rate Limit, burst int) (*Bucket, error) {
	return NewWithConfig(Config{Rate: rate, Burst: burst})
}

// NewWithConfig creates a Bucket from config.
func NewWithConfig(config Config) (*Bucket, error) {
	if !(config.Rate > 0) {
		return nil, wderrors.NewValidationError("throttle", "rate", config.Rate, "must be positive").
			WithHint("use throttle.Inf for no limit")
	}
	if config.Burst <= 0 {
		return nil, wderrors.NewValidationError("throttle", "burst", config.Burst, "must be positive").
			WithHint("burst is how many events may happen back to back")
	}
	if config.Clock == nil {
		config.Clock = systemClock{}
	}

	return &Bucket{
		limit:  config.Rate,
		burst:  config.Burst,
		tokens: float64(config.Burst),
		last:   config.Clock.Now(),
		clock:  config.Clock,
	}, nil
}

// Allow reports whether an event may happen now, consuming a token if so.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(b.clock.Now())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until an event may happen. If ctx ends first, or its
// deadline falls before the event could happen, the token is returned and
// ctx's error (or context.DeadlineExceeded) is returned.
func (b *Bucket) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := b.clock.Now()
	delay := b.reserve(now)
	if delay <= 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok && now.Add(delay).After(deadline) {
		b.refund()
		return context.DeadlineExceeded
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		b.refund()
		return ctx.Err()
	}
}

// Tokens returns the number of tokens currently available. It is negative
// while waiters hold reservations.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(b.clock.Now())
	return b.tokens
}

// Limit returns the configured rate.
func (b *Bucket) Limit() Limit {
	return b.limit
}

// Burst returns the configured burst size.
func (b *Bucket) Burst() int {
	return b.burst
}

// reserve takes one token, possibly going negative, and returns how long
// the caller must wait before using it.
func (b *Bucket) reserve(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	b.tokens--
	if b.tokens >= 0 || b.limit == Inf {
		return 0
	}
	return time.Duration(float64(time.Second) * -b.tokens / float64(b.limit))
}

func (b *Bucket) refund() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(b.clock.Now())
	b.tokens = math.Min(b.tokens+1, float64(b.burst))
}

func (b *Bucket) refillLocked(now time.Time) {
	if b.limit == Inf {
		b.tokens = float64(b.burst)
		b.last = now
		return
	}

	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.tokens+elapsed.Seconds()*float64(b.limit), float64(b.burst))
	b.last = now
}
