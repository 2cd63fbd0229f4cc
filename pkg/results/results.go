package results

import (
	"context"
	"sync"

	"go.uber.org/zap"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/work"
)

// Stats holds counters describing channel activity.
type Stats struct {
	// Sent is the total number of results accepted from producers.
	Sent int64

	// Failed is how many of the sent results carried an error.
	Failed int64

	// Received is the total number of results handed to the consumer.
	Received int64
}

// Config holds configuration for a Channel.
type Config struct {
	// Name labels metrics and log lines.
	Name string

	// Metrics receives channel metrics. Nil disables them.
	Metrics *metrics.Registry

	// Logger receives debug-level lifecycle events. Nil means no logging.
	Logger *zap.Logger
}

// Channel carries results from many producers to a single consumer.
// Sends never block; the consumer blocks in Receive until a result arrives
// or the channel is closed and empty.
type Channel[R any] struct {
	config Config
	log    *zap.Logger

	mu       sync.Mutex
	notEmpty *sync.Cond
	pending  []work.Result[R]
	closed   bool
	stats    Stats
}

// New creates an open Channel.
func New[R any]() *Channel[R] {
	return NewWithConfig[R](Config{})
}

// NewWithConfig creates an open Channel with the specified configuration.
func NewWithConfig[R any](config Config) *Channel[R] {
	if config.Name == "" {
		config.Name = "default"
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ch := &Channel[R]{
		config: config,
		log:    log.With(zap.String("channel", config.Name)),
	}
	ch.notEmpty = sync.NewCond(&ch.mu)
	return ch
}

// Send appends r without blocking. It returns ErrClosed after Close.
func (ch *Channel[R]) Send(r work.Result[R]) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return wderrors.ErrClosed
	}

	ch.pending = append(ch.pending, r)
	ch.stats.Sent++
	if r.Failed() {
		ch.stats.Failed++
	}
	if m := ch.config.Metrics; m != nil {
		m.ResultsSent.WithLabelValues(ch.config.Name, metrics.Outcome(r.Err)).Inc()
		m.ResultsPending.WithLabelValues(ch.config.Name).Set(float64(len(ch.pending)))
	}

	ch.notEmpty.Signal()
	return nil
}

// Receive returns the oldest pending result, blocking until one is
// available. It returns ErrClosed once the channel is closed and empty, and
// ctx.Err() if ctx ends first.
func (ch *Channel[R]) Receive(ctx context.Context) (work.Result[R], error) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			ch.mu.Lock()
			ch.notEmpty.Broadcast()
			ch.mu.Unlock()
		})
		defer stop()
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	for len(ch.pending) == 0 && !ch.closed {
		if err := ctx.Err(); err != nil {
			return work.Result[R]{}, err
		}
		ch.notEmpty.Wait()
	}

	if len(ch.pending) == 0 {
		return work.Result[R]{}, wderrors.ErrClosed
	}
	return ch.popLocked(), nil
}

// TryReceive returns a pending result without blocking. ok is false when
// none is pending; err is ErrClosed once the channel is closed and empty.
func (ch *Channel[R]) TryReceive() (r work.Result[R], ok bool, err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if len(ch.pending) == 0 {
		if ch.closed {
			return work.Result[R]{}, false, wderrors.ErrClosed
		}
		return work.Result[R]{}, false, nil
	}
	return ch.popLocked(), true, nil
}

// Close stops the channel from accepting results and wakes a blocked
// receiver. Results already sent remain receivable. Calling Close more than
// once has no further effect.
func (ch *Channel[R]) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return nil
	}
	ch.closed = true
	ch.notEmpty.Broadcast()

	ch.log.Debug("result channel closed",
		zap.Int("pending", len(ch.pending)),
		zap.Int64("sent", ch.stats.Sent))
	return nil
}

// IsClosed reports whether Close has been called.
func (ch *Channel[R]) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Len returns the number of results waiting for the consumer.
func (ch *Channel[R]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.pending)
}

// Stats returns a snapshot of the channel counters.
func (ch *Channel[R]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.stats
}

// popLocked removes the oldest pending result (must hold lock).
func (ch *Channel[R]) popLocked() work.Result[R] {
	r := ch.pending[0]
	ch.pending[0] = work.Result[R]{} // Clear reference
	ch.pending = ch.pending[1:]
	if len(ch.pending) == 0 {
		ch.pending = nil
	}

	ch.stats.Received++
	if m := ch.config.Metrics; m != nil {
		m.ResultsReceived.WithLabelValues(ch.config.Name).Inc()
		m.ResultsPending.WithLabelValues(ch.config.Name).Set(float64(len(ch.pending)))
	}
	return r
}
