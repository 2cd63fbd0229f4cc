package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/common/validation"
	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/work"
)

// Stats holds counters describing queue activity.
type Stats struct {
	// Enqueued is the total number of items accepted.
	Enqueued int64

	// Dequeued is the total number of items handed out.
	Dequeued int64

	// Discarded is the number of pending items dropped by Abort.
	Discarded int64

	// BlockedEnqueues is the number of Enqueue calls that had to wait for a slot.
	BlockedEnqueues int64

	// HighWater is the largest length the queue has reached.
	HighWater int
}

// Config holds configuration for a Queue.
type Config struct {
	// Capacity is the fixed maximum number of pending items. Must be > 0.
	Capacity int

	// Name labels metrics and log lines.
	Name string

	// Metrics receives queue metrics. Nil disables them.
	Metrics *metrics.Registry

	// Logger receives debug-level lifecycle events. Nil means no logging.
	Logger *zap.Logger
}

// Queue is a bounded FIFO of work items shared by producers and workers.
// Every mutation happens under one mutex; blocked callers wait on condition
// variables and are woken by the opposite operation, by Close, or by their
// context ending.
type Queue[T any] struct {
	config Config
	log    *zap.Logger

	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buffer []work.Item[T]
	head   int
	tail   int
	count  int
	closed bool

	seq   work.Sequencer
	stats Stats
}

// New creates a Queue with the given capacity.
func New[T any](capacity int) (*Queue[T], error) {
	return NewWithConfig[T](Config{Capacity: capacity})
}

// NewWithConfig creates a Queue with the specified configuration.
func NewWithConfig[T any](config Config) (*Queue[T], error) {
	if err := validation.ValidatePositive("queue", "capacity", config.Capacity); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "default"
	}

	q := &Queue[T]{
		config: config,
		log:    logger(config.Logger).With(zap.String("queue", config.Name)),
		buffer: make([]work.Item[T], config.Capacity),
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)

	if m := config.Metrics; m != nil {
		m.QueueCapacity.WithLabelValues(config.Name).Set(float64(config.Capacity))
		m.QueueDepth.WithLabelValues(config.Name).Set(0)
	}

	return q, nil
}

// Enqueue appends payload, blocking while the queue is full. The returned
// item carries the sequence number assigned to it. Enqueue fails with
// ErrClosed once Close or Abort has been called, including while blocked,
// and with ctx.Err() if ctx ends first.
func (q *Queue[T]) Enqueue(ctx context.Context, payload T) (work.Item[T], error) {
	stop := q.wakeOnDone(ctx, q.notFull)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	blocked := false
	for q.count >= len(q.buffer) && !q.closed {
		if err := ctx.Err(); err != nil {
			return work.Item[T]{}, err
		}
		if !blocked {
			blocked = true
			q.stats.BlockedEnqueues++
			if m := q.config.Metrics; m != nil {
				m.BlockedEnqueues.WithLabelValues(q.config.Name).Inc()
			}
		}
		q.notFull.Wait()
	}

	if q.closed {
		return work.Item[T]{}, wderrors.ErrClosed
	}

	return q.pushLocked(payload), nil
}

// TryEnqueue appends payload without blocking. It returns ErrFull when the
// queue is at capacity and ErrClosed after Close.
func (q *Queue[T]) TryEnqueue(payload T) (work.Item[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return work.Item[T]{}, wderrors.ErrClosed
	}
	if q.count >= len(q.buffer) {
		return work.Item[T]{}, wderrors.ErrFull
	}
	return q.pushLocked(payload), nil
}

// Dequeue removes and returns the oldest item, blocking while the queue is
// empty. Once the queue is closed and drained it returns ErrClosed. If ctx
// ends first it returns ctx.Err().
func (q *Queue[T]) Dequeue(ctx context.Context) (work.Item[T], error) {
	stop := q.wakeOnDone(ctx, q.notEmpty)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return work.Item[T]{}, err
		}
		q.notEmpty.Wait()
	}

	if q.count == 0 {
		return work.Item[T]{}, wderrors.ErrClosed
	}

	return q.popLocked(), nil
}

// TryDequeue removes the oldest item without blocking. ok is false when the
// queue is empty; err is ErrClosed once the queue is closed and drained.
func (q *Queue[T]) TryDequeue() (item work.Item[T], ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		if q.closed {
			return work.Item[T]{}, false, wderrors.ErrClosed
		}
		return work.Item[T]{}, false, nil
	}
	return q.popLocked(), true, nil
}

// Close stops the queue from accepting items. Pending items remain available
// to Dequeue. All blocked callers are woken. Calling Close more than once has
// no further effect.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()

	q.log.Debug("queue closed", zap.Int("pending", q.count))
	return nil
}

// Abort closes the queue and removes every pending item, returning them in
// FIFO order. It is the only way an accepted item can be dropped.
func (q *Queue[T]) Abort() []work.Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	dropped := make([]work.Item[T], 0, q.count)
	for q.count > 0 {
		dropped = append(dropped, q.removeLocked())
	}
	q.stats.Discarded += int64(len(dropped))
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()

	if m := q.config.Metrics; m != nil {
		m.ItemsDiscarded.WithLabelValues(q.config.Name).Add(float64(len(dropped)))
		m.QueueDepth.WithLabelValues(q.config.Name).Set(0)
	}
	q.log.Debug("queue aborted", zap.Int("discarded", len(dropped)))

	return dropped
}

// IsClosed reports whether Close or Abort has been called.
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.buffer)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// pushLocked assigns the next sequence number and appends (must hold lock).
func (q *Queue[T]) pushLocked(payload T) work.Item[T] {
	item := work.Item[T]{
		Seq:         q.seq.Next(),
		Payload:     payload,
		SubmittedAt: time.Now(),
	}

	q.buffer[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buffer)
	q.count++

	q.stats.Enqueued++
	if q.count > q.stats.HighWater {
		q.stats.HighWater = q.count
	}
	if m := q.config.Metrics; m != nil {
		m.ItemsEnqueued.WithLabelValues(q.config.Name).Inc()
		m.QueueDepth.WithLabelValues(q.config.Name).Set(float64(q.count))
	}

	q.notEmpty.Signal()
	return item
}

// popLocked removes the head for a consumer (must hold lock).
func (q *Queue[T]) popLocked() work.Item[T] {
	item := q.removeLocked()

	q.stats.Dequeued++
	if m := q.config.Metrics; m != nil {
		m.ItemsDequeued.WithLabelValues(q.config.Name).Inc()
		m.QueueDepth.WithLabelValues(q.config.Name).Set(float64(q.count))
	}

	q.notFull.Signal()
	return item
}

// removeLocked removes the head of the ring buffer (must hold lock).
func (q *Queue[T]) removeLocked() work.Item[T] {
	item := q.buffer[q.head]
	q.buffer[q.head] = work.Item[T]{} // Clear reference
	q.head = (q.head + 1) % len(q.buffer)
	q.count--
	return item
}

// wakeOnDone broadcasts cond when ctx ends so that a waiter re-checks ctx.
// The returned func must be called once the wait is over.
func (q *Queue[T]) wakeOnDone(ctx context.Context, cond *sync.Cond) (stop func() bool) {
	if ctx.Done() == nil {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		cond.Broadcast()
		q.mu.Unlock()
	})
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
