package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/work"
)

// ComputeFunc turns one payload into one output. A returned error, or a
// panic, becomes a Failed result for that item only.
type ComputeFunc[T, R any] func(ctx context.Context, in T) (R, error)

// Source is the consuming side of a work queue.
type Source[T any] interface {
	// Dequeue blocks until an item is available. It returns
	// errors.ErrClosed once the source is closed and drained.
	Dequeue(ctx context.Context) (work.Item[T], error)
}

// Sink is the producing side of a result channel.
type Sink[R any] interface {
	// Send posts a result without blocking.
	Send(r work.Result[R]) error
}

// Config holds configuration options for starting a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// TaskTimeout bounds each compute call. Zero means no timeout.
	TaskTimeout time.Duration

	// Name labels metrics and log lines.
	Name string

	// Metrics receives pool metrics. Nil disables them.
	Metrics *metrics.Registry

	// Logger receives worker lifecycle and failure events.
	Logger *zap.Logger

	// OnWorkerStart is called in the worker goroutine before its first dequeue.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called in the worker goroutine after it reaches Stopped.
	OnWorkerStop func(workerID int)

	// OnItemComplete is called after a result has been posted.
	OnItemComplete func(workerID int, seq uint64, err error)
}

// Pool is a fixed set of workers sharing one source and one sink.
type Pool[T, R any] struct {
	config  Config
	log     *zap.Logger
	source  Source[T]
	sink    Sink[R]
	compute ComputeFunc[T, R]

	states []*work.Cell[work.State]

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	workerWg sync.WaitGroup
	done     chan struct{}
}
