package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/common/validation"
	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/queue"
	"github.com/vnykmshr/workdist/pkg/results"
	"github.com/vnykmshr/workdist/pkg/sink"
	"github.com/vnykmshr/workdist/pkg/work"
	"github.com/vnykmshr/workdist/pkg/workerpool"
)

// ErrAccounting is returned when the results of a run do not match the
// items that were submitted.
var ErrAccounting = errors.New("result accounting mismatch")

// Limiter paces item submission. *throttle.Bucket implements it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config holds configuration for a Supervisor.
type Config[R any] struct {
	// Capacity is the work queue capacity. Must be > 0.
	Capacity int

	// Workers is the number of workers started for each run. Must be > 0.
	Workers int

	// TaskTimeout bounds each compute call. Zero means no timeout.
	TaskTimeout time.Duration

	// Name labels metrics and log lines of this supervisor and the queue,
	// channel, and pool it creates.
	Name string

	// Logger receives run lifecycle events. Nil means no logging.
	Logger *zap.Logger

	// Metrics receives metrics for every component of a run. Nil disables them.
	Metrics *metrics.Registry

	// Sink, if set, receives every result as it is drained.
	Sink sink.Sink[R]

	// Limiter, if set, is waited on before each item is enqueued.
	Limiter Limiter
}

// Supervisor owns the queue, channel and pool of each run and drives them
// through an orderly shutdown.
type Supervisor[T, R any] struct {
	config  Config[R]
	compute workerpool.ComputeFunc[T, R]
	log     *zap.Logger
}

// New creates a Supervisor that computes items with compute.
func New[T, R any](config Config[R], compute workerpool.ComputeFunc[T, R]) (*Supervisor[T, R], error) {
	if err := validation.ValidatePositive("supervisor", "capacity", config.Capacity); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("supervisor", "workers", config.Workers); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("supervisor", "task_timeout", config.TaskTimeout); err != nil {
		return nil, err
	}
	if compute == nil {
		return nil, validation.ValidateNotNil("supervisor", "compute", nil)
	}
	if config.Name == "" {
		config.Name = "default"
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Supervisor[T, R]{
		config:  config,
		compute: compute,
		log:     log.With(zap.String("supervisor", config.Name)),
	}, nil
}

// Run computes every item and returns the report.
//
// The protocol is: create the queue and result channel, start the workers,
// enqueue all items, close the queue, and drain the channel until it is
// closed. The channel is closed once every worker has stopped. If ctx ends
// before the run completes, pending items are discarded, in-flight items
// finish, and the partial report is returned with ctx's error.
func (s *Supervisor[T, R]) Run(ctx context.Context, items []T) (*Report[R], error) {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	start := time.Now()

	q, err := queue.NewWithConfig[T](queue.Config{
		Capacity: s.config.Capacity,
		Name:     s.config.Name,
		Metrics:  s.config.Metrics,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	ch := results.NewWithConfig[R](results.Config{
		Name:    s.config.Name,
		Metrics: s.config.Metrics,
		Logger:  log,
	})

	// Workers each hold a handle on the channel; the supervisor's own handle
	// is released after Join, so the release hook closes the channel only
	// once no worker can still send.
	channel := work.NewShared(ch, func(c *results.Channel[R]) { _ = c.Close() })
	handles := make([]*work.Shared[*results.Channel[R]], s.config.Workers)
	for i := range handles {
		handles[i] = channel.Clone()
	}

	// Workers stop on queue closure only, never mid-item.
	pool, err := workerpool.StartWithConfig[T, R](context.WithoutCancel(ctx), workerpool.Config{
		WorkerCount:  s.config.Workers,
		TaskTimeout:  s.config.TaskTimeout,
		Name:         s.config.Name,
		Metrics:      s.config.Metrics,
		Logger:       log,
		OnWorkerStop: func(id int) { handles[id].Release() },
	}, q, ch, s.compute)
	if err != nil {
		q.Abort()
		channel.Release()
		return nil, err
	}

	log.Info("run started",
		zap.Int("items", len(items)),
		zap.Int("workers", s.config.Workers),
		zap.Int("capacity", s.config.Capacity))

	report := &Report[R]{RunID: runID}
	var runErr error

	for _, x := range items {
		// Enqueue succeeds on a free slot even with ctx done.
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("submit item %d of %d: %w", report.Submitted+1, len(items), err)
			break
		}
		if lim := s.config.Limiter; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				runErr = fmt.Errorf("submit item %d of %d: %w", report.Submitted+1, len(items), err)
				break
			}
		}
		if _, err := q.Enqueue(ctx, x); err != nil {
			runErr = fmt.Errorf("submit item %d of %d: %w", report.Submitted+1, len(items), err)
			break
		}
		report.Submitted++
	}
	if runErr != nil {
		report.Discarded += len(q.Abort())
	} else {
		_ = q.Close()
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		pool.Join()
		channel.Release()
	}()

	sinkErr := s.drain(ctx, log, q, ch, report, &runErr)
	<-stopped

	report.Elapsed = time.Since(start)

	acctErr := report.check()
	if acctErr != nil {
		log.Error("result accounting mismatch", zap.Error(acctErr))
	}

	s.finish(log, report, runErr, acctErr, sinkErr)
	return report, errors.Join(runErr, acctErr, sinkErr)
}

// drain receives results until the channel is closed. If ctx ends first it
// aborts the queue and keeps draining what in-flight workers still produce.
func (s *Supervisor[T, R]) drain(ctx context.Context, log *zap.Logger, q *queue.Queue[T], ch *results.Channel[R], report *Report[R], runErr *error) error {
	var sinkErrs []error
	recvCtx := ctx
	// Results already computed are delivered even after ctx ends.
	sinkCtx := context.WithoutCancel(ctx)

	for {
		r, err := ch.Receive(recvCtx)
		if errors.Is(err, wderrors.ErrClosed) {
			break
		}
		if err != nil {
			if *runErr == nil {
				*runErr = fmt.Errorf("drain results: %w", err)
			}
			report.Discarded += len(q.Abort())
			recvCtx = context.WithoutCancel(ctx)
			log.Warn("run canceled, discarding pending items", zap.Int("discarded", report.Discarded))
			continue
		}

		report.add(r)

		if s.config.Sink != nil {
			if err := s.config.Sink.Put(sinkCtx, report.RunID, r); err != nil {
				sinkErrs = append(sinkErrs, err)
				if m := s.config.Metrics; m != nil {
					m.SinkErrors.WithLabelValues(s.config.Name).Inc()
				}
				log.Error("sink rejected result", zap.Uint64("seq", r.Seq), zap.Error(err))
			}
		}
	}

	return errors.Join(sinkErrs...)
}

func (s *Supervisor[T, R]) finish(log *zap.Logger, report *Report[R], runErr, acctErr, sinkErr error) {
	status := "ok"
	switch {
	case runErr != nil:
		status = "canceled"
	case acctErr != nil || sinkErr != nil:
		status = "failed"
	}

	if m := s.config.Metrics; m != nil {
		m.Runs.WithLabelValues(s.config.Name, status).Inc()
		m.RunDuration.WithLabelValues(s.config.Name).Observe(report.Elapsed.Seconds())
	}

	log.Info("run finished",
		zap.String("status", status),
		zap.Int("submitted", report.Submitted),
		zap.Int("results", len(report.Results)),
		zap.Int("failed", report.Failed),
		zap.Int("discarded", report.Discarded),
		zap.Duration("elapsed", report.Elapsed))
}

// Run is a convenience wrapper that builds a Supervisor and runs it once.
func Run[T, R any](ctx context.Context, config Config[R], items []T, compute workerpool.ComputeFunc[T, R]) (*Report[R], error) {
	s, err := New[T, R](config, compute)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, items)
}
