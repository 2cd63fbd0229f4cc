package workerpool

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/common/validation"
	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/work"
)

// Start spawns n workers that pull from source, compute, and post to sink
// until source reports errors.ErrClosed or ctx ends.
func Start[T, R any](ctx context.Context, n int, source Source[T], sink Sink[R], compute ComputeFunc[T, R]) (*Pool[T, R], error) {
	return StartWithConfig(ctx, Config{WorkerCount: n}, source, sink, compute)
}

// StartWithConfig spawns workers with the specified configuration.
func StartWithConfig[T, R any](ctx context.Context, config Config, source Source[T], sink Sink[R], compute ComputeFunc[T, R]) (*Pool[T, R], error) {
	if err := validation.ValidatePositive("workerpool", "workers", config.WorkerCount); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("workerpool", "task_timeout", config.TaskTimeout); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, validation.ValidateNotNil("workerpool", "source", nil)
	}
	if sink == nil {
		return nil, validation.ValidateNotNil("workerpool", "sink", nil)
	}
	if compute == nil {
		return nil, validation.ValidateNotNil("workerpool", "compute", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if config.Name == "" {
		config.Name = "default"
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pool[T, R]{
		config:  config,
		log:     log.With(zap.String("pool", config.Name)),
		source:  source,
		sink:    sink,
		compute: compute,
		states:  make([]*work.Cell[work.State], config.WorkerCount),
		done:    make(chan struct{}),
	}

	if m := config.Metrics; m != nil {
		m.WorkerPoolSize.WithLabelValues(config.Name).Set(float64(config.WorkerCount))
		for _, s := range work.States {
			m.WorkerStates.WithLabelValues(config.Name, s.String()).Set(0)
		}
		m.WorkerStates.WithLabelValues(config.Name, work.Idle.String()).Set(float64(config.WorkerCount))
	}

	// Create and start workers
	for i := 0; i < config.WorkerCount; i++ {
		p.states[i] = work.NewCell(work.Idle)
		p.workerWg.Add(1)
		go p.run(ctx, i)
	}

	go func() {
		p.workerWg.Wait()
		close(p.done)
	}()

	p.log.Debug("worker pool started", zap.Int("workers", config.WorkerCount))
	return p, nil
}

// Join blocks until every worker has stopped.
func (p *Pool[T, R]) Join() {
	<-p.done
}

// Done returns a channel that is closed once every worker has stopped.
func (p *Pool[T, R]) Done() <-chan struct{} {
	return p.done
}

// Wait is Join bounded by ctx.
func (p *Pool[T, R]) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the number of workers in the pool.
func (p *Pool[T, R]) Size() int {
	return p.config.WorkerCount
}

// States returns each worker's current state, indexed by worker ID.
func (p *Pool[T, R]) States() []work.State {
	out := make([]work.State, len(p.states))
	for i, c := range p.states {
		out[i] = c.Get()
	}
	return out
}

// ActiveWorkers returns the number of workers currently computing an item.
func (p *Pool[T, R]) ActiveWorkers() int {
	n := 0
	for _, c := range p.states {
		if c.Get() == work.Processing {
			n++
		}
	}
	return n
}

// Processed returns the number of items for which a result was produced.
func (p *Pool[T, R]) Processed() int64 {
	return p.processed.Load()
}

// FailedCount returns the number of Failed results produced.
func (p *Pool[T, R]) FailedCount() int64 {
	return p.failed.Load()
}

// Dropped returns the number of results the sink refused.
func (p *Pool[T, R]) Dropped() int64 {
	return p.dropped.Load()
}

// run is the main loop for a worker.
func (p *Pool[T, R]) run(ctx context.Context, id int) {
	defer p.workerWg.Done()

	log := p.log.With(zap.Int("worker_id", id))
	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(id)
	}

	defer func() {
		p.setState(id, work.Stopped)
		if p.config.OnWorkerStop != nil {
			p.config.OnWorkerStop(id)
		}
	}()

	for {
		item, err := p.source.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, wderrors.ErrClosed) {
				log.Debug("worker stopping: queue closed")
			} else {
				log.Debug("worker stopping", zap.Error(err))
			}
			return
		}

		p.setState(id, work.Processing)
		result := p.execute(ctx, id, item)
		p.deliver(log, result)
		p.setState(id, work.Idle)
	}
}

// execute computes a single item, turning errors and panics into a Failed
// result.
func (p *Pool[T, R]) execute(ctx context.Context, id int, item work.Item[T]) (result work.Result[R]) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = work.Failed[R](item.Seq, work.NewPanicError(r))
		}
		result.WorkerID = id
		result.Duration = time.Since(start)

		if m := p.config.Metrics; m != nil {
			m.ComputeDuration.WithLabelValues(p.config.Name, metrics.Outcome(result.Err)).
				Observe(result.Duration.Seconds())
		}
	}()

	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	out, err := p.compute(ctx, item.Payload)
	if err != nil {
		return work.Failed[R](item.Seq, err)
	}
	return work.Succeeded(item.Seq, out)
}

// deliver posts a result and updates counters.
func (p *Pool[T, R]) deliver(log *zap.Logger, result work.Result[R]) {
	p.processed.Add(1)
	if result.Failed() {
		p.failed.Add(1)
		log.Warn("item failed", zap.Uint64("seq", result.Seq), zap.Error(result.Cause()))
	}

	if err := p.sink.Send(result); err != nil {
		p.dropped.Add(1)
		log.Error("result dropped", zap.Uint64("seq", result.Seq), zap.Error(err))
	}

	if p.config.OnItemComplete != nil {
		p.config.OnItemComplete(result.WorkerID, result.Seq, result.Err)
	}
}

func (p *Pool[T, R]) setState(id int, s work.State) {
	old := p.states[id].Swap(s)
	if m := p.config.Metrics; m != nil && old != s {
		m.WorkerStates.WithLabelValues(p.config.Name, old.String()).Dec()
		m.WorkerStates.WithLabelValues(p.config.Name, s.String()).Inc()
	}
}
