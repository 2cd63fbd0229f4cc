/*
Package workerpool runs a fixed set of workers between a work queue and a
result channel.

Each worker repeats one loop: dequeue an item, compute it, post the result.
When the queue reports errors.ErrClosed the worker moves to the Stopped
state and exits. Closing the queue is therefore the way to shut a pool down;
workers always finish the item in hand first.

Basic usage:

	q, _ := queue.New[int](100)
	ch := results.New[int]()

	pool, err := workerpool.Start(ctx, 4, q, ch, func(ctx context.Context, x int) (int, error) {
		return x * x, nil
	})
	if err != nil {
		return err
	}

	for _, x := range inputs {
		q.Enqueue(ctx, x)
	}
	q.Close()

	go func() {
		pool.Join()
		ch.Close()
	}()

	for {
		r, err := ch.Receive(ctx)
		if err != nil {
			break // errors.ErrClosed: every worker has stopped
		}
		if r.Failed() {
			log.Printf("item %d: %v", r.Seq, r.Err)
		}
	}

Failure isolation:

A compute function that returns an error, or panics, produces a Failed
result for that item only. The result's Err is a *work.FailedError carrying
the item's sequence number; for a panic the cause is a *work.PanicError
with the recovered value and stack. Sibling workers are unaffected.

Configuration:

	pool, err := workerpool.StartWithConfig(ctx, workerpool.Config{
		WorkerCount: 8,
		TaskTimeout: 5 * time.Second,
		Name:        "thumbnails",
		Metrics:     metrics.DefaultRegistry,
		Logger:      logger,
		OnItemComplete: func(workerID int, seq uint64, err error) {
			// ...
		},
	}, q, ch, compute)

Worker states:

States reports each worker as Idle (waiting on the queue), Processing, or
Stopped. Each worker's state lives in its own work.Cell, so reading states
never contends with the queue or result channel locks.
*/
package workerpool
