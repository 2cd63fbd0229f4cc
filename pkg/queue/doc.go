/*
Package queue provides the bounded FIFO work queue that feeds a worker pool.

A Queue has a capacity fixed at construction. Enqueue blocks while the queue
is full and Dequeue blocks while it is empty; both wait on condition
variables rather than polling. Every accepted item is stamped with a
sequence number that is unique and strictly increasing in FIFO order.

Basic usage:

	q, err := queue.New[int](2)
	if err != nil {
		return err
	}

	go func() {
		for _, x := range inputs {
			if _, err := q.Enqueue(ctx, x); err != nil {
				return // closed or canceled
			}
		}
		q.Close()
	}()

	for {
		item, err := q.Dequeue(ctx)
		if errors.Is(err, wderrors.ErrClosed) {
			break // closed and drained
		}
		process(item.Seq, item.Payload)
	}

Shutdown:

Close stops new enqueues but leaves pending items for Dequeue, which returns
ErrClosed only after the queue is drained. Abort closes the queue and
discards the pending items, returning them so the caller can account for
them. Both are idempotent and wake every blocked caller.

Cancellation:

Enqueue and Dequeue also return when their context is canceled or its
deadline passes. This is the way to bound a wait; the queue itself has no
timeouts.
*/
package queue
