/*
Package supervisor drives a complete work-distribution run.

A Supervisor owns the lifetimes of the pieces of a run. For every call to
Run it creates a bounded queue.Queue and a results.Channel, starts a
workerpool.Pool, enqueues the items, closes the queue, and drains the
channel. The channel is closed only after every worker has stopped, so the
drain loop ends exactly when no further result can appear.

	report, err := supervisor.Run(ctx, supervisor.Config[int]{
		Capacity: 64,
		Workers:  8,
	}, inputs, func(ctx context.Context, x int) (int, error) {
		return x * x, nil
	})
	if err != nil {
		return err
	}
	for _, f := range report.Failures() {
		log.Printf("item %d: %v", f.Seq, f.Cause)
	}
	squares := report.Outputs() // in submission order

Accounting:

After draining, the supervisor checks that every accepted item produced
exactly one result. A mismatch is reported as ErrAccounting. Failed items
count as results; they never abort the run.

Cancellation:

If ctx ends during a run, the queue is aborted: items no worker has taken
yet are discarded and counted in Report.Discarded. Items already being
computed still finish and are reported. Run returns the partial report
together with an error wrapping ctx.Err().

Sinks:

A sink.Sink in Config receives every result as it is drained, tagged with
the run's RunID. Sink errors are collected and returned after the run;
they do not stop the drain.
*/
package supervisor
