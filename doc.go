/*
Package workdist provides bounded, supervised work distribution for Go
programs: a fixed pool of workers computes a batch of items and every item
yields exactly one result.

Building blocks (pkg/):
  - queue: bounded FIFO work queue whose producers block while it is full
  - results: unbounded result channel that is drained until closed
  - workerpool: fixed pool of workers that turns items into results
  - supervisor: runs the whole protocol and verifies the accounting
  - sink: result storage in memory or Redis
  - scheduler: cron-triggered recurring runs
  - metrics: Prometheus metrics for every component

A failing item never stops the run. Its result carries the item's sequence
number and the cause instead of an output.

Example usage:

	import "github.com/vnykmshr/workdist/pkg/supervisor"

	report, err := supervisor.Run(ctx, supervisor.Config[int]{
		Capacity: 2,
		Workers:  1,
	}, []int{3, 4, 5}, square)

	fmt.Println(report.Outputs()) // [9 16 25]
*/
package workdist
