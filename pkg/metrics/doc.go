// Package metrics provides Prometheus instrumentation for workdist components.
//
// Every component (queue, result channel, worker pool, supervisor) accepts an
// optional *Registry in its Config. A nil registry disables instrumentation
// for that component; DefaultRegistry is registered with
// prometheus.DefaultRegisterer at init.
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//	q, _ := queue.NewWithConfig[int](queue.Config{
//		Capacity: 64,
//		Name:     "ingest",
//		Metrics:  reg,
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Available Metrics
//
//   - workdist_queue_depth, workdist_queue_capacity
//   - workdist_queue_enqueued_total, workdist_queue_dequeued_total
//   - workdist_queue_discarded_total, workdist_queue_blocked_enqueues_total
//   - workdist_results_sent_total{outcome}, workdist_results_received_total
//   - workdist_results_pending
//   - workdist_workerpool_size, workdist_workerpool_workers{state}
//   - workdist_workerpool_compute_duration_seconds{outcome}
//   - workdist_supervisor_runs_total{status}
//   - workdist_supervisor_run_duration_seconds
//   - workdist_supervisor_sink_errors_total
//
// # Labels
//
//   - queue_name, channel_name, pool_name, supervisor_name: the Name given
//     in the component's Config
//   - outcome: "ok" or "failed"
//   - state: "idle", "processing" or "stopped"
//   - status: "ok", "failed" or "canceled"
package metrics
