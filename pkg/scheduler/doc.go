// Package scheduler runs jobs, typically supervised batches, on cron
// schedules.
//
//	s := scheduler.New(scheduler.Config{Logger: logger})
//	err := s.Add("nightly", "0 2 * * *", scheduler.SupervisedJob(sup, loadBatch, publish))
//	s.Start()
//	defer s.Stop(ctx)
//
// Each job runs at most once at a time: an activation that fires while the
// previous execution is still running is skipped.
package scheduler
