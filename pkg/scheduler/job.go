package scheduler

import (
	"context"

	"github.com/vnykmshr/workdist/pkg/supervisor"
)

// SupervisedJob returns a Job that loads a batch with items and runs it
// through s. onReport, if set, receives every report, including the
// partial report of a failed run.
func SupervisedJob[T, R any](s *supervisor.Supervisor[T, R], items func(ctx context.Context) ([]T, error), onReport func(*supervisor.Report[R])) Job {
	return func(ctx context.Context) error {
		batch, err := items(ctx)
		if err != nil {
			return err
		}

		report, err := s.Run(ctx, batch)
		if report != nil && onReport != nil {
			onReport(report)
		}
		return err
	}
}
