package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/workdist/pkg/common/validation"
)

// ErrDuplicateJob is returned by Add when the id is already scheduled.
var ErrDuplicateJob = errors.New("job already scheduled")

// ErrUnknownJob is returned when no job is scheduled under an id.
var ErrUnknownJob = errors.New("job not found")

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateExpr reports whether expr is a cron expression a Scheduler accepts.
func ValidateExpr(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Job is a unit of scheduled work. The context is canceled when the
// scheduler is stopped with an expired deadline.
type Job func(ctx context.Context) error

// Config holds scheduler configuration.
type Config struct {
	// Location evaluates cron expressions. Defaults to time.Local.
	Location *time.Location

	// Logger receives job failures and cron diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// Scheduler triggers jobs from cron expressions. Expressions take five
// fields, an optional leading seconds field, or a descriptor such as
// "@hourly" or "@every 30s".
//
// Overlapping executions of the same job are skipped and a panicking job
// is recovered and logged.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a stopped scheduler.
func New(config Config) *Scheduler {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := config.Location
	if loc == nil {
		loc = time.Local
	}

	clog := cronLogger{log: log.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules job under id.
func (s *Scheduler) Add(id, expr string, job Job) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if job == nil {
		return validation.ValidateNotNil("scheduler", "job", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}

	log := s.log.With(zap.String("job", id))
	eid, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		if err := job(s.jobContext()); err != nil {
			log.Warn("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			return
		}
		log.Debug("job completed", zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.entries[id] = eid
	log.Info("job scheduled", zap.String("expr", expr))
	return nil
}

// Remove unschedules a job. It reports whether the job existed. A running
// execution is not interrupted.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	eid, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(eid)
	delete(s.entries, id)
	return true
}

// Next returns the next activation time of a job.
func (s *Scheduler) Next(id string) (time.Time, error) {
	s.mu.Lock()
	eid, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}

	entry := s.cron.Entry(eid)
	if !entry.Next.IsZero() {
		return entry.Next, nil
	}
	// not started yet
	return entry.Schedule.Next(time.Now()), nil
}

// Jobs returns the ids of all scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Validate reports whether expr is a valid cron expression.
func (s *Scheduler) Validate(expr string) error {
	return ValidateExpr(expr)
}

// Start begins triggering jobs in the background. Calling Start on a
// running scheduler is a no-op. A stopped scheduler can be started again.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.mu.Unlock()
	s.cron.Start()
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) stopJobs() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
}

// Stop stops triggering jobs and waits for running executions to finish.
// If ctx ends first, running jobs have their context canceled, Stop waits
// for them to return, and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.stopJobs()
		return nil
	case <-ctx.Done():
		s.log.Warn("stop deadline reached, canceling running jobs")
		s.stopJobs()
		<-done.Done()
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger. Cron's info output reports every
// wake-up, so it is logged at debug level.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
