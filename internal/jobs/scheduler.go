package jobs

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

// cronLogger routes cron's own logging to the service logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	obs.Logger.Debugw("cron_"+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	obs.Logger.Errorw("cron_"+msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs jobs on cron schedules. A job still running when its next
// slot comes up is skipped, and a panicking job is logged and recovered.
type Scheduler struct {
	c *cron.Cron
}

// NewScheduler returns a stopped Scheduler.
func NewScheduler() *Scheduler {
	l := cronLogger{}
	return &Scheduler{c: cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)}
}

// Add registers job under a standard cron spec or a descriptor such as
// "@every 1h".
func (s *Scheduler) Add(name, spec string, job cron.Job) error {
	id, err := s.c.AddJob(spec, job)
	if err != nil {
		return errors.Wrapf(err, "schedule %s %q", name, spec)
	}
	obs.Logger.Infow("job_scheduled", "job", name, "spec", spec, "entry_id", id)
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.c.Entries()) }

// Start runs the scheduler in the background.
func (s *Scheduler) Start() { s.c.Start() }

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		obs.Logger.Warnw("jobs_stop_timeout")
	}
}
