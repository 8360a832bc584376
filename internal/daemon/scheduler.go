package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler. Jobs run in singleton mode: a tick that
// fires while the previous run is still busy is dropped and rescheduled.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create scheduler").Build()
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs to return.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleEvery runs fn every interval and returns the job ID. With immediate
// set, the first run starts as soon as the scheduler starts.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, immediate bool, fn func()) (string, error) {
	if interval <= 0 {
		return "", ferrors.ConfigError(fmt.Sprintf("schedule interval must be positive, got %s", interval)).
			WithContext("job", name).
			Build()
	}
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediate {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(fn), opts...)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "failed to schedule periodic job").
			WithContext("job", name).
			Build()
	}
	return job.ID().String(), nil
}

// ScheduleCron runs fn on a five-field cron expression and returns the job ID.
func (s *Scheduler) ScheduleCron(name, expression string, fn func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expression, false),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "failed to schedule cron job").
			WithContext("job", name).
			WithContext("expression", expression).
			Build()
	}
	return job.ID().String(), nil
}

// NextRun returns the next scheduled time of the first job, if any.
func (s *Scheduler) NextRun() (time.Time, bool) {
	jobs := s.scheduler.Jobs()
	if len(jobs) == 0 {
		return time.Time{}, false
	}
	next, err := jobs[0].NextRun()
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}
