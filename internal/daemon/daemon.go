// Package daemon re-runs the engine on a schedule until its context is canceled.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docflow/internal/engine"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/logfields"
)

// Runner executes one engine run. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context) (*engine.Result, error)
}

// Pruner removes cache entries no pipeline references any more.
// *incremental.Detector implements it.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Config controls scheduling. Cron, when set, replaces Interval.
type Config struct {
	Interval time.Duration
	Cron     string
	// Prune runs the pruner after every run.
	Prune bool
}

// Status is a snapshot of the daemon's run history.
type Status struct {
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	LastRunID    string        `json:"last_run_id,omitempty"`
	LastOutcome  string        `json:"last_outcome,omitempty"`
	LastStarted  time.Time     `json:"last_started,omitzero"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	Pruned       int           `json:"pruned"`
	NextRun      time.Time     `json:"next_run,omitzero"`
}

// Daemon schedules engine runs.
type Daemon struct {
	cfg       Config
	runner    Runner
	pruner    Pruner
	logger    *slog.Logger
	startTime time.Time

	mu        sync.RWMutex
	status    Status
	scheduler *Scheduler
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithPruner enables cache pruning when Config.Prune is set.
func WithPruner(p Pruner) Option { return func(d *Daemon) { d.pruner = p } }

func WithLogger(l *slog.Logger) Option { return func(d *Daemon) { d.logger = l } }

// New creates a daemon around runner.
func New(cfg Config, runner Runner, opts ...Option) *Daemon {
	d := &Daemon{cfg: cfg, runner: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run runs the engine immediately and then on schedule, blocking until ctx is
// canceled. A run in progress at that point is canceled through its context and
// waited for.
func (d *Daemon) Run(ctx context.Context) error {
	s, err := NewScheduler()
	if err != nil {
		return err
	}
	task := func() { d.RunOnce(ctx) }
	if d.cfg.Cron != "" {
		_, err = s.ScheduleCron("docflow-run", d.cfg.Cron, task)
		if err == nil {
			go task()
		}
	} else {
		_, err = s.ScheduleEvery("docflow-run", d.cfg.Interval, true, task)
	}
	if err != nil {
		_ = s.Stop()
		return err
	}

	d.mu.Lock()
	d.scheduler = s
	d.startTime = time.Now()
	d.mu.Unlock()

	s.Start()
	d.logger.Info("Daemon started", slog.Duration("interval", d.cfg.Interval), slog.String("cron", d.cfg.Cron))
	<-ctx.Done()

	d.logger.Info("Daemon stopping")
	if err := s.Stop(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to stop scheduler").Build()
	}
	return nil
}

// RunOnce executes a single run and records its outcome. Failures are logged
// and recorded, never returned: the next tick runs regardless.
func (d *Daemon) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	d.mu.Lock()
	d.status.Running = true
	d.status.LastStarted = start
	d.mu.Unlock()

	res, err := d.runner.Run(ctx)
	elapsed := time.Since(start)

	st := Status{LastStarted: start, LastDuration: elapsed}
	switch {
	case res != nil:
		st.LastRunID = res.RunID
		st.LastOutcome = string(res.Outcome())
	case err != nil:
		st.LastOutcome = "error"
	}
	if err != nil {
		st.LastError = err.Error()
		d.logger.Error("Scheduled run failed", logfields.RunID(st.LastRunID), logfields.Error(err))
	} else {
		d.logger.Info("Scheduled run finished",
			logfields.RunID(st.LastRunID),
			logfields.Status(st.LastOutcome),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
	}

	if d.cfg.Prune && d.pruner != nil && ctx.Err() == nil {
		n, perr := d.pruner.Prune(ctx)
		if perr != nil {
			d.logger.Warn("Cache prune failed", logfields.Error(perr))
		} else {
			st.Pruned = n
			if n > 0 {
				d.logger.Info("Pruned cache objects", slog.Int("objects", n))
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	st.Runs = d.status.Runs + 1
	st.Pruned += d.status.Pruned
	d.status = st
}

// Status returns a snapshot of the run history.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := d.status
	if d.scheduler != nil {
		if next, ok := d.scheduler.NextRun(); ok {
			st.NextRun = next
		}
	}
	return st
}
