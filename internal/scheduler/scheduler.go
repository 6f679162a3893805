// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	applog "financeiro/internal/log"
)

// Job represents a scheduled job
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobObserver is told about every job run.
type JobObserver interface {
	ObserveJob(job string, err error)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	log      *slog.Logger
	observer JobObserver
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a scheduler using standard five-field cron expressions and
// descriptors such as "@daily" or "@every 1h". Overlapping runs of the same
// job are skipped.
func New(logger *slog.Logger, observer JobObserver) *Scheduler {
	logger = logger.With(applog.FieldComponent, applog.ComponentScheduler)
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:      logger,
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddJob registers a job with a cron schedule. Schedule examples:
//   - "30 2 * * *" - 02:30 every day
//   - "@daily"     - midnight
//   - "@every 6h"  - every six hours
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(s.ctx, job) })
	if err != nil {
		return err
	}
	s.log.Info("Job registered", "schedule", schedule, applog.FieldJob, job.Name())
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Info("Running job immediately", applog.FieldJob, job.Name())
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	if s.observer != nil {
		s.observer.ObserveJob(job.Name(), err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "Job failed", applog.FieldJob, job.Name(), applog.FieldError, err)
		return err
	}
	s.log.DebugContext(ctx, "Job completed",
		applog.FieldJob, job.Name(),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, applog.FieldError, err)...)
}
