package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/soarbot/internal/soaring"
)

// Runner executes one poll-evaluate-notify cycle.
type Runner interface {
	Run(ctx context.Context, source soaring.SubscriberSource, now time.Time) (soaring.RunMetrics, error)
}

// Config controls when cycles run and how long one may take.
type Config struct {
	Interval time.Duration
	Cron     string // optional cron expression; wins over Interval
	Timeout  time.Duration
}

// Scheduler periodically runs a cycle over the subscriber source.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	source    soaring.SubscriberSource
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	baseCtx   context.Context
}

// New creates a new Scheduler.
func New(cfg Config, runner Runner, source soaring.SubscriberSource, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// A cycle still running when the next one is due makes the next one wait.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		source:    source,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		baseCtx:   context.Background(),
	}
}

// RunOnce runs a single cycle under the configured deadline. A cycle that
// outlives the deadline is reported as failed by the runner.
func (s *Scheduler) RunOnce(ctx context.Context) (soaring.RunMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	m, err := s.runner.Run(ctx, s.source, s.now())
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Error("scheduler: cycle exceeded deadline", "run_id", m.RunID, "timeout", s.cfg.Timeout)
	}
	return m, err
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first cycle runs immediately. Cycles stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx

	job := func() {
		s.logger.Info("scheduler: running cycle")
		m, err := s.RunOnce(s.baseCtx)
		if err != nil {
			s.logger.Error("scheduler: cycle aborted", "run_id", m.RunID, "err", err)
			return
		}
		s.logger.Info("scheduler: completed cycle", "run_id", m.RunID, "success", m.Success, "summary", m.Summary())
	}

	var err error
	if s.cfg.Cron != "" {
		_, err = s.scheduler.Cron(s.cfg.Cron).Do(job)
	} else {
		_, err = s.scheduler.Every(s.cfg.Interval).Do(job)
	}
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
