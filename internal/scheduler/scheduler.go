// Package scheduler runs the rotation pipeline on a cron schedule for
// daemon-mode deployments. One-shot batch invocation stays the default; the
// scheduler exists for environments without an external cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RotationRunner is the interface the scheduler uses to run a rotation pass.
// Wrap *pipeline.Rotator with RunnerFunc to satisfy it.
type RotationRunner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a plain function to RotationRunner.
type RunnerFunc func(ctx context.Context) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Scheduler fires the rotation runner whenever the cron expression is due.
type Scheduler struct {
	runner   RotationRunner
	schedule cron.Schedule
	expr     string
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	running bool // a pass is executing (dedup: never overlap passes)
	runMu   sync.Mutex
	fireWG  sync.WaitGroup
}

// New parses the cron expression (standard five fields) and creates a
// scheduler around the runner.
func New(cronExpr string, runner RotationRunner, logger *slog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: runner, schedule: schedule, expr: cronExpr, logger: logger}, nil
}

// NextRun computes the next firing time after from.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("rotation scheduler started", slog.String("cron", s.expr))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	for {
		now := time.Now().UTC()
		next := s.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fireAsync(ctx)
		}
	}
}

// fireAsync launches a rotation pass without blocking the timer loop, so a
// pass outlasting its interval delays nothing; the overlapping fire is
// deduped instead.
func (s *Scheduler) fireAsync(ctx context.Context) {
	s.fireWG.Add(1)
	go func() {
		defer s.fireWG.Done()
		s.fire(ctx)
	}()
}

// fire runs one rotation pass, skipping if the previous pass is still going.
func (s *Scheduler) fire(ctx context.Context) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		s.logger.Warn("rotation pass still running, skipping scheduled fire")
		return
	}
	s.running = true
	s.runMu.Unlock()

	defer func() {
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	s.logger.Info("scheduled rotation pass starting")
	if err := s.runner.Run(ctx); err != nil {
		s.logger.Error("scheduled rotation pass failed", slog.String("error", err.Error()))
	}
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.fireWG.Wait() // let an in-flight pass finish
	s.cancel = nil
	s.done = nil

	s.logger.Info("rotation scheduler stopped")
	return nil
}
