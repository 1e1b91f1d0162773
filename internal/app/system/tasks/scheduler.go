// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work. Spec is a cron expression with a
// leading seconds field (e.g. "0 */10 * * * *").
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs Jobs on their cron schedules. A job that is still running
// when its next tick fires is skipped rather than overlapped.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	return &Scheduler{cron: c, log: logger}
}

// Add registers a job. It returns an error if the schedule does not parse.
func (s *Scheduler) Add(j Job) error {
	if j.Run == nil {
		return fmt.Errorf("job %q has no Run func", j.Name)
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	_, err := s.cron.AddFunc(j.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		if err := j.Run(ctx); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", j.Name), zap.Error(err))
			return
		}
		s.log.Debug("scheduled job finished", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %q (%s): %w", j.Name, j.Spec, err)
	}
	return nil
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("task scheduler started", zap.Int("jobs", s.Len()))
}

// Stop halts the schedule and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.log.Info("task scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("task scheduler stop timed out; jobs still running")
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Sugar().Debugw("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Sugar().Errorw("cron: "+msg, append(kv, "error", err)...)
}
