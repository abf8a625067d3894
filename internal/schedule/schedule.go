// Package schedule fires the daily summary job on a cron expression.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rcliao/voicenote/internal/summary"
	"github.com/rcliao/voicenote/internal/trace"
)

// Runner is the job the scheduler triggers.
type Runner interface {
	RunToday(ctx context.Context) (summary.Outcome, error)
}

// Scheduler wraps a cron instance with one registered entry.
type Scheduler struct {
	cron  *cron.Cron
	entry cron.EntryID
}

// New parses spec (standard five fields, local time) and registers job.
// Fires that arrive while a previous run is still going are dropped.
func New(spec string, job Runner) (*Scheduler, error) {
	logger := slogLogger{slog.Default().With("component", "schedule")}
	c := cron.New(
		cron.WithLocation(time.Local),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(spec, func() {
		ctx, _ := trace.Ensure(context.Background())
		_, err := job.RunToday(ctx)
		if errors.Is(err, summary.ErrAlreadyRunning) {
			trace.Logger(ctx).Info("scheduled summary skipped, run in progress")
			return
		}
		if err != nil {
			trace.Logger(ctx).Error("scheduled summary failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	return &Scheduler{cron: c, entry: id}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context done when the running job exits.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next reports the next fire time after now. It works before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Schedule.Next(time.Now())
}

// Run blocks until ctx is done, then stops and waits for any in-flight run.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	slog.Info("scheduler started", "next", s.Next())
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Debug(msg, keysAndValues...)
}

func (s slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	s.l.Error(msg, append(keysAndValues, "error", err)...)
}
