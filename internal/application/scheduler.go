package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// JobClass names one independently scheduled tick loop.
type JobClass string

const (
	ClassShorts  JobClass = "shorts"
	ClassVODs    JobClass = "vods"
	ClassRefresh JobClass = "refresh"
)

// ParseJobClass validates a class name.
func ParseJobClass(s string) (JobClass, error) {
	switch c := JobClass(s); c {
	case ClassShorts, ClassVODs, ClassRefresh:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown job class %q", ErrInvalidInput, s)
	}
}

func classForKind(kind model.JobKind) JobClass {
	if kind == model.JobKindVOD {
		return ClassVODs
	}
	return ClassShorts
}

// Intervals configures how often each class ticks.
type Intervals struct {
	Shorts  time.Duration
	VODs    time.Duration
	Refresh time.Duration
}

// tokenRefresher is the slice of AccountService the scheduler needs.
type tokenRefresher interface {
	RefreshAll(ctx context.Context) (refreshed, failed int)
}

// tickRunner is the slice of JobProcessor the scheduler needs.
type tickRunner interface {
	Tick(ctx context.Context, kind model.JobKind) TickReport
}

// Scheduler drives the shorts, VOD and token refresh loops on independent
// intervals. Ticks of one class never overlap: cron skips a tick while the
// previous one is still running, and manual runs wait for the class lock.
type Scheduler struct {
	processor tickRunner
	refresher tokenRefresher
	intervals Intervals

	locks map[JobClass]*sync.Mutex
}

// NewScheduler creates a Scheduler.
func NewScheduler(processor tickRunner, refresher tokenRefresher, intervals Intervals) *Scheduler {
	return &Scheduler{
		processor: processor,
		refresher: refresher,
		intervals: intervals,
		locks: map[JobClass]*sync.Mutex{
			ClassShorts:  {},
			ClassVODs:    {},
			ClassRefresh: {},
		},
	}
}

// Start registers the three loops and blocks until ctx is canceled. On
// return all running ticks have finished.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	entries := []struct {
		class JobClass
		every time.Duration
	}{
		{ClassShorts, s.intervals.Shorts},
		{ClassVODs, s.intervals.VODs},
		{ClassRefresh, s.intervals.Refresh},
	}

	for _, e := range entries {
		if e.every <= 0 {
			return fmt.Errorf("%s interval must be positive, got %s", e.class, e.every)
		}
		class := e.class
		if _, err := c.AddFunc("@every "+e.every.String(), func() { s.run(ctx, class) }); err != nil {
			return fmt.Errorf("schedule %s: %w", class, err)
		}
	}

	c.Start()
	slog.Info("scheduler started",
		"shorts_interval", s.intervals.Shorts,
		"vods_interval", s.intervals.VODs,
		"refresh_interval", s.intervals.Refresh,
	)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
	return nil
}

// RunNow runs one tick of class immediately, waiting for any tick of the
// same class already in progress.
func (s *Scheduler) RunNow(ctx context.Context, class JobClass) (TickReport, error) {
	if _, ok := s.locks[class]; !ok {
		return TickReport{}, fmt.Errorf("%w: unknown job class %q", ErrInvalidInput, class)
	}
	return s.run(ctx, class), nil
}

func (s *Scheduler) run(ctx context.Context, class JobClass) TickReport {
	mu := s.locks[class]
	mu.Lock()
	defer mu.Unlock()

	switch class {
	case ClassShorts:
		return s.processor.Tick(ctx, model.JobKindShort)
	case ClassVODs:
		return s.processor.Tick(ctx, model.JobKindVOD)
	default:
		start := time.Now()
		refreshed, failed := s.refresher.RefreshAll(ctx)
		return TickReport{
			Class:     ClassRefresh,
			Due:       refreshed + failed,
			Succeeded: refreshed,
			Failed:    failed,
			Duration:  time.Since(start),
		}
	}
}

// cronLogger adapts cron's logger interface to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
