// Package refresh periodically replaces in-memory snapshots with the contents of the store.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reloader replaces its in-memory state wholesale from the backing store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Target names a Reloader for logging.
type Target struct {
	Name     string
	Reloader Reloader
}

// Refresher runs every target on a cron schedule. A tick that is still running when the
// next one fires is skipped. Failures are logged and never stop the schedule.
type Refresher struct {
	cron    *cron.Cron
	targets []Target
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Refresher for schedule, a standard cron expression or descriptor such as
// "@every 1m", evaluated in loc.
func New(schedule string, loc *time.Location, logger *slog.Logger, targets ...Target) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	logger = logger.With("component", "refresh")

	adapter := cronLogger{logger: logger}
	r := &Refresher{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		targets: targets,
		timeout: 30 * time.Second,
		logger:  logger,
	}

	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the schedule in its own goroutine.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running tick to finish or ctx to expire.
func (r *Refresher) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce reloads every target in order and returns the joined failures.
func (r *Refresher) RunOnce(ctx context.Context) error {
	var errs []error
	for _, target := range r.targets {
		if target.Reloader == nil {
			continue
		}
		if err := target.Reloader.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	started := time.Now()
	if err := r.RunOnce(ctx); err != nil {
		r.logger.ErrorContext(ctx, "snapshot refresh failed", "error", err)
		return
	}
	r.logger.DebugContext(ctx, "snapshot refreshed", "duration_ms", time.Since(started).Milliseconds())
}

// cronLogger forwards cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
