// Package scheduling repeats ship runs on a cron schedule.
// It keeps at most one run active, skips ticks that fire while a run is in progress and
// waits for the active run when the schedule is stopped.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// updateWaitTimeout bounds how long shutdown waits for an active run.
const updateWaitTimeout = 60 * time.Second

// errInvalidSchedule indicates the cron specification could not be parsed.
var errInvalidSchedule = errors.New("failed to schedule runs")

// Config describes a schedule.
type Config struct {
	// Spec is the cron specification, e.g. "@every 6h" or "0 0 4 * * *".
	Spec string
	// RunOnStart triggers a run before the first tick.
	RunOnStart bool
	// Started receives the time of the first scheduled tick.
	Started func(next time.Time)
	// Skipped is called for each tick dropped because a run was active.
	Skipped func()
	// Lock serializes runs with other triggers such as the HTTP API; nil creates a private one.
	Lock chan bool
}

// NewUpdateLock returns a run lock in its released state.
func NewUpdateLock() chan bool {
	lock := make(chan bool, 1)
	lock <- true

	return lock
}

// WaitForRunningUpdate waits for any currently running update to complete before proceeding with shutdown.
//
// Parameters:
//   - ctx: The context for cancellation; shutdown proceeds once it is done.
//   - lock: The channel used to synchronize runs, empty while one is active.
func WaitForRunningUpdate(ctx context.Context, lock chan bool) {
	logrus.Debug("Checking lock status before shutdown.")

	if len(lock) == 0 {
		select {
		case <-lock:
			logrus.Debug("Lock acquired, run finished.")
		case <-time.After(updateWaitTimeout):
			logrus.Warn("Timeout waiting for running update to finish, proceeding with shutdown.")
		case <-ctx.Done():
			logrus.Warn("Context cancelled while waiting for running update.")
		}
	} else {
		logrus.Debug("No run active, lock available.")
	}

	logrus.Debug("Lock check completed.")
}

// RunOnSchedule executes run according to config until ctx is cancelled.
//
// Runs never overlap: a tick that fires while a run is active is skipped and reported
// through config.Skipped. When ctx is cancelled the scheduler stops and the active run,
// which sees the same cancellation, is given up to a minute to return.
//
// Parameters:
//   - ctx: Context controlling the scheduler's lifecycle; passed to every run.
//   - config: Schedule configuration.
//   - run: Function performing one scan and update run.
//
// Returns:
//   - error: Non-nil if the cron specification is invalid, nil on shutdown.
func RunOnSchedule(ctx context.Context, config Config, run func(ctx context.Context)) error {
	lock := config.Lock
	if lock == nil {
		lock = NewUpdateLock()
	}

	schedule, err := cron.Parse(config.Spec)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidSchedule, err)
	}

	runFunc := func() {
		select {
		case v := <-lock:
			run(ctx)
			lock <- v

			logrus.Debug("Scheduled run completed")
		default:
			if config.Skipped != nil {
				config.Skipped()
			}

			logrus.Debug("Skipped tick, another run is still active.")
		}

		logrus.Debug("Scheduled next run: " + schedule.Next(time.Now()).String())
	}

	scheduler := cron.New()
	scheduler.Schedule(schedule, cron.FuncJob(runFunc))

	if config.Started != nil {
		config.Started(schedule.Next(time.Now()))
	}

	if config.RunOnStart {
		runFunc()
	}

	scheduler.Start()

	<-ctx.Done()
	logrus.Debug("Context canceled, stopping scheduler...")

	scheduler.Stop()
	logrus.Debug("Waiting for running update to be finished...")

	WaitForRunningUpdate(context.WithoutCancel(ctx), lock)
	logrus.Debug("Scheduler stopped and update completed.")

	return nil
}
