package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/pkg/metrics"
	"github.com/shipctl/ship/pkg/notifications"
	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
)

// RunParams configures RunScanAndUpdate.
type RunParams struct {
	Targets []types.Target
	Force   bool
	Prune   bool
	// Confirm is asked before updating; nil proceeds without asking.
	Confirm func(report *session.Report) bool
	// Observer presents progress; nil discards it.
	Observer Observer
	// Metrics records the run when set, written to MetricsFile when that is set too.
	Metrics     *metrics.Metrics
	MetricsFile string
	// Notifier sends the run summary when set.
	Notifier *notifications.Notifier
	// Stats reads the cumulative registry counters; nil reports zeros.
	Stats func() metrics.RegistryStats
}

// RunScanAndUpdate scans every target, then updates the outdated stacks.
//
// Updates only start after a complete scan, when at least one stack is updatable and
// Confirm approves. Metrics and notifications are recorded for every completed scan.
//
// Parameters:
//   - ctx: Context for the run.
//   - scanner: Scan phase.
//   - updater: Update phase.
//   - params: Run configuration.
//
// Returns:
//   - *session.Report: The run's report.
//   - error: types.ErrAlreadyRunning if another update holds the lock, or an error if
//     the scan or update was cut short.
func RunScanAndUpdate(
	ctx context.Context,
	scanner *Scanner,
	updater *Updater,
	params RunParams,
) (*session.Report, error) {
	observer := params.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	before := readStats(params.Stats)

	report := scanner.Run(ctx, params.Targets, observer)
	if !report.Complete() {
		return report, fmt.Errorf("%w: %d of %d stacks scanned: %w",
			errScanIncomplete, report.Scanned(), report.Total(), ctx.Err())
	}

	observer.Summary(report, params.Force)

	var runErr error

	updatable := report.UpdatableTargets()
	if len(updatable) > 0 && (params.Confirm == nil || params.Confirm(report)) {
		run, err := updater.Apply(ctx, updatable, params.Prune)
		report.AddUpdates(run.Results)

		if run.Pruned {
			report.SetPrune(run.Prune, run.PruneErr)
		}

		if err != nil {
			runErr = err
		}
	}

	after := readStats(params.Stats)
	record(report, params, metrics.RegistryStats{
		Requests:    after.Requests - before.Requests,
		RateLimited: after.RateLimited - before.RateLimited,
	})

	logrus.WithFields(logrus.Fields{
		"scanned":   report.Scanned(),
		"updatable": len(updatable),
		"updated":   len(report.Updated()),
		"failed":    len(report.Failed()),
	}).Info("Update session completed")

	return report, runErr
}

func record(report *session.Report, params RunParams, stats metrics.RegistryStats) {
	if params.Metrics != nil {
		params.Metrics.Observe(metrics.NewMetric(report, stats))

		if params.MetricsFile != "" {
			if err := params.Metrics.WriteTextfile(params.MetricsFile); err != nil {
				logrus.WithError(err).Warn("Failed to write metrics file")
			}
		}
	}

	if params.Notifier != nil {
		if err := params.Notifier.Notify(report); err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithError(err).Warn("Failed to send notification")
		}
	}
}

func readStats(stats func() metrics.RegistryStats) metrics.RegistryStats {
	if stats == nil {
		return metrics.RegistryStats{}
	}

	return stats()
}
