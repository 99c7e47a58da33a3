// Package actions runs the two phases of a ship run: the concurrent scan of every
// target and the sequential update of the stacks found outdated.
//
// Key components:
//   - Scanner: Dispatches one inspection per target to a bounded worker pool, staggering
//     submissions, and streams results back in completion order.
//   - Updater: Holds the host-wide update lock while pulling and recreating each stack,
//     writing tool output to the transcript log, then optionally prunes once.
//   - RunScanAndUpdate: Scans, asks for confirmation, updates and reports.
//
// Usage example:
//
//	scanner := actions.NewScanner(inspector, actions.ScanConfig{MaxWorkers: 100, StaggerDelay: 200 * time.Millisecond})
//	report := scanner.Run(ctx, targets, observer)
//	run, err := updater.Apply(ctx, report.UpdatableTargets(), true)
//	if errors.Is(err, types.ErrAlreadyRunning) {
//	    logrus.Warn("Another update is in progress")
//	}
package actions
