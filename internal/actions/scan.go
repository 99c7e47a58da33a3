package actions

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
)

// Scan defaults.
const (
	DefaultMaxWorkers   = 100
	DefaultStaggerDelay = 200 * time.Millisecond
)

// Inspector produces the verdict for one target.
type Inspector interface {
	Inspect(ctx context.Context, target types.Target) types.Outcome
}

// ScanConfig bounds the scan's concurrency.
type ScanConfig struct {
	// MaxWorkers caps concurrently running inspections; zero means DefaultMaxWorkers.
	MaxWorkers int
	// StaggerDelay spaces consecutive submissions; zero disables staggering.
	StaggerDelay time.Duration
}

// Scanner inspects targets concurrently.
type Scanner struct {
	inspector Inspector
	config    ScanConfig
}

// NewScanner creates a Scanner.
func NewScanner(inspector Inspector, config ScanConfig) *Scanner {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultMaxWorkers
	}

	return &Scanner{inspector: inspector, config: config}
}

// Stream inspects every target and returns a channel of results in completion order.
//
// A dispatcher goroutine submits one inspection per target to the worker pool; workers
// send their result on the channel, which is closed once every submitted inspection
// has reported. Each target yields exactly one result unless ctx is cancelled, in which
// case dispatching stops and undelivered results are dropped. Callers must drain the
// channel.
//
// Parameters:
//   - ctx: Context for dispatching and for every inspection.
//   - targets: Targets to inspect.
//
// Returns:
//   - <-chan types.Result: Results in completion order.
func (s *Scanner) Stream(ctx context.Context, targets []types.Target) <-chan types.Result {
	results := make(chan types.Result)
	if len(targets) == 0 {
		close(results)

		return results
	}

	go s.dispatch(ctx, targets, results)

	return results
}

func (s *Scanner) dispatch(ctx context.Context, targets []types.Target, results chan<- types.Result) {
	defer close(results)

	workers := pool.New().WithMaxGoroutines(s.config.MaxWorkers)

	var limiter *rate.Limiter
	if s.config.StaggerDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.config.StaggerDelay), 1)
	}

	for index, target := range targets {
		err := ctx.Err()
		if err == nil && limiter != nil {
			err = limiter.Wait(ctx)
		}

		if err != nil {
			logrus.WithError(err).WithField("remaining", len(targets)-index).
				Debug("Scan dispatch cancelled")

			break
		}

		logrus.WithField("target", target.String()).Trace("Submitting inspection")

		workers.Go(func() {
			result := types.Result{Target: target, Outcome: s.inspector.Inspect(ctx, target)}

			select {
			case results <- result:
			case <-ctx.Done():
			}
		})
	}

	workers.Wait()
}

// Run scans targets and collects the results into a report.
//
// The calling goroutine acts as the collector: it reads results as they complete,
// advances the progress counter and notifies observer.
//
// Parameters:
//   - ctx: Context for the scan.
//   - targets: Targets to inspect.
//   - observer: Progress sink, or nil.
//
// Returns:
//   - *session.Report: Results in completion order; incomplete if ctx was cancelled.
func (s *Scanner) Run(ctx context.Context, targets []types.Target, observer ScanObserver) *session.Report {
	if observer == nil {
		observer = NopObserver{}
	}

	report := session.NewReport(len(targets))
	progress := session.NewProgress(len(targets))

	observer.ScanStarted(len(targets))

	for result := range s.Stream(ctx, targets) {
		report.AddResult(result)
		progress.Advance()
		observer.ResultReceived(result, progress)
	}

	observer.ScanFinished(report)

	logrus.WithFields(logrus.Fields{
		"scanned":   report.Scanned(),
		"updatable": report.Count(types.StatusUpdate),
		"duration":  report.ScanDuration(),
	}).Debug("Scan finished")

	return report
}
