package session

import (
	"time"

	"github.com/shipctl/ship/pkg/types"
)

// Report holds the results of one run.
//
// A Report is filled by a single collector goroutine and is not safe for concurrent
// mutation.
type Report struct {
	total    int
	started  time.Time
	scanned  time.Time
	results  []types.Result
	updates  []types.UpdateResult
	prune    *types.PruneReport
	pruneErr error
}

// NewReport creates a Report expecting total scan results.
func NewReport(total int) *Report {
	return &Report{total: total, started: time.Now(), results: make([]types.Result, 0, total)}
}

// AddResult records a scan result; results are kept in arrival order.
func (r *Report) AddResult(result types.Result) {
	r.results = append(r.results, result)
	if len(r.results) == r.total {
		r.scanned = time.Now()
	}
}

// Total returns the number of targets the scan was started with.
func (r *Report) Total() int {
	return r.total
}

// Results returns every scan result in completion order.
func (r *Report) Results() []types.Result {
	return r.results
}

// Scanned returns how many targets produced a result.
func (r *Report) Scanned() int {
	return len(r.results)
}

// Complete reports whether every target produced a result.
func (r *Report) Complete() bool {
	return len(r.results) == r.total
}

// Count returns how many results carry status.
func (r *Report) Count(status types.Status) int {
	count := 0

	for _, result := range r.results {
		if result.Outcome.Status == status {
			count++
		}
	}

	return count
}

// Updatable returns the UPDATE results in completion order.
func (r *Report) Updatable() []types.Result {
	return r.filter(types.StatusUpdate)
}

// RateLimited returns the results whose state could not be confirmed due to throttling.
func (r *Report) RateLimited() []types.Result {
	return r.filter(types.StatusRateLimit)
}

// UpdatableTargets returns the targets of Updatable.
func (r *Report) UpdatableTargets() []types.Target {
	updatable := r.Updatable()

	targets := make([]types.Target, 0, len(updatable))
	for _, result := range updatable {
		targets = append(targets, result.Target)
	}

	return targets
}

// ScanDuration returns the time from creation until the last scan result arrived.
func (r *Report) ScanDuration() time.Duration {
	if r.scanned.IsZero() {
		return time.Since(r.started)
	}

	return r.scanned.Sub(r.started)
}

// AddUpdates records the update phase results.
func (r *Report) AddUpdates(results []types.UpdateResult) {
	r.updates = append(r.updates, results...)
}

// Updates returns every update result in execution order.
func (r *Report) Updates() []types.UpdateResult {
	return r.updates
}

// Updated returns the update results whose recreate succeeded.
func (r *Report) Updated() []types.UpdateResult {
	return r.updateFilter(true)
}

// Failed returns the update results whose recreate failed.
func (r *Report) Failed() []types.UpdateResult {
	return r.updateFilter(false)
}

// SetPrune records the outcome of the post-update prune.
func (r *Report) SetPrune(report types.PruneReport, err error) {
	r.prune = &report
	r.pruneErr = err
}

// Prune returns the prune outcome, or nil if no prune ran.
func (r *Report) Prune() (*types.PruneReport, error) {
	return r.prune, r.pruneErr
}

func (r *Report) filter(status types.Status) []types.Result {
	var out []types.Result

	for _, result := range r.results {
		if result.Outcome.Status == status {
			out = append(out, result)
		}
	}

	return out
}

func (r *Report) updateFilter(success bool) []types.UpdateResult {
	var out []types.UpdateResult

	for _, result := range r.updates {
		if result.Success() == success {
			out = append(out, result)
		}
	}

	return out
}
