package actions

import (
	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
)

// ScanObserver receives scan progress from the collector goroutine.
type ScanObserver interface {
	ScanStarted(total int)
	ResultReceived(result types.Result, progress *session.Progress)
	ScanFinished(report *session.Report)
}

// UpdateObserver receives per-stack events from the update phase.
type UpdateObserver interface {
	StackStarted(target types.Target)
	PullFinished(target types.Target, err error)
	RecreateStarted(target types.Target)
	StackFinished(result types.UpdateResult)
	PruneFinished(report types.PruneReport, err error)
}

// Observer is everything RunScanAndUpdate reports to.
type Observer interface {
	ScanObserver
	UpdateObserver
	// Summary presents the scan verdicts before confirmation.
	Summary(report *session.Report, force bool)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ScanStarted(int) {}
func (NopObserver) ResultReceived(types.Result, *session.Progress) {}
func (NopObserver) ScanFinished(*session.Report) {}
func (NopObserver) StackStarted(types.Target) {}
func (NopObserver) PullFinished(types.Target, error) {}
func (NopObserver) RecreateStarted(types.Target) {}
func (NopObserver) StackFinished(types.UpdateResult) {}
func (NopObserver) PruneFinished(types.PruneReport, error) {}
func (NopObserver) Summary(*session.Report, bool) {}
