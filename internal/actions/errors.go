package actions

import "errors"

var (
	// errAcquireLock indicates the update lock could not be taken for a reason other than contention.
	errAcquireLock = errors.New("failed to acquire update lock")
	// errScanIncomplete indicates the scan ended before every target produced a result.
	errScanIncomplete = errors.New("scan did not complete")
	// errUpdateAborted indicates the update phase stopped before processing every target.
	errUpdateAborted = errors.New("update aborted")
)
