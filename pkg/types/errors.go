package types

import "errors"

// Error taxonomy shared by the scan and update phases.
var (
	// ErrNoCompose indicates the target holds no recognized compose file.
	ErrNoCompose = errors.New("no compose file found")
	// ErrRateLimited indicates the registry throttled a lookup.
	ErrRateLimited = errors.New("registry rate limit reached")
	// ErrNotFound indicates the registry or daemon produced no answer for a reference.
	ErrNotFound = errors.New("not found")
	// ErrLookupUnavailable indicates an external lookup failed or timed out.
	ErrLookupUnavailable = errors.New("lookup unavailable")
	// ErrAlreadyRunning indicates another update run holds the update lock.
	ErrAlreadyRunning = errors.New("another update is already running")
	// ErrUpdateStepFailed indicates a pull or recreate exited with an error.
	ErrUpdateStepFailed = errors.New("update step failed")
)
