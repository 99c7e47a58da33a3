// Package update provides the HTTP handler that triggers ship runs.
//
// A POST to /v1/update scans and updates every configured stack; "dir" query parameters
// restrict the run to those stack directories. Runs share a lock with the scheduler, so
// at most one run is active at a time.
//
// Usage example:
//
//	handler := update.New(runFn, lock)
//	server.RegisterFunc(handler.Path, handler.Handle)
package update
