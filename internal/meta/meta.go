// Package meta holds build metadata injected at link time.
package meta

var (
	// Version is the release version, set with -ldflags "-X github.com/shipctl/ship/internal/meta.Version=v1.2.3".
	Version = "v0.0.0-unknown"
	// UserAgent identifies ship in registry requests.
	UserAgent = "ship/" + Version
)
