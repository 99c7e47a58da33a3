package types

import (
	"fmt"
	"strings"
)

// Status is the scan verdict for one target.
type Status string

// Status values.
const (
	StatusNoCompose Status = "NO_COMPOSE" // No recognized compose file.
	StatusOK        Status = "OK"         // Every service confirmed current.
	StatusUpdate    Status = "UPDATE"     // At least one service needs a pull or recreate.
	StatusRateLimit Status = "RATE_LIMIT" // The registry throttled at least one lookup.
)

// ServiceState is the verdict for one service inside a target.
type ServiceState int

// ServiceState values.
const (
	ServiceUpToDate ServiceState = iota
	ServicePullRequired
	ServiceRecreateRequired
	ServiceRateLimited
)

// String returns the label used in diagnostic trails.
func (s ServiceState) String() string {
	switch s {
	case ServicePullRequired:
		return "PULL REQUIRED"
	case ServiceRecreateRequired:
		return "RECREATE REQUIRED (ID MISMATCH)"
	case ServiceRateLimited:
		return "RATE LIMITED"
	case ServiceUpToDate:
		return "UP TO DATE"
	default:
		return "UNKNOWN"
	}
}

// ServiceCheck records what was compared for one service and the resulting verdict.
type ServiceCheck struct {
	Service Service
	Info    DigestInfo
	State   ServiceState
}

// Outcome is the result of inspecting one target.
//
// ComposeFile is empty when Status is StatusNoCompose. Services and Notes form the
// diagnostic trail; they are informational only.
type Outcome struct {
	Status      Status
	ComposeFile string
	Forced      bool
	Services    []ServiceCheck
	Notes       []string
}

// Note appends a free-form line to the diagnostic trail.
func (o *Outcome) Note(format string, args ...any) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

// Trail renders the diagnostic trail as indented plain text.
func (o Outcome) Trail() string {
	var b strings.Builder

	if o.Forced {
		b.WriteString("\n    ├─ MODE: FORCE ENABLED")
		b.WriteString("\n    └─ STATUS: UPDATE TRIGGERED BY USER")
	}

	for _, note := range o.Notes {
		b.WriteString("\n    · ")
		b.WriteString(note)
	}

	for _, check := range o.Services {
		info := check.Info
		fmt.Fprintf(&b, "\n    Service: %s", check.Service.Name)
		fmt.Fprintf(&b, "\n    ├─ Image:    %s", check.Service.Image)

		if check.State == ServiceRateLimited {
			b.WriteString("\n    └─ STATUS: " + check.State.String())

			continue
		}

		fmt.Fprintf(&b, "\n    ├─ Remote D: %s", orNA(info.RemoteDigest.Digest))
		fmt.Fprintf(&b, "\n    ├─ Local D:  %s", orNA(info.LocalDigest))
		fmt.Fprintf(&b, "\n    ├─ Local ID: %s...", ShortID(info.LocalImageID))
		fmt.Fprintf(&b, "\n    ├─ Run ID:   %s...", ShortID(info.RunningImageID))
		b.WriteString("\n    └─ STATUS: " + check.State.String())
	}

	return b.String()
}

// shortIDLength matches the truncation used for image IDs in trails.
const shortIDLength = 15

// ShortID truncates an image or container ID for display.
func ShortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}

	return id[:shortIDLength]
}

func orNA(value string) string {
	if value == "" {
		return UnknownImageID
	}

	return value
}

// Result pairs a target with its scan outcome.
type Result struct {
	Target  Target
	Outcome Outcome
}

// UpdateResult is the outcome of pulling and recreating one target.
//
// Success is true iff the recreate step exited cleanly; a failed pull is
// reported through PullErr without changing Success.
type UpdateResult struct {
	Target      Target
	PullErr     error
	RecreateErr error
}

// Success reports whether the recreate step succeeded.
func (r UpdateResult) Success() bool {
	return r.RecreateErr == nil
}
