// Package logging writes ship's startup information for scheduled operation.
// It reports the version, the Docker API in use, the notification setup and the schedule.
package logging

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/internal/util"
)

// scheduleLayout formats the first scheduled run.
const scheduleLayout = "2006-01-02 15:04:05 -0700 MST"

// StartupInfo is what WriteStartupMessage reports.
type StartupInfo struct {
	Version    string
	APIVersion string
	Notifiers  []string
	Targets    string
	// NextRun is the first scheduled run, or zero for a single run.
	NextRun time.Time
	// APIAddr is the HTTP API listen address, empty when the API is off.
	APIAddr string
	// UpdateAPI reports that runs can be triggered through the HTTP API.
	UpdateAPI bool
}

// WriteStartupMessage logs startup information.
//
// Parameters:
//   - log: The logrus.Entry to write to.
//   - info: Values to report.
func WriteStartupMessage(log *logrus.Entry, info StartupInfo) {
	log.Info("ship ", info.Version, " using Docker API v", info.APIVersion)

	LogNotifierInfo(log, info.Notifiers)

	if info.Targets != "" {
		log.Debug(info.Targets)
	}

	if info.APIAddr != "" {
		log.Info("Serving the HTTP API on " + info.APIAddr)
	}

	if info.NextRun.IsZero() && info.UpdateAPI {
		log.Info("Waiting for update requests on the HTTP API.")
	} else {
		LogScheduleInfo(log, info.NextRun)
	}

	// Warn about trace-level logging if enabled, as it may expose sensitive data.
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		log.Warn(
			"Trace level enabled: log will include sensitive information as credentials and tokens",
		)
	}
}

// LogNotifierInfo logs the configured notification services.
//
// Parameters:
//   - log: The logrus.Entry used to write the notification information.
//   - notifierNames: Names of configured services (e.g., "discord, ntfy").
func LogNotifierInfo(log *logrus.Entry, notifierNames []string) {
	if len(notifierNames) > 0 {
		log.Info("Using notifications: " + strings.Join(notifierNames, ", "))
	} else {
		log.Info("Using no notifications")
	}
}

// LogScheduleInfo logs when the next run happens.
//
// Parameters:
//   - log: The logrus.Entry used to write the schedule information.
//   - next: The first scheduled run, or zero for a single run.
func LogScheduleInfo(log *logrus.Entry, next time.Time) {
	if next.IsZero() {
		log.Info("Running a one time scan.")

		return
	}

	until := util.FormatDuration(time.Until(next))
	log.Info("Scheduling next run: " + next.Format(scheduleLayout))
	log.Info("Note that the next check will be performed in " + until)
}
