// Package util provides formatting helpers shared by ship's terminal output and logs.
//
// Key components:
//   - FormatDuration: Renders a duration as "1 hour, 2 minutes, 3 seconds".
//   - FormatBytes: Renders a byte count with a binary unit suffix.
package util
