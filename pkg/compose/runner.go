package compose

import (
	"context"
	"io"
	"os/exec"
	"time"
)

// DefaultBinary is the executable hosting the compose plugin.
const DefaultBinary = "docker"

// waitDelay bounds how long a cancelled command may keep its output pipes open.
const waitDelay = 5 * time.Second

// Runner executes the compose binary with the given arguments.
type Runner interface {
	Run(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// ExecRunner runs the real binary as a child process.
type ExecRunner struct {
	// Binary overrides DefaultBinary when set.
	Binary string
}

// Run starts the binary and waits for it, streaming output to stdout and stderr.
//
// Parameters:
//   - ctx: Context; cancellation kills the child process.
//   - args: Arguments after the binary name.
//   - stdout: Sink for standard output.
//   - stderr: Sink for standard error.
//
// Returns:
//   - error: Non-nil if the process could not start or exited non-zero.
func (r ExecRunner) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	return cmd.Run()
}
