package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/shipctl/ship/pkg/stack"
	"github.com/shipctl/ship/pkg/types"
)

// DefaultTranscriptName is the transcript file name placed in the user's home directory.
const DefaultTranscriptName = ".ship_errors.log"

const transcriptFileMode = 0o644

// Locker is the exclusive update lock.
type Locker interface {
	// TryLock acquires the lock without waiting, returning types.ErrAlreadyRunning when held elsewhere.
	TryLock() error
	// Unlock releases the lock and removes its artifact.
	Unlock() error
}

// UpdaterDeps are the collaborators of an Updater.
type UpdaterDeps struct {
	Compose        types.ComposeProject
	Pruner         types.ImagePruner
	Locker         Locker
	Fs             afero.Fs
	TranscriptPath string
	Observer       UpdateObserver
	// Now stamps transcript markers; nil means time.Now.
	Now func() time.Time
}

// Updater pulls and recreates stacks one at a time.
type Updater struct {
	deps UpdaterDeps
}

// UpdateRun is the outcome of one update phase.
type UpdateRun struct {
	Results  []types.UpdateResult
	Pruned   bool
	Prune    types.PruneReport
	PruneErr error
}

// NewUpdater creates an Updater.
func NewUpdater(deps UpdaterDeps) *Updater {
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}

	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Updater{deps: deps}
}

// Apply updates every target in order while holding the update lock.
//
// The lock is taken without waiting; if another run holds it nothing is pulled or
// recreated. For each target the stack's images are pulled and its containers
// force-recreated; a failed pull still attempts the recreate, and a failed stack never
// stops the remaining ones. Tool output is appended to the transcript. With prune set,
// dangling images are pruned once after the last target. The lock is released and its
// file removed on every return path once acquired.
//
// Parameters:
//   - ctx: Context; cancellation stops before the next target.
//   - targets: Stacks to update, in order.
//   - prune: Whether to prune dangling images afterwards.
//
// Returns:
//   - UpdateRun: Per-target results and the prune outcome.
//   - error: types.ErrAlreadyRunning if the lock is held, or an error if the run was aborted.
func (u *Updater) Apply(ctx context.Context, targets []types.Target, prune bool) (UpdateRun, error) {
	if err := u.deps.Locker.TryLock(); err != nil {
		if errors.Is(err, types.ErrAlreadyRunning) {
			return UpdateRun{}, err
		}

		return UpdateRun{}, fmt.Errorf("%w: %w", errAcquireLock, err)
	}

	defer func() {
		if err := u.deps.Locker.Unlock(); err != nil {
			logrus.WithError(err).Warn("Failed to release update lock")
		}
	}()

	transcript, closeTranscript := u.openTranscript()
	defer closeTranscript()

	fmt.Fprintf(transcript, "\n==== ship update run %s: %d stacks ====\n",
		u.deps.Now().Format(time.RFC3339), len(targets))

	var run UpdateRun

	for index, target := range targets {
		if err := ctx.Err(); err != nil {
			return run, fmt.Errorf("%w: %d of %d stacks processed: %w", errUpdateAborted, index, len(targets), err)
		}

		run.Results = append(run.Results, u.updateStack(ctx, target, transcript))
	}

	if prune {
		run.Pruned = true
		run.Prune, run.PruneErr = u.deps.Pruner.PruneImages(ctx)
		u.deps.Observer.PruneFinished(run.Prune, run.PruneErr)

		if run.PruneErr != nil {
			fmt.Fprintf(transcript, "prune failed: %v\n", run.PruneErr)
		}
	}

	return run, nil
}

func (u *Updater) updateStack(ctx context.Context, target types.Target, transcript io.Writer) types.UpdateResult {
	clog := logrus.WithField("target", target.String())
	u.deps.Observer.StackStarted(target)

	result := types.UpdateResult{Target: target}

	file, ok := stack.FindComposeFile(u.deps.Fs, target.Path)
	if !ok {
		result.RecreateErr = types.ErrNoCompose
		clog.Warn("Compose file disappeared before update")
		u.deps.Observer.StackFinished(result)

		return result
	}

	fmt.Fprintf(transcript, "---- %s %s (%s) ----\n", u.deps.Now().Format(time.RFC3339), target.String(), file)

	clog.WithField("file", file).Debug("Pulling stack images")

	result.PullErr = u.deps.Compose.Pull(ctx, file, transcript)
	if result.PullErr != nil {
		fmt.Fprintf(transcript, "pull failed: %v\n", result.PullErr)
		clog.WithError(result.PullErr).Debug("Pull failed, recreating anyway")
	}

	u.deps.Observer.PullFinished(target, result.PullErr)
	u.deps.Observer.RecreateStarted(target)

	result.RecreateErr = u.deps.Compose.Up(ctx, file, transcript)
	if result.RecreateErr != nil {
		fmt.Fprintf(transcript, "recreate failed: %v\n", result.RecreateErr)
		clog.WithError(result.RecreateErr).Debug("Recreate failed")
	}

	u.deps.Observer.StackFinished(result)

	return result
}

// openTranscript opens the transcript for appending, falling back to discarding output.
func (u *Updater) openTranscript() (io.Writer, func()) {
	if u.deps.TranscriptPath == "" {
		return io.Discard, func() {}
	}

	file, err := u.deps.Fs.OpenFile(u.deps.TranscriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, transcriptFileMode)
	if err != nil {
		logrus.WithError(err).WithField("path", u.deps.TranscriptPath).Warn("Could not open update transcript")

		return io.Discard, func() {}
	}

	return file, func() {
		if err := file.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close update transcript")
		}
	}
}
