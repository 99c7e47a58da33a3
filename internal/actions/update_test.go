package actions_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"

	"github.com/shipctl/ship/internal/actions"
	"github.com/shipctl/ship/pkg/lock"
	"github.com/shipctl/ship/pkg/session"
	"github.com/shipctl/ship/pkg/types"
	"github.com/shipctl/ship/pkg/types/mocks"
)

const transcriptPath = "/home/ship/.ship_errors.log"

// recordingObserver keeps every event as a readable line.
type recordingObserver struct {
	actions.NopObserver

	started  int
	progress []string
	finished bool
	events   []string
	summary  bool
}

func (o *recordingObserver) ScanStarted(total int) { o.started = total }

func (o *recordingObserver) ResultReceived(_ types.Result, progress *session.Progress) {
	o.progress = append(o.progress, progress.String())
}

func (o *recordingObserver) ScanFinished(*session.Report) { o.finished = true }

func (o *recordingObserver) Summary(*session.Report, bool) { o.summary = true }

func (o *recordingObserver) StackStarted(target types.Target) {
	o.events = append(o.events, "start "+target.Name)
}

func (o *recordingObserver) PullFinished(target types.Target, err error) {
	o.events = append(o.events, fmt.Sprintf("pulled %s err=%t", target.Name, err != nil))
}

func (o *recordingObserver) RecreateStarted(target types.Target) {
	o.events = append(o.events, "recreate "+target.Name)
}

func (o *recordingObserver) StackFinished(result types.UpdateResult) {
	o.events = append(o.events, fmt.Sprintf("done %s success=%t", result.Target.Name, result.Success()))
}

func (o *recordingObserver) PruneFinished(report types.PruneReport, _ error) {
	o.events = append(o.events, fmt.Sprintf("pruned %d", report.ImagesDeleted))
}

// stackTarget creates a compose file for name in fs and returns its target.
func stackTarget(fs afero.Fs, name string) types.Target {
	dir := "/stacks/" + name
	gomega.Expect(afero.WriteFile(fs, dir+"/compose.yaml", []byte("services: {}\n"), 0o644)).To(gomega.Succeed())

	return types.Target{Path: dir, Name: name}
}

func composeFileOf(target types.Target) string {
	return target.Path + "/compose.yaml"
}

func writeOutput(text string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		fmt.Fprint(args.Get(2).(io.Writer), text)
	}
}

var _ = ginkgo.Describe("the updater", func() {
	var (
		fs       afero.Fs
		project  *mocks.ComposeProject
		pruner   *mocks.ImagePruner
		locker   *lock.FileLock
		observer *recordingObserver
		updater  *actions.Updater
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		fs = afero.NewMemMapFs()
		project = &mocks.ComposeProject{}
		pruner = &mocks.ImagePruner{}
		locker = lock.New(filepath.Join(ginkgo.GinkgoT().TempDir(), "ship.pid"))
		observer = &recordingObserver{}
		ctx = context.Background()

		updater = actions.NewUpdater(actions.UpdaterDeps{
			Compose:        project,
			Pruner:         pruner,
			Locker:         locker,
			Fs:             fs,
			TranscriptPath: transcriptPath,
			Observer:       observer,
			Now:            func() time.Time { return time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC) },
		})
	})

	ginkgo.It("should keep going after a failed recreate and prune once", func() {
		first, second := stackTarget(fs, "gitea"), stackTarget(fs, "immich")

		project.On("Pull", mock.Anything, composeFileOf(first), mock.Anything).Return(nil).Run(writeOutput("gitea pulled\n"))
		project.On("Up", mock.Anything, composeFileOf(first), mock.Anything).Return(nil)
		project.On("Pull", mock.Anything, composeFileOf(second), mock.Anything).Return(nil)
		project.On("Up", mock.Anything, composeFileOf(second), mock.Anything).
			Return(fmt.Errorf("%w: exit status 1", types.ErrUpdateStepFailed)).Run(writeOutput("container name in use\n"))
		pruner.On("PruneImages", mock.Anything).Return(types.PruneReport{ImagesDeleted: 3}, nil).Once()

		run, err := updater.Apply(ctx, []types.Target{first, second}, true)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(run.Results).To(gomega.HaveLen(2))
		gomega.Expect(run.Results[0].Success()).To(gomega.BeTrue())
		gomega.Expect(run.Results[1].Success()).To(gomega.BeFalse())
		gomega.Expect(run.Results[1].RecreateErr).To(gomega.MatchError(types.ErrUpdateStepFailed))
		gomega.Expect(run.Pruned).To(gomega.BeTrue())
		gomega.Expect(run.Prune.ImagesDeleted).To(gomega.Equal(3))

		gomega.Expect(observer.events).To(gomega.Equal([]string{
			"start gitea", "pulled gitea err=false", "recreate gitea", "done gitea success=true",
			"start immich", "pulled immich err=false", "recreate immich", "done immich success=false",
			"pruned 3",
		}))

		pruner.AssertNumberOfCalls(ginkgo.GinkgoT(), "PruneImages", 1)
		project.AssertExpectations(ginkgo.GinkgoT())

		_, statErr := os.Stat(locker.Path())
		gomega.Expect(os.IsNotExist(statErr)).To(gomega.BeTrue())
		gomega.Expect(locker.Held()).To(gomega.BeFalse())

		transcript, err := afero.ReadFile(fs, transcriptPath)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(string(transcript)).To(gomega.ContainSubstring("==== ship update run 2026-03-01T04:00:00Z: 2 stacks ===="))
		gomega.Expect(string(transcript)).To(gomega.ContainSubstring("gitea pulled"))
		gomega.Expect(string(transcript)).To(gomega.ContainSubstring("container name in use"))
		gomega.Expect(string(transcript)).To(gomega.ContainSubstring("recreate failed"))
	})

	ginkgo.It("should recreate even when the pull fails", func() {
		target := stackTarget(fs, "gitea")
		pullErr := fmt.Errorf("%w: pull access denied", types.ErrUpdateStepFailed)

		project.On("Pull", mock.Anything, composeFileOf(target), mock.Anything).Return(pullErr)
		project.On("Up", mock.Anything, composeFileOf(target), mock.Anything).Return(nil)

		run, err := updater.Apply(ctx, []types.Target{target}, false)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(run.Results[0].PullErr).To(gomega.MatchError(pullErr))
		gomega.Expect(run.Results[0].Success()).To(gomega.BeTrue())
		gomega.Expect(run.Pruned).To(gomega.BeFalse())
		pruner.AssertNotCalled(ginkgo.GinkgoT(), "PruneImages", mock.Anything)
	})

	ginkgo.It("should not touch any stack while another run holds the lock", func() {
		target := stackTarget(fs, "gitea")

		holder := lock.New(locker.Path())
		gomega.Expect(holder.TryLock()).To(gomega.Succeed())

		defer func() { gomega.Expect(holder.Unlock()).To(gomega.Succeed()) }()

		run, err := updater.Apply(ctx, []types.Target{target}, true)

		gomega.Expect(err).To(gomega.MatchError(types.ErrAlreadyRunning))
		gomega.Expect(run.Results).To(gomega.BeEmpty())
		project.AssertNotCalled(ginkgo.GinkgoT(), "Pull", mock.Anything, mock.Anything, mock.Anything)
		project.AssertNotCalled(ginkgo.GinkgoT(), "Up", mock.Anything, mock.Anything, mock.Anything)
		pruner.AssertNotCalled(ginkgo.GinkgoT(), "PruneImages", mock.Anything)

		_, statErr := os.Stat(locker.Path())
		gomega.Expect(statErr).NotTo(gomega.HaveOccurred())
	})

	ginkgo.It("should fail a stack whose compose file vanished", func() {
		target := types.Target{Path: "/stacks/gone", Name: "gone"}

		run, err := updater.Apply(ctx, []types.Target{target}, false)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(run.Results[0].RecreateErr).To(gomega.MatchError(types.ErrNoCompose))
		project.AssertNotCalled(ginkgo.GinkgoT(), "Pull", mock.Anything, mock.Anything, mock.Anything)
	})

	ginkgo.It("should stop before the next stack when cancelled", func() {
		first, second := stackTarget(fs, "gitea"), stackTarget(fs, "immich")
		cancelCtx, cancel := context.WithCancel(ctx)

		project.On("Pull", mock.Anything, composeFileOf(first), mock.Anything).Return(nil)
		project.On("Up", mock.Anything, composeFileOf(first), mock.Anything).Return(nil).
			Run(func(mock.Arguments) { cancel() })

		run, err := updater.Apply(cancelCtx, []types.Target{first, second}, true)

		gomega.Expect(err).To(gomega.MatchError(context.Canceled))
		gomega.Expect(run.Results).To(gomega.HaveLen(1))
		project.AssertNotCalled(ginkgo.GinkgoT(), "Pull", mock.Anything, composeFileOf(second), mock.Anything)
		pruner.AssertNotCalled(ginkgo.GinkgoT(), "PruneImages", mock.Anything)
		gomega.Expect(locker.Held()).To(gomega.BeFalse())
	})

	ginkgo.It("should still update when the transcript cannot be opened", func() {
		target := stackTarget(fs, "gitea")
		updater = actions.NewUpdater(actions.UpdaterDeps{
			Compose:        project,
			Pruner:         pruner,
			Locker:         locker,
			Fs:             afero.NewReadOnlyFs(fs),
			TranscriptPath: transcriptPath,
		})

		project.On("Pull", mock.Anything, composeFileOf(target), mock.Anything).Return(nil)
		project.On("Up", mock.Anything, composeFileOf(target), mock.Anything).Return(nil)

		run, err := updater.Apply(ctx, []types.Target{target}, false)

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(run.Results[0].Success()).To(gomega.BeTrue())
	})

	ginkgo.It("should report lock failures other than contention", func() {
		updater = actions.NewUpdater(actions.UpdaterDeps{
			Compose: project,
			Pruner:  pruner,
			Locker:  lock.New(filepath.Join(ginkgo.GinkgoT().TempDir(), "missing", "ship.pid")),
			Fs:      fs,
		})

		_, err := updater.Apply(ctx, []types.Target{stackTarget(fs, "gitea")}, false)

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(errors.Is(err, types.ErrAlreadyRunning)).To(gomega.BeFalse())
	})
})
