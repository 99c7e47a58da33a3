package stack_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"

	"github.com/shipctl/ship/pkg/registry"
	"github.com/shipctl/ship/pkg/stack"
	"github.com/shipctl/ship/pkg/types"
	"github.com/shipctl/ship/pkg/types/mocks"
)

var (
	digestA = "sha256:" + strings.Repeat("a", 64)
	digestB = "sha256:" + strings.Repeat("b", 64)
	digestI = "sha256:" + strings.Repeat("1", 64)
)

const (
	stackDir    = "/stacks/web"
	composeFile = "/stacks/web/docker-compose.yml"
)

var _ = ginkgo.Describe("the stack inspector", func() {
	var (
		fs         afero.Fs
		project    *mocks.ComposeProject
		images     *mocks.ImageInspector
		containers *mocks.ContainerInspector
		resolver   *mocks.DigestResolver
		target     types.Target
		ctx        context.Context
	)

	newInspector := func(config stack.Config) *stack.Inspector {
		if config.Arch == "" {
			config.Arch = "amd64"
		}

		return stack.NewInspector(config, stack.Dependencies{
			Fs:         fs,
			Compose:    project,
			Images:     images,
			Containers: containers,
			Resolver:   resolver,
		})
	}

	// oneService wires a stack with a single running "app" service on nginx:latest.
	oneService := func(local string, remote types.RemoteDigest, localID, runningID string) {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{"app": "c1"}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: localID, RepoDigests: []string{"nginx@" + local}}, nil)
		containers.On("RunningImageID", mock.Anything, "c1").Return(runningID, nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").Return(remote, nil)
	}

	ginkgo.BeforeEach(func() {
		fs = afero.NewMemMapFs()
		gomega.Expect(afero.WriteFile(fs, composeFile, []byte("services: {}\n"), 0o644)).To(gomega.Succeed())

		project = &mocks.ComposeProject{}
		images = &mocks.ImageInspector{}
		containers = &mocks.ContainerInspector{}
		resolver = &mocks.DigestResolver{}
		target = types.Target{Path: stackDir, Name: "web"}
		ctx = context.Background()
	})

	ginkgo.It("should report OK when every identity matches", func() {
		oneService(digestA, types.RemoteDigest{Digest: digestA, Index: digestA}, "id1", "id1")

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusOK))
		gomega.Expect(outcome.ComposeFile).To(gomega.Equal(composeFile))
		gomega.Expect(outcome.Services).To(gomega.HaveLen(1))
		gomega.Expect(outcome.Services[0].State).To(gomega.Equal(types.ServiceUpToDate))
	})

	ginkgo.It("should report UPDATE and flag a pull when the remote digest moved", func() {
		oneService(digestA, types.RemoteDigest{Digest: digestB, Index: digestB}, "id1", "id1")

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusUpdate))
		gomega.Expect(outcome.Services[0].State).To(gomega.Equal(types.ServicePullRequired))
		gomega.Expect(outcome.Trail()).To(gomega.ContainSubstring("PULL REQUIRED"))
	})

	ginkgo.It("should report UPDATE when the running container lags the local image", func() {
		oneService(digestA, types.RemoteDigest{Digest: digestA, Index: digestA}, "id1", "id0")

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusUpdate))
		gomega.Expect(outcome.Services[0].State).To(gomega.Equal(types.ServiceRecreateRequired))
	})

	ginkgo.It("should accept a local digest equal to the index of a multi-platform image", func() {
		oneService(digestI, types.RemoteDigest{Digest: digestA, Index: digestI}, "id1", "id1")

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusOK))
	})

	ginkgo.It("should report RATE_LIMIT when the only lookup is throttled", func() {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{"app": "c1"}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "c1").Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{}, types.ErrRateLimited)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusRateLimit))
		gomega.Expect(outcome.Services[0].State).To(gomega.Equal(types.ServiceRateLimited))
	})

	ginkgo.It("should let a rate limit win over an update in the same stack", func() {
		project.On("Containers", mock.Anything, composeFile).
			Return(map[string]string{"app": "c1", "db": "c2"}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{
			{Name: "app", Image: "nginx:latest"},
			{Name: "db", Image: "postgres:17"},
		}}, nil)
		images.On("LocalImage", mock.Anything, mock.Anything).
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, mock.Anything).Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestB, Index: digestB}, nil)
		resolver.On("Resolve", mock.Anything, "postgres:17", "amd64").
			Return(types.RemoteDigest{}, types.ErrRateLimited)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusRateLimit))
	})

	ginkgo.It("should report NO_COMPOSE without touching any collaborator", func() {
		empty := types.Target{Path: "/stacks/empty", Name: "empty"}
		gomega.Expect(fs.MkdirAll(empty.Path, 0o755)).To(gomega.Succeed())

		outcome := newInspector(stack.Config{}).Inspect(ctx, empty)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusNoCompose))
		gomega.Expect(outcome.ComposeFile).To(gomega.BeEmpty())
		resolver.AssertNotCalled(ginkgo.GinkgoT(), "Resolve", mock.Anything, mock.Anything, mock.Anything)
		project.AssertNotCalled(ginkgo.GinkgoT(), "Project", mock.Anything, mock.Anything)
	})

	ginkgo.It("should report UPDATE under force without registry calls", func() {
		outcome := newInspector(stack.Config{Force: true}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusUpdate))
		gomega.Expect(outcome.Forced).To(gomega.BeTrue())
		gomega.Expect(outcome.Trail()).To(gomega.ContainSubstring("MODE: FORCE ENABLED"))
		resolver.AssertNotCalled(ginkgo.GinkgoT(), "Resolve", mock.Anything, mock.Anything, mock.Anything)
		project.AssertNotCalled(ginkgo.GinkgoT(), "Containers", mock.Anything, mock.Anything)
	})

	ginkgo.It("should still report NO_COMPOSE under force", func() {
		empty := types.Target{Path: "/stacks/empty", Name: "empty"}
		gomega.Expect(fs.MkdirAll(empty.Path, 0o755)).To(gomega.Succeed())

		outcome := newInspector(stack.Config{Force: true}).Inspect(ctx, empty)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusNoCompose))
	})

	ginkgo.It("should find containers by the project naming convention", func() {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "web-app-1").Return("id0", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusUpdate))
		gomega.Expect(outcome.Services[0].Info.RunningImageID).To(gomega.Equal("id0"))
	})

	ginkgo.It("should fall back to the service name and then to NOT_FOUND", func() {
		project.On("Containers", mock.Anything, composeFile).Return(nil, errors.New("ps failed"))
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "web-app-1").Return("", types.ErrNotFound)
		containers.On("RunningImageID", mock.Anything, "app").Return("", types.ErrNotFound)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusOK))
		gomega.Expect(outcome.Services[0].Info.RunningImageID).To(gomega.Equal(types.ContainerNotFound))
		containers.AssertCalled(ginkgo.GinkgoT(), "RunningImageID", mock.Anything, "web-app-1")
		containers.AssertCalled(ginkgo.GinkgoT(), "RunningImageID", mock.Anything, "app")
	})

	ginkgo.It("should read the project name from the single compose config call", func() {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "shop", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "shop-app-1").Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Services[0].Info.RunningImageID).To(gomega.Equal("id1"))
		project.AssertNumberOfCalls(ginkgo.GinkgoT(), "Project", 1)
	})

	ginkgo.It("should ask the daemon for project containers when compose cannot list them", func() {
		lister := &mocks.ContainerLister{}
		inspector := stack.NewInspector(stack.Config{Arch: "amd64"}, stack.Dependencies{
			Fs:         fs,
			Compose:    project,
			Images:     images,
			Containers: containers,
			Lister:     lister,
			Resolver:   resolver,
		})

		project.On("Containers", mock.Anything, composeFile).Return(nil, errors.New("ps failed"))
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		lister.On("ProjectContainers", mock.Anything, "web").Return(map[string]string{"app": "c9"}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "web-app-1").Return("", types.ErrNotFound)
		containers.On("RunningImageID", mock.Anything, "app").Return("", types.ErrNotFound)
		containers.On("RunningImageID", mock.Anything, "c9").Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		outcome := inspector.Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusOK))
		gomega.Expect(outcome.Services[0].Info.RunningImageID).To(gomega.Equal("id1"))
	})

	ginkgo.It("should try the naming conventions before asking the daemon", func() {
		lister := &mocks.ContainerLister{}
		inspector := stack.NewInspector(stack.Config{Arch: "amd64"}, stack.Dependencies{
			Fs:         fs,
			Compose:    project,
			Images:     images,
			Containers: containers,
			Lister:     lister,
			Resolver:   resolver,
		})

		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "web-app-1").Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		outcome := inspector.Inspect(ctx, target)

		gomega.Expect(outcome.Services[0].Info.RunningImageID).To(gomega.Equal("id1"))
		lister.AssertNotCalled(ginkgo.GinkgoT(), "ProjectContainers", mock.Anything, mock.Anything)
	})

	ginkgo.It("should synthesize service names from the flat image list", func() {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{}, nil)
		project.On("Project", mock.Anything, composeFile).Return(nil, errors.New("no json"))
		project.On("Images", mock.Anything, composeFile).Return([]string{"nginx:latest"}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, mock.Anything).Return("", types.ErrNotFound)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Services).To(gomega.HaveLen(1))
		gomega.Expect(outcome.Services[0].Service.Name).To(gomega.Equal("svc_0"))
		containers.AssertCalled(ginkgo.GinkgoT(), "RunningImageID", mock.Anything, "web-svc_0-1")
	})

	ginkgo.It("should skip services without an image", func() {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "builder"}}}, nil)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusOK))
		gomega.Expect(outcome.Services).To(gomega.BeEmpty())
		resolver.AssertNotCalled(ginkgo.GinkgoT(), "Resolve", mock.Anything, mock.Anything, mock.Anything)
	})

	ginkgo.It("should treat an unavailable remote digest as unknown", func() {
		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{"app": "c1"}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "c1").Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Return(types.RemoteDigest{}, types.ErrLookupUnavailable)

		outcome := newInspector(stack.Config{}).Inspect(ctx, target)

		gomega.Expect(outcome.Status).To(gomega.Equal(types.StatusOK))
		gomega.Expect(outcome.Notes).To(gomega.ContainElement(gomega.ContainSubstring("remote digest unavailable")))
	})

	ginkgo.It("should bound daemon lookups and leave registry lookups to the resolver", func() {
		hasDeadline := func(args mock.Arguments) bool {
			callCtx, _ := args.Get(0).(context.Context)
			_, ok := callCtx.Deadline()

			return ok
		}

		project.On("Containers", mock.Anything, composeFile).Return(map[string]string{"app": "c1"}, nil)
		project.On("Project", mock.Anything, composeFile).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Run(func(args mock.Arguments) {
				gomega.Expect(hasDeadline(args)).To(gomega.BeTrue())
			}).
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "c1").Return("id1", nil)
		resolver.On("Resolve", mock.Anything, "nginx:latest", "amd64").
			Run(func(args mock.Arguments) {
				gomega.Expect(hasDeadline(args)).To(gomega.BeFalse())
			}).
			Return(types.RemoteDigest{Digest: digestA, Index: digestA}, nil)

		newInspector(stack.Config{}).Inspect(ctx, target)

		images.AssertExpectations(ginkgo.GinkgoT())
		resolver.AssertExpectations(ginkgo.GinkgoT())
	})

	ginkgo.It("should keep stale stacks stale when lookups queue at the gate longer than the timeout", func() {
		const (
			stacks   = 8
			interval = 50 * time.Millisecond
			timeout  = 120 * time.Millisecond
		)

		source := &mocks.ManifestSource{}
		source.On("Manifest", mock.Anything, "nginx:latest").Return(types.Manifest{Digest: digestB}, nil)

		inspector := stack.NewInspector(stack.Config{Arch: "amd64", LookupTimeout: timeout}, stack.Dependencies{
			Fs:         fs,
			Compose:    project,
			Images:     images,
			Containers: containers,
			Resolver:   registry.NewResolver(source, registry.NewGate(interval, nil), timeout),
		})

		project.On("Containers", mock.Anything, mock.Anything).Return(map[string]string{"app": "c1"}, nil)
		project.On("Project", mock.Anything, mock.Anything).
			Return(types.Project{Name: "web", Services: []types.Service{{Name: "app", Image: "nginx:latest"}}}, nil)
		images.On("LocalImage", mock.Anything, "nginx:latest").
			Return(types.LocalImage{ID: "id1", RepoDigests: []string{"nginx@" + digestA}}, nil)
		containers.On("RunningImageID", mock.Anything, "c1").Return("id1", nil)

		targets := make([]types.Target, stacks)
		for n := range targets {
			dir := fmt.Sprintf("/stacks/web%d", n)
			gomega.Expect(afero.WriteFile(fs, dir+"/docker-compose.yml", []byte("services: {}\n"), 0o644)).
				To(gomega.Succeed())
			targets[n] = types.Target{Path: dir, Name: filepath.Base(dir)}
		}

		statuses := make([]types.Status, stacks)

		var wg sync.WaitGroup
		for n, stale := range targets {
			wg.Go(func() {
				statuses[n] = inspector.Inspect(ctx, stale).Status
			})
		}

		wg.Wait()

		for _, status := range statuses {
			gomega.Expect(status).To(gomega.Equal(types.StatusUpdate))
		}

		source.AssertNumberOfCalls(ginkgo.GinkgoT(), "Manifest", stacks)
	})
})

var _ = ginkgo.Describe("DeriveProjectName", func() {
	ginkgo.It("should lowercase and strip separators", func() {
		gomega.Expect(stack.DeriveProjectName("/srv/My_Web-App")).To(gomega.Equal("mywebapp"))
	})
})
