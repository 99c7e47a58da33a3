package stack

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/shipctl/ship/pkg/registry/helpers"
	"github.com/shipctl/ship/pkg/types"
)

// DefaultLookupTimeout bounds each external call made while inspecting a stack.
const DefaultLookupTimeout = 60 * time.Second

// Config holds the per-run inspection settings.
type Config struct {
	// Arch is the architecture remote digests are resolved for.
	Arch string
	// Force marks every stack with a compose file for update without comparing anything.
	Force bool
	// LookupTimeout bounds each compose and daemon call; zero means DefaultLookupTimeout.
	// Registry lookups are bounded by the resolver, after their wait at the gate.
	LookupTimeout time.Duration
}

// Dependencies are the collaborators an Inspector queries.
//
// Lister is optional and is consulted only when neither compose nor the container naming
// conventions located a service's container.
type Dependencies struct {
	Fs         afero.Fs
	Compose    types.ComposeProject
	Images     types.ImageInspector
	Containers types.ContainerInspector
	Lister     types.ContainerLister
	Resolver   types.DigestResolver
}

// Inspector decides the update status of one stack at a time.
//
// An Inspector holds no per-stack state and is safe for concurrent use.
type Inspector struct {
	config Config
	deps   Dependencies
}

// NewInspector creates an Inspector.
//
// Parameters:
//   - config: Inspection settings.
//   - deps: Collaborators; a nil Fs means the OS filesystem.
//
// Returns:
//   - *Inspector: Ready-to-use inspector.
func NewInspector(config Config, deps Dependencies) *Inspector {
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}

	return &Inspector{config: config, deps: deps}
}

// inspection carries the lazily resolved state of one Inspect call.
type inspection struct {
	target     types.Target
	file       string
	containers map[string]string
	project    string
	listed     bool
}

// Inspect returns the update verdict for target.
//
// Failures of individual lookups never abort the inspection; they leave the affected
// identity unknown and are recorded as notes in the outcome's trail.
//
// Parameters:
//   - ctx: Context for every collaborator call.
//   - target: Stack to inspect.
//
// Returns:
//   - types.Outcome: Verdict and diagnostic trail.
func (i *Inspector) Inspect(ctx context.Context, target types.Target) types.Outcome {
	clog := logrus.WithField("target", target.String())

	file, ok := FindComposeFile(i.deps.Fs, target.Path)
	if !ok {
		clog.Debug("No compose file found")

		return types.Outcome{Status: types.StatusNoCompose}
	}

	if i.config.Force {
		clog.Debug("Force mode, skipping comparison")

		return types.Outcome{Status: types.StatusUpdate, ComposeFile: file, Forced: true}
	}

	outcome := types.Outcome{Status: types.StatusOK, ComposeFile: file}
	state := &inspection{target: target, file: file}

	state.containers = i.runningContainers(ctx, state, &outcome)
	services := i.services(ctx, state, &outcome)

	var needsUpdate, rateLimited bool

	for _, service := range services {
		if service.Image == "" {
			continue
		}

		check := i.checkService(ctx, state, service, &outcome)
		outcome.Services = append(outcome.Services, check)

		switch check.State {
		case types.ServiceRateLimited:
			rateLimited = true
		case types.ServicePullRequired, types.ServiceRecreateRequired:
			needsUpdate = true
		case types.ServiceUpToDate:
		}
	}

	switch {
	case rateLimited:
		outcome.Status = types.StatusRateLimit
	case needsUpdate:
		outcome.Status = types.StatusUpdate
	}

	clog.WithFields(logrus.Fields{
		"status":   outcome.Status,
		"services": len(outcome.Services),
	}).Debug("Inspected stack")

	return outcome
}

func (i *Inspector) checkService(
	ctx context.Context,
	state *inspection,
	service types.Service,
	outcome *types.Outcome,
) types.ServiceCheck {
	info := types.DigestInfo{
		LocalImageID:   types.UnknownImageID,
		RunningImageID: types.ContainerNotFound,
	}

	if local, err := i.localImage(ctx, service.Image); err == nil {
		info.LocalImageID = local.ID
		info.LocalDigest = helpers.MatchRepoDigest(service.Image, local.RepoDigests)
	} else if !errors.Is(err, types.ErrNotFound) {
		outcome.Note("%s: local image lookup failed: %v", service.Name, err)
	}

	if running := i.runningImageID(ctx, state, service.Name); running != "" {
		info.RunningImageID = running
	}

	remote, err := i.remoteDigest(ctx, service.Image)
	if err != nil {
		if errors.Is(err, types.ErrRateLimited) {
			return types.ServiceCheck{Service: service, Info: info, State: types.ServiceRateLimited}
		}

		if !errors.Is(err, types.ErrNotFound) {
			outcome.Note("%s: remote digest unavailable: %v", service.Name, err)
		}
	} else {
		info.RemoteDigest = remote
	}

	check := types.ServiceCheck{Service: service, Info: info, State: types.ServiceUpToDate}

	switch {
	case info.NeedsPull():
		check.State = types.ServicePullRequired
	case info.NeedsRecreate():
		check.State = types.ServiceRecreateRequired
	}

	return check
}

// runningContainers asks compose for the stack's containers.
func (i *Inspector) runningContainers(
	ctx context.Context,
	state *inspection,
	outcome *types.Outcome,
) map[string]string {
	callCtx, cancel := i.bound(ctx)
	defer cancel()

	containers, err := i.deps.Compose.Containers(callCtx, state.file)
	if err != nil {
		logrus.WithError(err).WithField("file", state.file).Debug("Compose container listing failed")
		outcome.Note("container listing unavailable: %v", err)

		return map[string]string{}
	}

	if containers == nil {
		containers = map[string]string{}
	}

	return containers
}

// services returns the stack's services, falling back to the flat image list.
//
// The project name compose resolved alongside the services is kept in state.
func (i *Inspector) services(ctx context.Context, state *inspection, outcome *types.Outcome) []types.Service {
	file := state.file

	callCtx, cancel := i.bound(ctx)
	defer cancel()

	project, err := i.deps.Compose.Project(callCtx, file)
	if err == nil {
		state.project = project.Name

		return project.Services
	}

	logrus.WithError(err).WithField("file", file).Debug("Structured compose config unavailable")

	imagesCtx, cancelImages := i.bound(ctx)
	defer cancelImages()

	images, imagesErr := i.deps.Compose.Images(imagesCtx, file)
	if imagesErr != nil {
		outcome.Note("compose config unavailable: %v", errors.Join(err, imagesErr))

		return nil
	}

	services := make([]types.Service, 0, len(images))
	for index, image := range images {
		services = append(services, types.Service{Name: fmt.Sprintf("svc_%d", index), Image: image})
	}

	return services
}

func (i *Inspector) localImage(ctx context.Context, image string) (types.LocalImage, error) {
	callCtx, cancel := i.bound(ctx)
	defer cancel()

	return i.deps.Images.LocalImage(callCtx, image)
}

// remoteDigest leaves the timeout to the resolver so queueing at the gate is not charged
// against it.
func (i *Inspector) remoteDigest(ctx context.Context, image string) (types.RemoteDigest, error) {
	return i.deps.Resolver.Resolve(ctx, image, i.config.Arch)
}

// runningImageID resolves the image of the service's container.
//
// Candidates are tried in order: the container compose reported for the service,
// "<project>-<service>-1", "<service>", then the container the daemon labels with the
// project and service. An empty result means no container was found.
func (i *Inspector) runningImageID(ctx context.Context, state *inspection, service string) string {
	if id, ok := state.containers[service]; ok && id != "" {
		return i.imageOf(ctx, id)
	}

	project := i.projectName(state)

	for _, candidate := range []string{project + "-" + service + "-1", service} {
		if id := i.imageOf(ctx, candidate); id != "" {
			return id
		}
	}

	if id := i.listedContainer(ctx, state, project, service); id != "" {
		return i.imageOf(ctx, id)
	}

	return ""
}

// imageOf returns the image ID of a container, or "" when it cannot be inspected.
func (i *Inspector) imageOf(ctx context.Context, nameOrID string) string {
	callCtx, cancel := i.bound(ctx)
	defer cancel()

	id, err := i.deps.Containers.RunningImageID(callCtx, nameOrID)
	if err != nil {
		return ""
	}

	return id
}

func (i *Inspector) listedContainer(ctx context.Context, state *inspection, project, service string) string {
	if i.deps.Lister == nil {
		return ""
	}

	if !state.listed {
		state.listed = true

		callCtx, cancel := i.bound(ctx)
		defer cancel()

		listed, err := i.deps.Lister.ProjectContainers(callCtx, project)
		if err != nil {
			logrus.WithError(err).WithField("project", project).Debug("Daemon container listing failed")
		}

		for name, id := range listed {
			if _, known := state.containers[name]; !known {
				state.containers[name] = id
			}
		}
	}

	return state.containers[service]
}

// projectName returns the project name compose resolved, or the legacy name derived
// from the directory when compose reported none.
func (i *Inspector) projectName(state *inspection) string {
	if state.project == "" {
		state.project = DeriveProjectName(state.target.Path)
	}

	return state.project
}

// DeriveProjectName builds the legacy project name compose used for a directory:
// the base name, lowercased, with '-' and '_' removed.
func DeriveProjectName(dir string) string {
	name := strings.ToLower(filepath.Base(dir))

	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

func (i *Inspector) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, i.config.LookupTimeout)
}
