package types

import (
	"context"
	"io"
)

// ManifestSource looks up image manifests on a remote registry.
//
// Implementations return ErrRateLimited when the registry throttles the request
// and ErrNotFound when the reference does not exist.
type ManifestSource interface {
	Manifest(ctx context.Context, image string) (Manifest, error)
}

// DigestResolver resolves the remote digest of an image for one architecture.
type DigestResolver interface {
	Resolve(ctx context.Context, image, arch string) (RemoteDigest, error)
}

// ImageInspector reads metadata of locally cached images.
type ImageInspector interface {
	LocalImage(ctx context.Context, image string) (LocalImage, error)
}

// ContainerInspector reads the image backing a container.
//
// RunningImageID returns ErrNotFound when no container matches nameOrID.
type ContainerInspector interface {
	RunningImageID(ctx context.Context, nameOrID string) (string, error)
}

// ContainerLister finds a project's containers from the daemon side.
type ContainerLister interface {
	// ProjectContainers maps service names to container IDs for a compose project.
	ProjectContainers(ctx context.Context, project string) (map[string]string, error)
}

// ImagePruner removes dangling images.
type ImagePruner interface {
	PruneImages(ctx context.Context) (PruneReport, error)
}

// PruneReport summarizes an image prune.
type PruneReport struct {
	ImagesDeleted  int
	SpaceReclaimed uint64
}

// ComposeProject is the compose CLI as seen by the inspector and the updater.
//
// Every method takes the path of the compose file to operate on.
type ComposeProject interface {
	// Project returns the resolved project name and service definitions.
	Project(ctx context.Context, file string) (Project, error)
	// Images returns the flat image list, used when structured config is unavailable.
	Images(ctx context.Context, file string) ([]string, error)
	// Containers maps service names to the IDs of their known containers.
	Containers(ctx context.Context, file string) (map[string]string, error)
	// Pull pulls the stack's images, streaming tool output to out.
	Pull(ctx context.Context, file string, out io.Writer) error
	// Up force-recreates the stack's containers, streaming tool output to out.
	Up(ctx context.Context, file string, out io.Writer) error
}
