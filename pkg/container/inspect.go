package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerFilters "github.com/docker/docker/api/types/filters"

	"github.com/shipctl/ship/pkg/compose"
	"github.com/shipctl/ship/pkg/types"
)

// RunningImageID returns the ID of the image a container was created from.
//
// Parameters:
//   - ctx: Context for the daemon call.
//   - nameOrID: Container name or ID.
//
// Returns:
//   - string: Image ID (e.g., "sha256:...").
//   - error: types.ErrNotFound if no such container exists.
func (c *Client) RunningImageID(ctx context.Context, nameOrID string) (string, error) {
	clog := logrus.WithField("container", nameOrID)

	info, err := c.api.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			clog.Debug("Container not found")

			return "", fmt.Errorf("%w: %s", types.ErrNotFound, nameOrID)
		}

		clog.WithError(err).Debug("Failed to inspect container")

		return "", fmt.Errorf("%w: %s: %w", errInspectContainerFailed, nameOrID, err)
	}

	if info.ContainerJSONBase == nil || info.Image == "" {
		return "", fmt.Errorf("%w: %s", types.ErrNotFound, nameOrID)
	}

	clog.WithField("image_id", info.Image).Debug("Inspected container image")

	return info.Image, nil
}

// ProjectContainers maps service names to container IDs using compose labels.
//
// Stopped containers are included so a stack that is down still reports the image
// its containers were created from.
//
// Parameters:
//   - ctx: Context for the daemon call.
//   - project: Compose project name.
//
// Returns:
//   - map[string]string: Service name to container ID; the lowest replica wins.
//   - error: Non-nil if the listing failed.
func (c *Client) ProjectContainers(ctx context.Context, project string) (map[string]string, error) {
	list, err := c.api.ContainerList(ctx, dockerContainer.ListOptions{
		All: true,
		Filters: dockerFilters.NewArgs(
			dockerFilters.Arg("label", compose.ComposeProjectLabel+"="+project),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errListContainersFailed, err)
	}

	containers := make(map[string]string, len(list))
	replicas := make(map[string]string, len(list))

	for _, summary := range list {
		service := compose.GetServiceName(summary.Labels)
		if service == "" {
			continue
		}

		number := compose.GetContainerNumber(summary.Labels)
		if current, seen := replicas[service]; seen && !lowerReplica(number, current) {
			continue
		}

		containers[service] = summary.ID
		replicas[service] = number
	}

	logrus.WithFields(logrus.Fields{
		"project":  project,
		"services": len(containers),
	}).Debug("Listed project containers")

	return containers, nil
}

// lowerReplica reports whether replica number a sorts before b.
func lowerReplica(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}

	return a < b
}
