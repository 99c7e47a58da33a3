package container

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	dockerContainer "github.com/docker/docker/api/types/container"
	dockerFilters "github.com/docker/docker/api/types/filters"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerClient "github.com/docker/docker/client"
)

// API is the subset of the Docker SDK client used by Client.
type API interface {
	ImageInspect(
		ctx context.Context,
		imageID string,
		opts ...dockerClient.ImageInspectOption,
	) (dockerImage.InspectResponse, error)
	ContainerInspect(ctx context.Context, containerID string) (dockerContainer.InspectResponse, error)
	ContainerList(ctx context.Context, options dockerContainer.ListOptions) ([]dockerContainer.Summary, error)
	ImagesPrune(ctx context.Context, pruneFilter dockerFilters.Args) (dockerImage.PruneReport, error)
	ClientVersion() string
	Close() error
}

// Client reads metadata from the Docker daemon.
type Client struct {
	api API
}

// NewClient connects to the daemon configured by the environment (DOCKER_HOST, DOCKER_API_VERSION).
//
// A DOCKER_API_VERSION the daemon rejects falls back to version negotiation.
//
// Parameters:
//   - ctx: Context for the version handshake.
//
// Returns:
//   - *Client: Connected client.
//   - error: Non-nil if the client could not be constructed.
func NewClient(ctx context.Context) (*Client, error) {
	cli, err := dockerClient.NewClientWithOpts(
		dockerClient.FromEnv,
		dockerClient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInitClient, err)
	}

	if version := strings.Trim(os.Getenv("DOCKER_API_VERSION"), "\""); version != "" {
		pinned, err := dockerClient.NewClientWithOpts(
			dockerClient.WithHost(cli.DaemonHost()),
			dockerClient.WithVersion(version),
		)
		if err != nil {
			_ = cli.Close()

			return nil, fmt.Errorf("%w: %w", errInitClient, err)
		}

		if _, err := pinned.Ping(ctx); err != nil && strings.Contains(err.Error(), "page not found") {
			logrus.WithFields(logrus.Fields{
				"version":  version,
				"error":    err,
				"endpoint": "/_ping",
			}).Warn("Invalid API version; falling back to autonegotiation")

			_ = pinned.Close()
			cli.NegotiateAPIVersion(ctx)
		} else {
			_ = cli.Close()
			cli = pinned
		}
	} else {
		cli.NegotiateAPIVersion(ctx)
	}

	logrus.WithFields(logrus.Fields{
		"client_version": cli.ClientVersion(),
		"host":           cli.DaemonHost(),
	}).Debug("Initialized Docker client")

	return &Client{api: cli}, nil
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// APIVersion returns the Docker API version the client speaks.
func (c *Client) APIVersion() string {
	return c.api.ClientVersion()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.api.Close()
}
