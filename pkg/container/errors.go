package container

import "errors"

var (
	// errInitClient indicates the Docker client could not be constructed.
	errInitClient = errors.New("failed to initialize docker client")
	// errInspectImageFailed indicates a failure to inspect an image from the Docker daemon.
	errInspectImageFailed = errors.New("failed to inspect image")
	// errInspectContainerFailed indicates a failure to inspect a container's details.
	errInspectContainerFailed = errors.New("failed to inspect container")
	// errListContainersFailed indicates a failure to list containers from the Docker host.
	errListContainersFailed = errors.New("failed to list containers")
	// errPruneImagesFailed indicates the dangling-image prune was rejected.
	errPruneImagesFailed = errors.New("failed to prune images")
)
