// Package container reads image and container metadata from the Docker daemon and
// prunes dangling images.
//
// Key components:
//   - Client: Implements types.ImageInspector, types.ContainerInspector,
//     types.ContainerLister and types.ImagePruner over the Docker Engine API.
//   - API: The subset of the Docker SDK client the package depends on.
//
// Usage example:
//
//	cli, err := container.NewClient(ctx)
//	if err != nil {
//	    return err
//	}
//	defer cli.Close()
//	local, err := cli.LocalImage(ctx, "nginx:latest")
//
// Not-found answers from the daemon are reported as types.ErrNotFound.
package container
