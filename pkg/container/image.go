package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	cerrdefs "github.com/containerd/errdefs"
	dockerFilters "github.com/docker/docker/api/types/filters"

	"github.com/shipctl/ship/pkg/types"
)

// LocalImage returns the ID and repository digests of a locally cached image.
//
// Parameters:
//   - ctx: Context for the daemon call.
//   - image: Image reference as written in the compose file.
//
// Returns:
//   - types.LocalImage: Image metadata.
//   - error: types.ErrNotFound if the image is not cached, another error on failure.
func (c *Client) LocalImage(ctx context.Context, image string) (types.LocalImage, error) {
	clog := logrus.WithField("image", image)

	info, err := c.api.ImageInspect(ctx, image)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			clog.Debug("Image not present locally")

			return types.LocalImage{}, fmt.Errorf("%w: %s", types.ErrNotFound, image)
		}

		clog.WithError(err).Debug("Failed to inspect image")

		return types.LocalImage{}, fmt.Errorf("%w: %s: %w", errInspectImageFailed, image, err)
	}

	clog.WithFields(logrus.Fields{
		"image_id":     info.ID,
		"repo_digests": info.RepoDigests,
	}).Debug("Inspected local image")

	return types.LocalImage{ID: info.ID, RepoDigests: info.RepoDigests}, nil
}

// PruneImages removes dangling images.
//
// Parameters:
//   - ctx: Context for the daemon call.
//
// Returns:
//   - types.PruneReport: Number of deleted images and reclaimed bytes.
//   - error: Non-nil if the daemon rejected the prune.
func (c *Client) PruneImages(ctx context.Context) (types.PruneReport, error) {
	report, err := c.api.ImagesPrune(ctx, dockerFilters.NewArgs(dockerFilters.Arg("dangling", "true")))
	if err != nil {
		logrus.WithError(err).Debug("Failed to prune images")

		return types.PruneReport{}, fmt.Errorf("%w: %w", errPruneImagesFailed, err)
	}

	deleted := 0

	for _, item := range report.ImagesDeleted {
		if item.Deleted != "" {
			deleted++
		}
	}

	logrus.WithFields(logrus.Fields{
		"deleted":         deleted,
		"space_reclaimed": report.SpaceReclaimed,
	}).Debug("Pruned dangling images")

	return types.PruneReport{ImagesDeleted: deleted, SpaceReclaimed: report.SpaceReclaimed}, nil
}
