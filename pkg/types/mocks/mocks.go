// Package mocks provides testify mocks for the collaborator interfaces in pkg/types.
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/shipctl/ship/pkg/types"
)

// ManifestSource is a mock of types.ManifestSource.
type ManifestSource struct {
	mock.Mock
}

// Manifest records the call and returns the configured manifest.
func (m *ManifestSource) Manifest(ctx context.Context, image string) (types.Manifest, error) {
	args := m.Called(ctx, image)

	return args.Get(0).(types.Manifest), args.Error(1)
}

// DigestResolver is a mock of types.DigestResolver.
type DigestResolver struct {
	mock.Mock
}

// Resolve records the call and returns the configured digest.
func (m *DigestResolver) Resolve(ctx context.Context, image, arch string) (types.RemoteDigest, error) {
	args := m.Called(ctx, image, arch)

	return args.Get(0).(types.RemoteDigest), args.Error(1)
}

// ImageInspector is a mock of types.ImageInspector.
type ImageInspector struct {
	mock.Mock
}

// LocalImage records the call and returns the configured image metadata.
func (m *ImageInspector) LocalImage(ctx context.Context, image string) (types.LocalImage, error) {
	args := m.Called(ctx, image)

	return args.Get(0).(types.LocalImage), args.Error(1)
}

// ContainerInspector is a mock of types.ContainerInspector.
type ContainerInspector struct {
	mock.Mock
}

// RunningImageID records the call and returns the configured image ID.
func (m *ContainerInspector) RunningImageID(ctx context.Context, nameOrID string) (string, error) {
	args := m.Called(ctx, nameOrID)

	return args.String(0), args.Error(1)
}

// ContainerLister is a mock of types.ContainerLister.
type ContainerLister struct {
	mock.Mock
}

// ProjectContainers records the call and returns the configured service to container map.
func (m *ContainerLister) ProjectContainers(ctx context.Context, project string) (map[string]string, error) {
	args := m.Called(ctx, project)

	containers, _ := args.Get(0).(map[string]string)

	return containers, args.Error(1)
}

// ImagePruner is a mock of types.ImagePruner.
type ImagePruner struct {
	mock.Mock
}

// PruneImages records the call and returns the configured report.
func (m *ImagePruner) PruneImages(ctx context.Context) (types.PruneReport, error) {
	args := m.Called(ctx)

	return args.Get(0).(types.PruneReport), args.Error(1)
}

// ComposeProject is a mock of types.ComposeProject.
type ComposeProject struct {
	mock.Mock
}

// Project records the call and returns the configured project.
func (m *ComposeProject) Project(ctx context.Context, file string) (types.Project, error) {
	args := m.Called(ctx, file)

	project, _ := args.Get(0).(types.Project)

	return project, args.Error(1)
}

// Images records the call and returns the configured image list.
func (m *ComposeProject) Images(ctx context.Context, file string) ([]string, error) {
	args := m.Called(ctx, file)

	images, _ := args.Get(0).([]string)

	return images, args.Error(1)
}

// Containers records the call and returns the configured service to container map.
func (m *ComposeProject) Containers(ctx context.Context, file string) (map[string]string, error) {
	args := m.Called(ctx, file)

	containers, _ := args.Get(0).(map[string]string)

	return containers, args.Error(1)
}

// Pull records the call and returns the configured error.
func (m *ComposeProject) Pull(ctx context.Context, file string, out io.Writer) error {
	return m.Called(ctx, file, out).Error(0)
}

// Up records the call and returns the configured error.
func (m *ComposeProject) Up(ctx context.Context, file string, out io.Writer) error {
	return m.Called(ctx, file, out).Error(0)
}
