package container_test

import (
	"context"
	"net/http"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerClient "github.com/docker/docker/client"

	"github.com/shipctl/ship/pkg/compose"
	"github.com/shipctl/ship/pkg/container"
	"github.com/shipctl/ship/pkg/types"
)

const (
	imageID    = "sha256:4dbc5f9c07028a985e14d1393e849ea07f68804c4293050d5a641b138db72daa"
	repoDigest = "nginx@sha256:19d07168491a3f9e2798a9bed96544e34d57ddc4757a4ac5bb199dea896c87fd"
)

var _ = ginkgo.Describe("the docker client", func() {
	var (
		server *ghttp.Server
		client *container.Client
		ctx    context.Context
	)

	ginkgo.BeforeEach(func() {
		server = ghttp.NewServer()
		docker, err := dockerClient.NewClientWithOpts(
			dockerClient.WithHost(server.URL()),
			dockerClient.WithHTTPClient(server.HTTPTestServer.Client()),
			dockerClient.WithVersion("1.45"),
		)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		client = container.NewClientWithAPI(docker)
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		_ = client.Close()
		server.Close()
	})

	ginkgo.Describe("LocalImage", func() {
		ginkgo.It("should return the image ID and repo digests", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/images/nginx:latest/json")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, dockerImage.InspectResponse{
					ID:          imageID,
					RepoDigests: []string{repoDigest},
				}),
			))

			local, err := client.LocalImage(ctx, "nginx:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(local).To(gomega.Equal(types.LocalImage{ID: imageID, RepoDigests: []string{repoDigest}}))
		})

		ginkgo.It("should report a missing image as not found", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/images/nginx:latest/json")),
				ghttp.RespondWithJSONEncoded(http.StatusNotFound, map[string]string{
					"message": "No such image: nginx:latest",
				}),
			))

			_, err := client.LocalImage(ctx, "nginx:latest")
			gomega.Expect(err).To(gomega.MatchError(types.ErrNotFound))
		})

		ginkgo.It("should not report daemon failures as not found", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusInternalServerError, map[string]string{
				"message": "boom",
			}))

			_, err := client.LocalImage(ctx, "nginx:latest")
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err).NotTo(gomega.MatchError(types.ErrNotFound))
		})
	})

	ginkgo.Describe("RunningImageID", func() {
		ginkgo.It("should return the container's image", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/containers/web-app-1/json")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, dockerContainer.InspectResponse{
					ContainerJSONBase: &dockerContainer.ContainerJSONBase{ID: "abc", Image: imageID},
				}),
			))

			id, err := client.RunningImageID(ctx, "web-app-1")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(id).To(gomega.Equal(imageID))
		})

		ginkgo.It("should report a missing container as not found", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusNotFound, map[string]string{
				"message": "No such container: web-app-1",
			}))

			_, err := client.RunningImageID(ctx, "web-app-1")
			gomega.Expect(err).To(gomega.MatchError(types.ErrNotFound))
		})
	})

	ginkgo.Describe("ProjectContainers", func() {
		ginkgo.It("should map services to their first replica", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/containers/json")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, []dockerContainer.Summary{
					{ID: "app-2", Labels: map[string]string{
						compose.ComposeServiceLabel:    "app",
						compose.ComposeContainerNumber: "2",
					}},
					{ID: "app-1", Labels: map[string]string{
						compose.ComposeServiceLabel:    "app",
						compose.ComposeContainerNumber: "1",
					}},
					{ID: "db-1", Labels: map[string]string{compose.ComposeServiceLabel: "db"}},
					{ID: "stray"},
				}),
			))

			containers, err := client.ProjectContainers(ctx, "web")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(containers).To(gomega.Equal(map[string]string{"app": "app-1", "db": "db-1"}))
		})
	})

	ginkgo.Describe("PruneImages", func() {
		ginkgo.It("should prune dangling images and count deletions", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/images/prune")),
				func(_ http.ResponseWriter, r *http.Request) {
					gomega.Expect(r.URL.Query().Get("filters")).To(gomega.ContainSubstring("dangling"))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, dockerImage.PruneReport{
					ImagesDeleted: []dockerImage.DeleteResponse{
						{Untagged: "nginx@sha256:aaa"},
						{Deleted: "sha256:bbb"},
						{Deleted: "sha256:ccc"},
					},
					SpaceReclaimed: 4096,
				}),
			))

			report, err := client.PruneImages(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(report).To(gomega.Equal(types.PruneReport{ImagesDeleted: 2, SpaceReclaimed: 4096}))
		})
	})

	ginkgo.It("should report the API version in use", func() {
		gomega.Expect(client.APIVersion()).To(gomega.Equal("1.45"))
	})
})
