package remote_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/shipctl/ship/pkg/registry/remote"
	"github.com/shipctl/ship/pkg/types"
)

const (
	amd64Digest = "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	arm64Digest = "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

const indexBody = `{
  "schemaVersion": 2,
  "mediaType": "application/vnd.oci.image.index.v1+json",
  "manifests": [
    {
      "mediaType": "application/vnd.oci.image.manifest.v1+json",
      "digest": "` + amd64Digest + `",
      "size": 1234,
      "platform": {"architecture": "amd64", "os": "linux"}
    },
    {
      "mediaType": "application/vnd.oci.image.manifest.v1+json",
      "digest": "` + arm64Digest + `",
      "size": 1234,
      "platform": {"architecture": "arm64", "os": "linux", "variant": "v8"}
    }
  ]
}`

func sha256Digest(body string) string {
	sum := sha256.Sum256([]byte(body))

	return "sha256:" + hex.EncodeToString(sum[:])
}

var _ = ginkgo.Describe("the remote manifest client", func() {
	var (
		server *ghttp.Server
		client *remote.Client
		image  string
	)

	ginkgo.BeforeEach(func() {
		server = ghttp.NewServer()
		server.RouteToHandler(http.MethodGet, "/v2/", ghttp.RespondWith(http.StatusOK, "{}"))
		client = remote.NewClient(remote.Options{Keychain: authn.NewMultiKeychain()})
		image = strings.TrimPrefix(server.URL(), "http://") + "/acme/app:latest"
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.When("the registry serves an image index", func() {
		ginkgo.BeforeEach(func() {
			server.RouteToHandler(http.MethodGet, "/v2/acme/app/manifests/latest",
				ghttp.RespondWith(http.StatusOK, indexBody, http.Header{
					"Content-Type": []string{"application/vnd.oci.image.index.v1+json"},
				}))
		})

		ginkgo.It("should return the index digest and every platform digest", func() {
			manifest, err := client.Manifest(context.Background(), image)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(manifest.Digest).To(gomega.Equal(sha256Digest(indexBody)))
			gomega.Expect(manifest.Platforms).To(gomega.ConsistOf(
				types.PlatformDigest{OS: "linux", Architecture: "amd64", Digest: amd64Digest},
				types.PlatformDigest{OS: "linux", Architecture: "arm64", Variant: "v8", Digest: arm64Digest},
			))
		})
	})

	ginkgo.When("the registry throttles the request", func() {
		ginkgo.BeforeEach(func() {
			server.RouteToHandler(http.MethodGet, "/v2/acme/app/manifests/latest",
				ghttp.RespondWith(http.StatusTooManyRequests,
					`{"errors":[{"code":"TOOMANYREQUESTS","message":"You have reached your pull rate limit."}]}`,
					http.Header{"Content-Type": []string{"application/json"}}))
		})

		ginkgo.It("should report a rate limit", func() {
			_, err := client.Manifest(context.Background(), image)
			gomega.Expect(err).To(gomega.MatchError(types.ErrRateLimited))
		})
	})

	ginkgo.When("the manifest does not exist", func() {
		ginkgo.BeforeEach(func() {
			server.RouteToHandler(http.MethodGet, "/v2/acme/app/manifests/latest",
				ghttp.RespondWith(http.StatusNotFound,
					`{"errors":[{"code":"MANIFEST_UNKNOWN","message":"manifest unknown"}]}`,
					http.Header{"Content-Type": []string{"application/json"}}))
		})

		ginkgo.It("should report not found", func() {
			_, err := client.Manifest(context.Background(), image)
			gomega.Expect(err).To(gomega.MatchError(types.ErrNotFound))
			gomega.Expect(err).NotTo(gomega.MatchError(types.ErrRateLimited))
		})
	})

	ginkgo.It("should reject a malformed reference", func() {
		_, err := client.Manifest(context.Background(), "UPPER/Case::bad")
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err).NotTo(gomega.MatchError(types.ErrRateLimited))
	})
})
