// Package remote implements types.ManifestSource on top of go-containerregistry.
//
// Credentials come from the Docker keychain (~/.docker/config.json and credential
// helpers), so lookups are issued with whatever authentication Docker already has.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	ggcrRemote "github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/pkg/types"
)

// UserAgent identifies ship to registries.
// It can be overridden at build time with -ldflags "-X ...remote.UserAgent=ship/v1.0".
var UserAgent = "ship/unknown"

// rateLimitTokens are substrings registries use to signal throttling in error bodies.
var rateLimitTokens = []string{"429 Too Many Requests", "toomanyrequests"}

// Errors for manifest lookups.
var (
	// errParseReference indicates the image reference is not a valid registry reference.
	errParseReference = errors.New("failed to parse image reference")
	// errFetchManifest indicates the registry request failed.
	errFetchManifest = errors.New("failed to fetch manifest")
	// errParseIndex indicates an image index body could not be decoded.
	errParseIndex = errors.New("failed to parse image index")
)

// Options configures a Client.
type Options struct {
	// Keychain resolves credentials; nil uses authn.DefaultKeychain.
	Keychain authn.Keychain
	// Transport overrides the HTTP transport; nil uses the library default.
	Transport http.RoundTripper
	// Insecure allows plain HTTP registries.
	Insecure bool
}

// Client fetches manifests from remote registries.
type Client struct {
	opts Options
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Keychain == nil {
		opts.Keychain = authn.DefaultKeychain
	}

	return &Client{opts: opts}
}

// Manifest fetches the manifest for image and lists its per-platform digests.
//
// Parameters:
//   - ctx: Context bounding the request.
//   - image: Image reference (e.g., "nginx:latest").
//
// Returns:
//   - types.Manifest: Top-level digest plus platform digests for image indexes.
//   - error: types.ErrRateLimited on throttling, types.ErrNotFound for unknown references.
func (c *Client) Manifest(ctx context.Context, image string) (types.Manifest, error) {
	fields := logrus.Fields{"image": image}

	var nameOpts []name.Option
	if c.opts.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}

	ref, err := name.ParseReference(image, nameOpts...)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("%w: %w", errParseReference, err)
	}

	desc, err := ggcrRemote.Get(ref, c.remoteOptions(ctx)...)
	if err != nil {
		logrus.WithError(err).WithFields(fields).Debug("Manifest request failed")

		return types.Manifest{}, classify(err)
	}

	manifest := types.Manifest{Digest: desc.Digest.String()}

	if !desc.MediaType.IsIndex() {
		return manifest, nil
	}

	index, err := v1.ParseIndexManifest(bytes.NewReader(desc.Manifest))
	if err != nil {
		return types.Manifest{}, fmt.Errorf("%w: %w", errParseIndex, err)
	}

	for _, entry := range index.Manifests {
		if entry.Platform == nil {
			continue
		}

		manifest.Platforms = append(manifest.Platforms, types.PlatformDigest{
			OS:           entry.Platform.OS,
			Architecture: entry.Platform.Architecture,
			Variant:      entry.Platform.Variant,
			Digest:       entry.Digest.String(),
		})
	}

	logrus.WithFields(fields).WithFields(logrus.Fields{
		"digest":    manifest.Digest,
		"platforms": len(manifest.Platforms),
	}).Debug("Fetched image index")

	return manifest, nil
}

// remoteOptions builds the go-containerregistry options for one request.
//
// Retries are disabled: a retried request would bypass the caller's pacing.
func (c *Client) remoteOptions(ctx context.Context) []ggcrRemote.Option {
	opts := []ggcrRemote.Option{
		ggcrRemote.WithContext(ctx),
		ggcrRemote.WithAuthFromKeychain(c.opts.Keychain),
		ggcrRemote.WithUserAgent(UserAgent),
		ggcrRemote.WithRetryBackoff(ggcrRemote.Backoff{Duration: time.Second, Factor: 1, Steps: 1}),
	}

	if c.opts.Transport != nil {
		opts = append(opts, ggcrRemote.WithTransport(c.opts.Transport))
	}

	return opts
}

// classify maps registry errors onto the shared error taxonomy.
func classify(err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		if terr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", types.ErrRateLimited, err)
		}

		for _, diagnostic := range terr.Errors {
			switch diagnostic.Code {
			case transport.TooManyRequestsErrorCode:
				return fmt.Errorf("%w: %w", types.ErrRateLimited, err)
			case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode:
				return fmt.Errorf("%w: %w", types.ErrNotFound, err)
			}
		}

		if terr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", types.ErrNotFound, err)
		}
	}

	message := err.Error()
	for _, token := range rateLimitTokens {
		if strings.Contains(message, token) {
			return fmt.Errorf("%w: %w", types.ErrRateLimited, err)
		}
	}

	return fmt.Errorf("%w: %w", errFetchManifest, err)
}
