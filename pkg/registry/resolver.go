package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/pkg/registry/helpers"
	"github.com/shipctl/ship/pkg/types"
)

// platformOS is the only operating system compose stacks are matched against.
const platformOS = "linux"

// Resolver resolves remote digests through a rate-limited ManifestSource.
type Resolver struct {
	source      types.ManifestSource
	gate        *Gate
	timeout     time.Duration
	rateLimited atomic.Uint64
}

// NewResolver creates a Resolver.
//
// Parameters:
//   - source: Registry collaborator issuing the actual lookups.
//   - gate: Shared pacing gate; every lookup passes through it first.
//   - timeout: Bound on each registry call once the gate let it through; zero means unbounded.
//
// Returns:
//   - *Resolver: Resolver safe for concurrent use.
func NewResolver(source types.ManifestSource, gate *Gate, timeout time.Duration) *Resolver {
	return &Resolver{source: source, gate: gate, timeout: timeout}
}

// Resolve returns the remote digest of image for the given architecture.
//
// It waits on the gate, queries the registry, then selects the linux/<arch> entry of a
// multi-platform manifest, falling back to the top-level digest. Time spent queued at
// the gate does not count against the lookup timeout.
//
// Parameters:
//   - ctx: Context for the lookup; only its cancellation ends a wait at the gate.
//   - image: Image reference (e.g., "nginx:latest").
//   - arch: CPU architecture, optionally with a variant (e.g., "amd64", "arm/v7").
//
// Returns:
//   - types.RemoteDigest: Resolved digest.
//   - error: types.ErrRateLimited when throttled, types.ErrNotFound on an empty answer,
//     types.ErrLookupUnavailable wrapping any other failure.
func (r *Resolver) Resolve(ctx context.Context, image, arch string) (types.RemoteDigest, error) {
	fields := logrus.Fields{"image": image, "arch": arch}
	if host, err := helpers.GetRegistryAddress(image); err == nil {
		fields["registry"] = host
	}

	issuedAt, err := r.gate.Wait(ctx)
	if err != nil {
		return types.RemoteDigest{}, fmt.Errorf("%w: %w", types.ErrLookupUnavailable, err)
	}

	logrus.WithFields(fields).WithField("issued_at", issuedAt).Debug("Issuing registry lookup")

	manifest, err := r.manifest(ctx, image)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrRateLimited):
			r.rateLimited.Add(1)
			logrus.WithFields(fields).Debug("Registry rate limit reached")

			return types.RemoteDigest{}, err
		case errors.Is(err, types.ErrNotFound):
			logrus.WithFields(fields).Debug("Registry has no manifest for image")

			return types.RemoteDigest{}, err
		default:
			logrus.WithError(err).WithFields(fields).Debug("Registry lookup failed")

			return types.RemoteDigest{}, fmt.Errorf("%w: %w", types.ErrLookupUnavailable, err)
		}
	}

	if manifest.Empty() {
		return types.RemoteDigest{}, types.ErrNotFound
	}

	digest := SelectDigest(manifest, arch)
	logrus.WithFields(fields).WithFields(logrus.Fields{
		"digest": digest.Digest,
		"index":  digest.Index,
	}).Debug("Resolved remote digest")

	return digest, nil
}

func (r *Resolver) manifest(ctx context.Context, image string) (types.Manifest, error) {
	if r.timeout <= 0 {
		return r.source.Manifest(ctx, image)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.source.Manifest(callCtx, image)
}

// RateLimited returns how many lookups the registry has throttled so far.
func (r *Resolver) RateLimited() uint64 {
	return r.rateLimited.Load()
}

// Requests returns how many lookups have been issued so far.
func (r *Resolver) Requests() uint64 {
	return r.gate.Issued()
}

// SelectDigest picks the digest for linux/<arch>, where arch may carry a variant
// ("arm/v7").
//
// For the same architecture an entry with the requested variant wins, then an entry
// without a variant, then the first variant-qualified entry. Without any matching
// platform the top-level digest is returned.
func SelectDigest(manifest types.Manifest, arch string) types.RemoteDigest {
	result := types.RemoteDigest{Digest: manifest.Digest, Index: manifest.Digest}
	architecture, variant, _ := strings.Cut(arch, "/")

	var bare, first string

	for _, platform := range manifest.Platforms {
		if platform.OS != platformOS || platform.Architecture != architecture || platform.Digest == "" {
			continue
		}

		switch {
		case variant != "" && platform.Variant == variant:
			result.Digest = platform.Digest

			return result
		case platform.Variant == "":
			if bare == "" {
				bare = platform.Digest
			}
		case first == "":
			first = platform.Digest
		}
	}

	switch {
	case bare != "":
		result.Digest = bare
	case first != "":
		result.Digest = first
	}

	return result
}
