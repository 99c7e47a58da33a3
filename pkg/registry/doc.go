// Package registry resolves remote image digests for ship.
//
// Key components:
//   - Gate: Process-wide pacing of registry lookups with a minimum interval between requests.
//   - Resolver: Resolves the digest of an image for one CPU architecture through a ManifestSource.
//   - HostArch: The architecture of the running binary, with the ARM variant when known.
//   - helpers: Utilities for registry address parsing, digest normalization and repo digest matching.
//   - remote: ManifestSource backed by go-containerregistry.
//
// Usage example:
//
//	gate := registry.NewGate(200*time.Millisecond, nil)
//	resolver := registry.NewResolver(remote.NewClient(remote.Options{}), gate, time.Minute)
//	digest, err := resolver.Resolve(ctx, "nginx:latest", registry.HostArch())
//	if errors.Is(err, types.ErrRateLimited) {
//	    // confidence reduced, do not treat as up to date
//	}
//
// A Resolver is safe for concurrent use; the Gate is the only timing state it shares.
package registry
