// Package helpers provides utility functions for registry-related operations in ship.
// It includes methods for parsing registry addresses, normalizing digests and matching
// locally recorded repo digests to an image reference.
package helpers

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// Domains for Docker Hub, the default registry.
const (
	DefaultRegistryDomain       = "docker.io"
	DefaultRegistryHost         = "index.docker.io"
	LegacyDefaultRegistryDomain = "index.docker.io"
)

// repoDigestParts is the number of parts in a "repository@digest" string.
const repoDigestParts = 2

// GetRegistryAddress extracts the registry address from an image reference.
// It returns the domain part of the reference, mapping Docker Hub’s default domain
// to its canonical host address if applicable.
func GetRegistryAddress(imageRef string) (string, error) {
	normalizedRef, err := reference.ParseNormalizedNamed(imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to parse image reference: %w", err)
	}

	address := reference.Domain(normalizedRef)
	if address == DefaultRegistryDomain {
		address = DefaultRegistryHost
	}

	return address, nil
}

// NormalizeDigest standardizes a digest string for consistent comparison.
// It trims common prefixes (e.g., "sha256:") to return the raw digest value,
// ensuring compatibility across different registry formats.
func NormalizeDigest(digest string) string {
	prefixes := []string{"sha256:"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(digest, prefix) {
			return strings.TrimPrefix(digest, prefix)
		}
	}

	return digest
}

// SplitRepoDigest splits a "repository@sha256:..." entry into its repository and digest.
//
// Returns empty strings if the entry has no "@" separator.
func SplitRepoDigest(repoDigest string) (string, string) {
	parts := strings.SplitN(repoDigest, "@", repoDigestParts)
	if len(parts) < repoDigestParts {
		return "", ""
	}

	return parts[0], parts[1]
}

// MatchRepoDigest picks the local digest recorded for an image reference.
//
// Docker keeps one repo digest per repository the image was pulled from. The entry whose
// repository matches the reference wins; otherwise the first well-formed entry is used,
// mirroring how the daemon lists them.
//
// Parameters:
//   - imageRef: Image reference as declared in the compose file (e.g., "nginx:latest").
//   - repoDigests: RepoDigests from the local image metadata.
//
// Returns:
//   - string: Digest such as "sha256:abc...", or "" if none is recorded.
func MatchRepoDigest(imageRef string, repoDigests []string) string {
	wanted := ""
	if named, err := reference.ParseNormalizedNamed(imageRef); err == nil {
		wanted = named.Name()
	}

	first := ""

	for _, entry := range repoDigests {
		repo, digest := SplitRepoDigest(entry)
		if digest == "" {
			continue
		}

		if first == "" {
			first = digest
		}

		if wanted == "" {
			break
		}

		if named, err := reference.ParseNormalizedNamed(repo); err == nil && named.Name() == wanted {
			return digest
		}
	}

	return first
}
