package types

import "strings"

// Sentinels used when an identity is unknown.
const (
	// UnknownImageID marks a local image whose ID could not be determined.
	UnknownImageID = "N/A"
	// ContainerNotFound marks a service with no running container.
	ContainerNotFound = "NOT_FOUND"
)

// PlatformDigest is the manifest digest published for one platform of a multi-platform image.
type PlatformDigest struct {
	OS           string
	Architecture string
	Variant      string
	Digest       string
}

// Manifest is the registry's answer for an image reference.
//
// Digest is the top-level digest (the image index for multi-platform images).
// Platforms is empty for single-platform manifests.
type Manifest struct {
	Digest    string
	Platforms []PlatformDigest
}

// Empty reports whether the registry produced no usable identity at all.
func (m Manifest) Empty() bool {
	return m.Digest == "" && len(m.Platforms) == 0
}

// RemoteDigest is the registry identity resolved for one architecture.
//
// Digest is the platform-specific digest when the registry publishes one for the
// requested architecture, otherwise the top-level digest. Index always holds the
// top-level digest.
type RemoteDigest struct {
	Digest string
	Index  string
}

// Present reports whether a remote digest was resolved.
func (r RemoteDigest) Present() bool {
	return r.Digest != ""
}

// Matches reports whether a locally cached digest refers to the same content.
//
// Docker records the digest it pulled, which is the index digest for
// multi-platform images and the manifest digest otherwise, so both are accepted.
func (r RemoteDigest) Matches(local string) bool {
	if local == "" || !r.Present() {
		return false
	}

	return strings.EqualFold(local, r.Digest) || strings.EqualFold(local, r.Index)
}

// LocalImage is the Docker daemon's metadata for a locally cached image.
type LocalImage struct {
	ID          string
	RepoDigests []string
}

// DigestInfo gathers the identities compared for one service during one scan pass.
type DigestInfo struct {
	RemoteDigest   RemoteDigest
	LocalDigest    string
	LocalImageID   string
	RunningImageID string
}

// NeedsPull reports whether the registry holds different content than the local cache.
//
// A missing remote or local digest never triggers a pull.
func (d DigestInfo) NeedsPull() bool {
	return d.RemoteDigest.Present() && d.LocalDigest != "" && !d.RemoteDigest.Matches(d.LocalDigest)
}

// NeedsRecreate reports whether the running container uses a different image than the local cache.
func (d DigestInfo) NeedsRecreate() bool {
	if d.LocalImageID == "" || d.LocalImageID == UnknownImageID {
		return false
	}

	if d.RunningImageID == "" || d.RunningImageID == ContainerNotFound {
		return false
	}

	return d.LocalImageID != d.RunningImageID
}
