// Package types defines the core data model and collaborator interfaces for ship.
//
// Key components:
//   - Target: A directory believed to host a compose-based stack.
//   - Service: A compose service and the image reference it runs.
//   - DigestInfo: Local and remote image identity gathered for one service.
//   - Outcome: The scan verdict for one target, with its diagnostic trail.
//   - UpdateResult: The pull and recreate status of one updated target.
//   - ManifestSource, ImageInspector, ContainerInspector, ComposeProject, ImagePruner:
//     Interfaces to the registry, the Docker daemon, and the compose CLI.
//
// The decision logic in the stack and actions packages only sees these typed values;
// all text parsing of external tool output stays behind the collaborator implementations.
package types
