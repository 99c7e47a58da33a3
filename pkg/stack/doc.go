// Package stack finds compose stacks on disk and decides whether each one needs an update.
//
// Key components:
//   - FindComposeFile: Locates the compose file of a directory.
//   - Discover, Explicit: Build the target list from a directory walk or from arguments.
//   - Inspector: Compares remote, local and running image identities for every service
//     of a stack and returns a types.Outcome with a diagnostic trail.
//
// Usage example:
//
//	inspector := stack.NewInspector(stack.Config{Arch: "amd64"}, deps)
//	outcome := inspector.Inspect(ctx, target)
//	if outcome.Status == types.StatusUpdate {
//	    // pull and recreate
//	}
package stack
