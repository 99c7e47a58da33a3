package types

import (
	"fmt"
	"path/filepath"
)

// Target is a directory believed to host a compose-based stack.
//
// Path is the normalized absolute path and identifies the target. Name is the
// path as the user or the directory walk supplied it, used for display.
type Target struct {
	Path string
	Name string
}

// NewTarget builds a Target from a user-supplied or discovered directory.
//
// Parameters:
//   - dir: Directory path, relative or absolute.
//
// Returns:
//   - Target: Target with a normalized absolute path.
//   - error: Non-nil if the path cannot be made absolute.
func NewTarget(dir string) (Target, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Target{}, fmt.Errorf("resolve target %q: %w", dir, err)
	}

	name := filepath.Clean(dir)

	return Target{Path: abs, Name: name}, nil
}

// String returns the display name of the target.
func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}

	return t.Path
}

// BaseName returns the final element of the target path.
func (t Target) BaseName() string {
	return filepath.Base(t.Path)
}

// Service is a compose service and the image it declares.
type Service struct {
	Name  string
	Image string
}

// Project is the resolved compose configuration of a stack.
//
// Name is empty when compose reported no project name.
type Project struct {
	Name     string
	Services []Service
}
