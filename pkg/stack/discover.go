package stack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/shipctl/ship/pkg/types"
)

// DefaultIgnoreFile names the file listing subdirectories to skip during discovery.
const DefaultIgnoreFile = ".dcuignore"

var (
	// errReadRoot indicates the discovery root could not be listed.
	errReadRoot = errors.New("failed to list directory")
	// errReadIgnore indicates the ignore file exists but could not be read.
	errReadIgnore = errors.New("failed to read ignore file")
)

// Discover returns the immediate subdirectories of root as targets, sorted by name.
//
// Directories named in the ignore file are skipped. The ignore file holds one
// directory name per line; blank lines and lines starting with '#' are ignored.
//
// Parameters:
//   - fs: Filesystem to walk.
//   - root: Directory whose children are candidate stacks.
//   - ignoreFile: Ignore file path, relative to root unless absolute; empty disables it.
//
// Returns:
//   - []types.Target: Targets named by their directory name.
//   - error: Non-nil if root or an existing ignore file could not be read.
func Discover(fs afero.Fs, root, ignoreFile string) ([]types.Target, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errReadRoot, root, err)
	}

	ignored, err := readIgnoreFile(fs, absRoot, ignoreFile)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(fs, absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errReadRoot, absRoot, err)
	}

	targets := make([]types.Target, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if _, skip := ignored[entry.Name()]; skip {
			logrus.WithField("dir", entry.Name()).Debug("Skipping ignored directory")

			continue
		}

		targets = append(targets, types.Target{
			Path: filepath.Join(absRoot, entry.Name()),
			Name: entry.Name(),
		})
	}

	slices.SortFunc(targets, func(a, b types.Target) int { return strings.Compare(a.Name, b.Name) })

	return targets, nil
}

// Explicit turns directory arguments into targets.
//
// A trailing '/' is stripped from each argument; arguments that are not existing
// directories are dropped. Duplicates resolving to the same path are kept once.
//
// Parameters:
//   - fs: Filesystem to check the arguments against.
//   - dirs: Directory arguments in the order given.
//
// Returns:
//   - []types.Target: Targets in argument order.
func Explicit(fs afero.Fs, dirs []string) []types.Target {
	targets := make([]types.Target, 0, len(dirs))
	seen := make(map[string]struct{}, len(dirs))

	for _, dir := range dirs {
		trimmed := strings.TrimRight(dir, "/")
		if trimmed == "" {
			trimmed = dir
		}

		info, err := fs.Stat(trimmed)
		if err != nil || !info.IsDir() {
			logrus.WithField("dir", dir).Debug("Dropping argument that is not a directory")

			continue
		}

		target, err := types.NewTarget(trimmed)
		if err != nil {
			continue
		}

		if _, dup := seen[target.Path]; dup {
			continue
		}

		seen[target.Path] = struct{}{}
		targets = append(targets, target)
	}

	return targets
}

func readIgnoreFile(fs afero.Fs, root, ignoreFile string) (map[string]struct{}, error) {
	ignored := map[string]struct{}{}
	if ignoreFile == "" {
		return ignored, nil
	}

	path := ignoreFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ignored, nil
		}

		return nil, fmt.Errorf("%w: %s: %w", errReadIgnore, path, err)
	}

	for line := range strings.Lines(string(content)) {
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}

		ignored[strings.TrimRight(name, "/")] = struct{}{}
	}

	return ignored, nil
}
