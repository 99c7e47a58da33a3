package stack

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// ComposeFileNames lists the recognized compose file names in lookup order.
var ComposeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// FindComposeFile returns the path of the first recognized compose file in dir.
//
// Parameters:
//   - fs: Filesystem to search.
//   - dir: Stack directory.
//
// Returns:
//   - string: Path of the compose file.
//   - bool: False if dir holds none of ComposeFileNames.
func FindComposeFile(fs afero.Fs, dir string) (string, bool) {
	for _, name := range ComposeFileNames {
		path := filepath.Join(dir, name)

		info, err := fs.Stat(path)
		if err == nil && !info.IsDir() {
			return path, true
		}
	}

	return "", false
}
