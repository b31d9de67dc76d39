package filepathparser

import (
	"os"
	"path/filepath"
	"strings"
)

// ParsePath expands environment variables and a leading ~ and returns the
// absolute path.
func ParsePath(path string) (string, error) {
	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		dirname, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dirname, strings.TrimPrefix(path[1:], "/"))
	}

	return filepath.Abs(path)
}

// ParseOptionalPath is ParsePath for settings that may be left empty.
func ParseOptionalPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return ParsePath(path)
}
