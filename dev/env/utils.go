package devenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"vtaccess/lib/configutil"
)

const statePrefix = "<dev_state>"

var modName = regexp.MustCompile(`(?m)^module *([\w\-_/.]+)$`)

func isWorkspaceRoot(dir string) bool {
	mod, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == "vtaccess"
}

// GetWorkspaceRoot walks up from the working directory to the
// directory holding this module's go.mod.
func GetWorkspaceRoot() (string, error) {
	current, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}
	for {
		if isWorkspaceRoot(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}

func StateDir() (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state"), nil
}

// GetStateConfig reads and validates a config file under dev/.state.
// os.ErrNotExist means the file is missing, which tests take as a
// reason to skip.
func GetStateConfig[T any](path string) (T, error) {
	var out T
	dir, err := StateDir()
	if err != nil {
		return out, err
	}
	out, err = configutil.ReadConfig[T](filepath.Join(dir, path))
	if err != nil {
		return out, err
	}
	return out, configutil.Validate(out)
}

// ResolvePath expands a leading <dev_state> to the dev/.state
// directory, creating it if needed. Other paths are returned as is.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, statePrefix) {
		return path, nil
	}

	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(path, statePrefix), string(os.PathSeparator))
	return filepath.Join(dir, rest), nil
}
