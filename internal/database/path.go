package database

import (
	"os"
	"path/filepath"
	"runtime"
)

// Path returns the well-known root directory of a scope, relative to
// projectDir for the project scope. The second return is false when
// the scope has no usable location on this system.
func Path(scope Scope, projectDir string) (string, bool) {
	switch scope {
	case ScopeProject:
		return filepath.Join(projectDir, "vendor"), true
	case ScopeUser:
		if root, ok := os.LookupEnv("RALPH_USER_DATABASE"); ok {
			return root, root != ""
		}
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", false
		}
		return filepath.Join(dir, "ralph"), true
	case ScopeSystem:
		if root, ok := os.LookupEnv("RALPH_SYSTEM_DATABASE"); ok {
			return root, root != ""
		}
		switch runtime.GOOS {
		case "windows":
			dir := os.Getenv("ProgramData")
			if dir == "" {
				return "", false
			}
			return filepath.Join(dir, "ralph"), true
		case "darwin":
			return "/Library/Application Support/ralph", true
		default:
			return "/etc/ralph", true
		}
	}
	return "", false
}
