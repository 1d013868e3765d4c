// Package config contains global variables that are set according to
// the command line, plus the optional per-user config file. They can
// be accessed from anywhere within the client.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Quiet is true if --quiet was passed on the command line.
var Quiet bool

// NoColor is true if --no-color was passed on the command line or
// NO_COLOR is set in the environment.
var NoColor bool

// Database is the scope selected with --database (project, user or
// system).
var Database string

// File models ~/.config/ralph/ralph.toml.
type File struct {
	Quiet             bool   `toml:"quiet"`
	DefaultDatabase   string `toml:"default_database"`
	Credentials       string `toml:"credentials"`
	CredentialsHelper string `toml:"credentials_helper"`
}

// Load reads the per-user config file, if any. A missing file yields
// the defaults (Credentials "prompt", everything else zero); a
// malformed one is an error the caller reports.
func Load() (File, error) {
	f := File{Credentials: "prompt"}

	dir, err := os.UserConfigDir()
	if err != nil {
		return f, nil
	}

	path := filepath.Join(dir, "ralph", "ralph.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return f, nil
	}

	if _, err := toml.DecodeFile(path, &f); err != nil {
		return File{}, err
	}
	if f.Credentials == "" {
		f.Credentials = "prompt"
	}
	return f, nil
}
