// Package project implements project manifests and the project
// scaffolding generator. A project is a package manifest paired with
// the directory it lives in, not a package subtype.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/source"
)

// Info carries the project-specific half of a loaded project.
type Info struct {
	RootDir string
}

// Project pairs a package manifest with its on-disk location.
type Project struct {
	Package *api.Package
	Info    Info
}

func (p *Project) Name() string { return p.Package.Name }

// Load reads and validates the project manifest in dir.
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, source.ManifestName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s is not a ralph project (no %s)", dir, source.ManifestName)
	} else if err != nil {
		return nil, err
	}

	pkg, err := api.ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Project{Package: pkg, Info: Info{RootDir: dir}}, nil
}
