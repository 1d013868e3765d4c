package project

import (
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/future"
	"github.com/ralph-pm/ralph/internal/source"
	"github.com/ralph-pm/ralph/internal/version"
)

// Generator scaffolds a new project: manifest, build-system files and
// version control setup.
type Generator struct {
	Name        string
	BuildSystem string
	VCS         string
	Directory   string
}

const cmakeTemplate = `cmake_minimum_required(VERSION 3.1)
project(%s)

# Packages installed with 'ralph install' land in vendor/.
list(APPEND CMAKE_PREFIX_PATH "${CMAKE_SOURCE_DIR}/vendor")
`

const gitignoreTemplate = `/vendor/
/build/
`

// Generate writes the scaffolding and returns the loaded project.
func (g *Generator) Generate() *future.Future[*Project] {
	return future.Async(func(n future.Notifier) (*Project, error) {
		if g.Name == "" {
			return nil, fmt.Errorf("project name must not be empty")
		}
		switch g.BuildSystem {
		case "", "none", "cmake":
		default:
			return nil, fmt.Errorf("unknown build system %q", g.BuildSystem)
		}
		switch g.VCS {
		case "", "none", "git":
		default:
			return nil, fmt.Errorf("unknown version control system %q", g.VCS)
		}

		if err := os.MkdirAll(g.Directory, 0777); err != nil {
			return nil, err
		}

		manifestPath := filepath.Join(g.Directory, source.ManifestName)
		if _, err := os.Stat(manifestPath); err == nil {
			return nil, fmt.Errorf("%s already exists", manifestPath)
		}

		if err := n.Status(fmt.Sprintf("Creating project %s...", g.Name)); err != nil {
			return nil, err
		}

		pkg := &api.Package{
			Name:        g.Name,
			Version:     version.MustParse("0.1.0"),
			BuildSystem: g.BuildSystem,
			VCS:         g.VCS,
		}
		manifest, err := pkg.MarshalManifest()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(manifestPath, manifest, 0666); err != nil {
			return nil, err
		}

		if g.BuildSystem == "cmake" {
			cmake := fmt.Sprintf(cmakeTemplate, g.Name)
			if err := os.WriteFile(filepath.Join(g.Directory, "CMakeLists.txt"), []byte(cmake), 0666); err != nil {
				return nil, err
			}
		}

		if g.VCS == "git" {
			if err := n.Status("Initializing git repository..."); err != nil {
				return nil, err
			}
			if _, err := git.PlainInit(g.Directory, false); err != nil && err != git.ErrRepositoryAlreadyExists {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(g.Directory, ".gitignore"), []byte(gitignoreTemplate), 0666); err != nil {
				return nil, err
			}
		}

		return Load(g.Directory)
	})
}
