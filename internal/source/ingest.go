package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ralph-pm/ralph/internal/api"
)

// ManifestName is the manifest filename looked for in a source's
// working tree, one per package directory.
const ManifestName = "ralph.json"

// ingestTree scans a working tree for manifests and parses them into
// packages. A manifest that fails to parse degrades to a warning; the
// scan itself failing is an error. Within one source (name, version)
// is a primary key, so duplicates degrade to a warning too, first
// manifest wins.
func ingestTree(dir string, warn func(string)) ([]*api.Package, error) {
	type key struct {
		name    string
		version string
	}
	seen := map[key]string{}
	var pkgs []*api.Package

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ManifestName {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}

		data, err := os.ReadFile(path)
		if err != nil {
			warn(fmt.Sprintf("%s: %s", rel, err))
			return nil
		}
		pkg, err := api.ParseManifest(data)
		if err != nil {
			warn(fmt.Sprintf("%s: %s", rel, err))
			return nil
		}

		k := key{name: pkg.Name, version: pkg.Version.String()}
		if prev, ok := seen[k]; ok {
			warn(fmt.Sprintf("%s: duplicate of %s@%s from %s", rel, pkg.Name, pkg.Version, prev))
			return nil
		}
		seen[k] = rel
		pkgs = append(pkgs, pkg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pkgs, func(i, j int) bool {
		if pkgs[i].Name != pkgs[j].Name {
			return pkgs[i].Name < pkgs[j].Name
		}
		return pkgs[i].Version.LessThan(pkgs[j].Version)
	})
	return pkgs, nil
}
