package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/future"
	"github.com/ralph-pm/ralph/internal/util"
)

// DefaultGroup is the group packages are installed into when none is
// named.
const DefaultGroup = "default"

// Group is a named collection of installed packages inside one
// database scope. Within a group there is at most one record per
// package name; installing a different version replaces it.
type Group struct {
	db      *Database
	name    string
	records []api.InstalledPackage
}

func (g *Group) Name() string { return g.name }

func (g *Group) path() string {
	return filepath.Join(g.db.root, "groups", g.name+".json")
}

func (g *Group) load() error {
	data, err := os.ReadFile(g.path())
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &g.records); err != nil {
		return &CorruptError{File: g.path(), Detail: err.Error()}
	}
	return nil
}

func (g *Group) saveLocked() error {
	out, err := api.MarshalIndentSorted(g.records)
	if err != nil {
		return err
	}
	return util.WriteAtomic(g.path(), out)
}

// Installed returns the group's records in install order.
func (g *Group) Installed() []api.InstalledPackage {
	g.db.mu.RLock()
	defer g.db.mu.RUnlock()
	return append([]api.InstalledPackage(nil), g.records...)
}

// IsInstalled reports whether the group holds a record for exactly
// this (name, version).
func (g *Group) IsInstalled(pkg *api.Package) bool {
	g.db.mu.RLock()
	defer g.db.mu.RUnlock()
	return g.findLocked(pkg) >= 0
}

func (g *Group) findLocked(pkg *api.Package) int {
	for i, record := range g.records {
		if record.Name == pkg.Name && record.Version == pkg.Version.String() {
			return i
		}
	}
	return -1
}

// Install records the candidate in the group. Installing the same
// version with the same configuration again is a no-op; a different
// version or configuration replaces the prior record for the name.
// The candidate's declared dependencies must be satisfiable against
// deps.
func (g *Group) Install(c Candidate, config api.PackageConfiguration, deps View) *future.Future[struct{}] {
	return future.Async(func(n future.Notifier) (struct{}, error) {
		pkg := c.Package

		// deps may be this database or a view over it, whose lookups
		// take the read lock, so dependencies are checked before the
		// write lock is taken. An unchanged reinstall skips the check.
		g.db.mu.RLock()
		i := g.findLocked(pkg)
		unchanged := i >= 0 && g.records[i].Config.Equal(config)
		g.db.mu.RUnlock()
		if !unchanged {
			for _, dep := range pkg.Dependencies {
				if !deps.Satisfiable(dep) {
					return struct{}{}, &UnsatisfiedDependencyError{
						Package:     pkg.Name,
						Dependency:  dep.Name,
						Requirement: dep.Requirement,
					}
				}
			}
		}

		g.db.mu.Lock()
		defer g.db.mu.Unlock()

		if i := g.findLocked(pkg); i >= 0 && g.records[i].Config.Equal(config) {
			_ = n.Status(fmt.Sprintf("%s@%s is already installed", pkg.Name, pkg.Version))
			return struct{}{}, nil
		}

		record := api.InstalledPackage{
			PackageRef: api.PackageRef{
				Source:  c.Source,
				Name:    pkg.Name,
				Version: pkg.Version.String(),
			},
			Config:      config,
			InstalledAt: time.Now().UTC(),
		}

		replaced := false
		for i := range g.records {
			if g.records[i].Name == pkg.Name {
				g.records[i] = record
				replaced = true
				break
			}
		}
		if !replaced {
			g.records = append(g.records, record)
		}

		if err := g.saveLocked(); err != nil {
			return struct{}{}, err
		}
		_ = n.Status(fmt.Sprintf("Installed %s@%s", pkg.Name, pkg.Version))
		return struct{}{}, nil
	})
}

// Remove deletes the record matching the package's (name, version).
func (g *Group) Remove(pkg *api.Package) *future.Future[struct{}] {
	return future.Async(func(n future.Notifier) (struct{}, error) {
		g.db.mu.Lock()
		defer g.db.mu.Unlock()

		i := g.findLocked(pkg)
		if i < 0 {
			return struct{}{}, fmt.Errorf("%w: %s@%s", ErrNotInstalled, pkg.Name, pkg.Version)
		}
		g.records = append(g.records[:i], g.records[i+1:]...)
		if err := g.saveLocked(); err != nil {
			return struct{}{}, err
		}
		_ = n.Status(fmt.Sprintf("Removed %s@%s", pkg.Name, pkg.Version))
		return struct{}{}, nil
	})
}
