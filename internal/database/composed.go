package database

import (
	"sort"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/version"
)

// Composed is the read-through view over the project, user and system
// databases, in that lookup order. Queries search all scopes; writes
// go to exactly one Database.
type Composed struct {
	dbs []*Database
}

// NewComposed builds the composed view; nil scopes (an unavailable
// system database, say) are skipped.
func NewComposed(dbs ...*Database) *Composed {
	c := &Composed{}
	for _, db := range dbs {
		if db != nil {
			c.dbs = append(c.dbs, db)
		}
	}
	return c
}

// Databases returns the member scopes in lookup order.
func (c *Composed) Databases() []*Database {
	return append([]*Database(nil), c.dbs...)
}

// FindPackages returns matching packages from every scope, sorted by
// version ascending. Ties keep scope lookup order, then source
// registration order.
func (c *Composed) FindPackages(name string, req version.Requirement) []Candidate {
	var candidates []Candidate
	for _, db := range c.dbs {
		candidates = append(candidates, db.FindPackages(name, req)...)
	}
	sortCandidates(candidates)
	return candidates
}

// PackageNames returns the distinct names across every scope, sorted.
func (c *Composed) PackageNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, db := range c.dbs {
		for _, name := range db.PackageNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Satisfiable implements View across all scopes.
func (c *Composed) Satisfiable(dep api.Dependency) bool {
	return len(c.FindPackages(dep.Name, dep.Requirement)) > 0
}
