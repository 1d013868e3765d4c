// Package resolver turns "name[@requirement]" queries into one
// concrete package candidate.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ralph-pm/ralph/internal/database"
	"github.com/ralph-pm/ralph/internal/version"
)

var (
	// ErrUnknownPackage means no source provides the name at all.
	ErrUnknownPackage = errors.New("unknown package")

	// ErrNoVersionMatches means the name exists, but no version
	// satisfies the requirement.
	ErrNoVersionMatches = errors.New("no version matches")
)

// Query is a parsed package query.
type Query struct {
	Name        string
	Requirement version.Requirement
}

func (q Query) String() string {
	if q.Requirement.MatchesAll() {
		return q.Name
	}
	return q.Name + "@" + q.Requirement.String()
}

// ParseQuery splits "name[@requirement]" on the first @. An absent
// requirement matches all versions.
func ParseQuery(s string) (Query, error) {
	name, reqStr, found := strings.Cut(s, "@")
	if name == "" {
		return Query{}, fmt.Errorf("empty package name in query %q", s)
	}
	if !found {
		return Query{Name: name}, nil
	}
	req, err := version.ParseRequirement(reqStr)
	if err != nil {
		return Query{}, err
	}
	return Query{Name: name, Requirement: req}, nil
}

// Resolve picks the best candidate for the query: the greatest
// matching version, ties broken by source registration order.
func Resolve(view database.View, q Query) (database.Candidate, error) {
	candidates := view.FindPackages(q.Name, q.Requirement)
	if len(candidates) == 0 {
		if len(view.FindPackages(q.Name, version.Requirement{})) > 0 {
			return database.Candidate{}, fmt.Errorf(
				"%w: No package found for %s, but other versions are available", ErrNoVersionMatches, q)
		}
		return database.Candidate{}, fmt.Errorf("%w: No package found for %s", ErrUnknownPackage, q)
	}

	// Candidates are sorted ascending with ties in registration
	// order; the winner is the first of the highest-version run.
	best := candidates[len(candidates)-1]
	for i := len(candidates) - 2; i >= 0; i-- {
		if !candidates[i].Package.Version.Equal(best.Package.Version) {
			break
		}
		best = candidates[i]
	}
	return best, nil
}

// ResolveString parses and resolves a query in one step.
func ResolveString(view database.View, s string) (database.Candidate, error) {
	q, err := ParseQuery(s)
	if err != nil {
		return database.Candidate{}, err
	}
	return Resolve(view, q)
}
