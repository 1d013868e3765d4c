package state

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/resolver"
)

// InstallPackages implements 'ralph install'. Queries resolve against
// the composed view; the install itself targets the named scope.
func (s *State) InstallPackages(scopeName string, queries []string, groupName string, configItems []string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	view, _, err := s.openComposed()
	if err != nil {
		return err
	}
	target, err := s.openScope(scope)
	if err != nil {
		return err
	}

	config := api.ConfigurationFromItems(configItems)

	return withFileLock(target, func() error {
		group, err := target.Group(groupName)
		if err != nil {
			return err
		}
		for _, query := range queries {
			candidate, err := resolver.ResolveString(view, query)
			if err != nil {
				return err
			}
			if _, err := awaitTerminal(group.Install(candidate, config, view)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemovePackages implements 'ralph remove'.
func (s *State) RemovePackages(scopeName string, queries []string, groupName string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	view, _, err := s.openComposed()
	if err != nil {
		return err
	}
	target, err := s.openScope(scope)
	if err != nil {
		return err
	}

	return withFileLock(target, func() error {
		group, err := target.Group(groupName)
		if err != nil {
			return err
		}
		for _, query := range queries {
			candidate, err := resolver.ResolveString(view, query)
			if err != nil {
				return err
			}
			if _, err := awaitTerminal(group.Remove(candidate.Package)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckPackages implements 'ralph check'.
func (s *State) CheckPackages(scopeName string, queries []string, groupName string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	view, _, err := s.openComposed()
	if err != nil {
		return err
	}
	target, err := s.openScope(scope)
	if err != nil {
		return err
	}

	group, err := target.Group(groupName)
	if err != nil {
		return err
	}
	for _, query := range queries {
		candidate, err := resolver.ResolveString(view, query)
		if err != nil {
			return err
		}
		if !group.IsInstalled(candidate.Package) {
			return fmt.Errorf("%s is not installed", candidate.Package.Name)
		}
	}
	return nil
}

// SearchPackages implements 'ralph search': list the distinct package
// names across all scopes matching the wildcard query.
func (s *State) SearchPackages(query string) ([]string, error) {
	view, _, err := s.openComposed()
	if err != nil {
		return nil, err
	}

	names := view.PackageNames()
	if strings.TrimSpace(query) == "" {
		return names, nil
	}

	pattern := strings.ToLower(query)
	if !strings.ContainsAny(pattern, "*?[") {
		pattern = "*" + pattern + "*"
	}

	var matched []string
	for _, name := range names {
		ok, err := doublestar.Match(pattern, strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("invalid search pattern %q: %w", query, err)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	return matched, nil
}
