package database

import (
	"errors"
	"fmt"

	"github.com/ralph-pm/ralph/internal/version"
)

var (
	ErrUnknownSource        = errors.New("unknown source")
	ErrDuplicateSource      = errors.New("a source with that name already exists")
	ErrInUse                = errors.New("source is referenced by installed packages")
	ErrNotInstalled         = errors.New("package is not installed")
	ErrIncompatibleDatabase = errors.New("incompatible database schema version")
)

// CorruptError reports an unreadable database file.
type CorruptError struct {
	File   string
	Detail string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt database file %s: %s", e.File, e.Detail)
}

// UnsatisfiedDependencyError reports a declared dependency no
// registered source can satisfy.
type UnsatisfiedDependencyError struct {
	Package     string
	Dependency  string
	Requirement version.Requirement
}

func (e *UnsatisfiedDependencyError) Error() string {
	if e.Requirement.MatchesAll() {
		return fmt.Sprintf("%s depends on %s, which no registered source provides", e.Package, e.Dependency)
	}
	return fmt.Sprintf("%s depends on %s@%s, which no registered source provides",
		e.Package, e.Dependency, e.Requirement)
}
