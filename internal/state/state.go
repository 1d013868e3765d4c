// Package state implements the command orchestrator: one method per
// CLI verb, each opening the right database scopes, resolving queries
// and driving the group and source operations to completion.
package state

import (
	"fmt"
	"sync"

	"github.com/ralph-pm/ralph/internal/config"
	"github.com/ralph-pm/ralph/internal/database"
	"github.com/ralph-pm/ralph/internal/future"
	"github.com/ralph-pm/ralph/internal/source"
	"github.com/ralph-pm/ralph/internal/util"
)

// RuntimeConfig carries the process-wide hooks State wires up at
// construction, so nothing registers itself behind the caller's back.
type RuntimeConfig struct {
	Credentials source.CredentialsCallback
}

// State holds the project directory and drives one CLI verb at a
// time. Methods are re-entrant; mutations on the same database
// serialize through the per-database advisory file lock.
type State struct {
	dir string
}

// New builds a State rooted at the project directory and registers
// the runtime hooks.
func New(dir string, rc RuntimeConfig) *State {
	source.SetCredentialsCallback(rc.Credentials)
	return &State{dir: dir}
}

// Dir returns the project directory.
func (s *State) Dir() string { return s.dir }

// openScope opens (creating if needed) the database of one scope.
func (s *State) openScope(scope database.Scope) (*database.Database, error) {
	root, ok := database.Path(scope, s.dir)
	if !ok {
		return nil, fmt.Errorf("the %s database has no usable location on this system", scope)
	}
	return database.OpenOrCreate(root, scope).Get()
}

// openComposed opens the project/user/system read-through view.
// Scopes that cannot be opened are silently absent from the view; the
// project scope is always present.
func (s *State) openComposed() (*database.Composed, *database.Database, error) {
	project, err := s.openScope(database.ScopeProject)
	if err != nil {
		return nil, nil, err
	}
	user, _ := s.openScope(database.ScopeUser)
	system, _ := s.openScope(database.ScopeSystem)
	return database.NewComposed(project, user, system), project, nil
}

// scopeByName maps the --database flag value onto a scope.
func scopeByName(name string) (database.Scope, error) {
	switch name {
	case "", string(database.ScopeProject):
		return database.ScopeProject, nil
	case string(database.ScopeUser):
		return database.ScopeUser, nil
	case string(database.ScopeSystem):
		return database.ScopeSystem, nil
	}
	return "", fmt.Errorf("unknown database %q (valid: project, user, system)", name)
}

// withFileLock runs fn while holding the database's inter-process
// lock.
func withFileLock(db *database.Database, fn func() error) error {
	lock := db.FileLock()
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			util.WarningMsg("releasing %s: %s", lock.Path(), err)
		}
	}()
	return fn()
}

// awaitTerminal blocks on f, draining status and progress to standard
// output.
func awaitTerminal[T any](f *future.Future[T]) (T, error) {
	var mu sync.Mutex
	progressShown := false

	f.Subscribe(future.Watcher[T]{
		OnStatus: func(msg string) {
			mu.Lock()
			if progressShown {
				fmt.Println()
				progressShown = false
			}
			mu.Unlock()
			util.ProgressMsg(msg)
		},
		OnProgress: func(current, total uint64) {
			if config.Quiet {
				return
			}
			mu.Lock()
			fmt.Printf("\r    %d/%d", current, total)
			progressShown = true
			mu.Unlock()
		},
	})

	value, err := f.Get()

	mu.Lock()
	if progressShown {
		fmt.Println()
	}
	mu.Unlock()
	return value, err
}
