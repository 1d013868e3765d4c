package state

import (
	"fmt"

	"github.com/ralph-pm/ralph/internal/database"
	"github.com/ralph-pm/ralph/internal/project"
	"github.com/ralph-pm/ralph/internal/util"
)

// NewProject implements 'ralph project new'.
func (s *State) NewProject(name, buildSystem, vcs string) error {
	generator := &project.Generator{
		Name:        name,
		BuildSystem: buildSystem,
		VCS:         vcs,
		Directory:   s.dir,
	}
	proj, err := awaitTerminal(generator.Generate())
	if err != nil {
		return err
	}
	fmt.Printf("The project %s was created successfully!\n", proj.Name())
	return nil
}

// VerifyProject implements 'ralph project verify'.
func (s *State) VerifyProject() error {
	proj, err := project.Load(s.dir)
	if err != nil {
		return err
	}
	fmt.Printf("The project %s in %s is valid!\n",
		util.Style(boldStyle, proj.Name()), s.dir)
	return nil
}

// Info implements 'ralph info': print the available database
// locations.
func (s *State) Info() error {
	for _, scope := range []database.Scope{database.ScopeSystem, database.ScopeUser, database.ScopeProject} {
		if root, ok := database.Path(scope, s.dir); ok {
			fmt.Printf("Available database location: %s at %s\n", scope, root)
		}
	}
	return nil
}
