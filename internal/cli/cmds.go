package cli

import (
	"fmt"

	"github.com/ralph-pm/ralph/internal/config"
	"github.com/ralph-pm/ralph/internal/state"
	"github.com/ralph-pm/ralph/internal/trace"
	"github.com/ralph-pm/ralph/internal/util"
)

// newState builds the orchestrator for one command invocation,
// wiring the credentials callback from the config file.
func newState(cfg config.File, directory string) *state.State {
	return state.New(directory, state.RuntimeConfig{
		Credentials: credentialsCallback(cfg),
	})
}

// traced runs fn under a span named after the command.
func traced(name string, fn func() error) {
	span, _ := trace.StartSpanFromExistingContext(name)
	err := fn()
	span.Finish()
	if err != nil {
		util.Die("Error: %s", err)
	}
}

// runInstall implements 'ralph install'.
func runInstall(cfg config.File, directory string, queries []string, group string, configItems []string) {
	traced("install", func() error {
		return newState(cfg, directory).InstallPackages(config.Database, queries, group, configItems)
	})
}

// runRemove implements 'ralph remove'.
func runRemove(cfg config.File, directory string, queries []string, group string) {
	traced("remove", func() error {
		return newState(cfg, directory).RemovePackages(config.Database, queries, group)
	})
}

// runCheck implements 'ralph check'.
func runCheck(cfg config.File, directory string, queries []string, group string) {
	traced("check", func() error {
		return newState(cfg, directory).CheckPackages(config.Database, queries, group)
	})
}

// runSearch implements 'ralph search'.
func runSearch(cfg config.File, directory, query, format string) {
	traced("search", func() error {
		names, err := newState(cfg, directory).SearchPackages(query)
		if err != nil {
			return err
		}
		return printSearchResults(names, format)
	})
}

// runSourcesList implements 'ralph sources list'.
func runSourcesList(cfg config.File, directory, format string) {
	traced("sources.list", func() error {
		return newState(cfg, directory).ListSources(config.Database, format)
	})
}

// runSourcesAdd implements 'ralph sources add'.
func runSourcesAdd(cfg config.File, directory, name, url string) {
	traced("sources.add", func() error {
		return newState(cfg, directory).AddSource(config.Database, name, url)
	})
}

// runSourcesRemove implements 'ralph sources remove'.
func runSourcesRemove(cfg config.File, directory, name string) {
	traced("sources.remove", func() error {
		return newState(cfg, directory).RemoveSource(config.Database, name)
	})
}

// runSourcesUpdate implements 'ralph sources update'.
func runSourcesUpdate(cfg config.File, directory string, names []string) {
	traced("sources.update", func() error {
		return newState(cfg, directory).UpdateSources(config.Database, names)
	})
}

// runSourcesShow implements 'ralph sources show'.
func runSourcesShow(cfg config.File, directory, name, format string) {
	traced("sources.show", func() error {
		return newState(cfg, directory).ShowSource(config.Database, name, format)
	})
}

// runProjectNew implements 'ralph project new'.
func runProjectNew(cfg config.File, directory, name, buildSystem, vcs string) {
	traced("project.new", func() error {
		return newState(cfg, directory).NewProject(name, buildSystem, vcs)
	})
}

// runProjectVerify implements 'ralph project verify'.
func runProjectVerify(cfg config.File, directory string) {
	traced("project.verify", func() error {
		return newState(cfg, directory).VerifyProject()
	})
}

// runInfo implements 'ralph info'.
func runInfo(cfg config.File, directory string) {
	traced("info", func() error {
		return newState(cfg, directory).Info()
	})
}

// printSearchResults renders the matched names in the requested
// format.
func printSearchResults(names []string, format string) error {
	switch format {
	case "", "table":
		if len(names) == 0 {
			util.ProgressMsg("no packages found")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	default:
		return state.RenderNames(names, format)
	}
}
