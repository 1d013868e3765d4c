package state

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v2"

	"github.com/ralph-pm/ralph/internal/database"
	"github.com/ralph-pm/ralph/internal/source"
	"github.com/ralph-pm/ralph/internal/table"
	"github.com/ralph-pm/ralph/internal/util"
)

var (
	boldStyle  = lipgloss.NewStyle().Bold(true)
	cyanStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	freshStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	agingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	staleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// lastUpdatedStyle colors a source's last-updated timestamp by age:
// green under a day, yellow under a week, red beyond.
func lastUpdatedStyle(src source.Source) lipgloss.Style {
	age := time.Since(src.LastUpdated())
	switch {
	case age < 24*time.Hour:
		return freshStyle
	case age < 7*24*time.Hour:
		return agingStyle
	default:
		return staleStyle
	}
}

// validateSourceURL mirrors the checks done when a source is added
// from user input.
func validateSourceURL(raw string) error {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return nil
	}
	// scp-like syntax: user@host:path
	if at := strings.Index(raw, "@"); at > 0 && strings.Contains(raw[at:], ":") {
		return nil
	}
	return fmt.Errorf("the given URL %q is not a valid URL", raw)
}

// AddSource implements 'ralph sources add'.
func (s *State) AddSource(scopeName, name, rawURL string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	if err := validateSourceURL(rawURL); err != nil {
		return err
	}
	db, err := s.openScope(scope)
	if err != nil {
		return err
	}

	src := source.NewGitSource(name, rawURL)
	src.SetLastUpdated(time.Now())

	if err := withFileLock(db, func() error {
		_, err := awaitTerminal(db.RegisterSource(src))
		return err
	}); err != nil {
		return err
	}

	fmt.Printf("New source %s successfully registered. You may want to run 'ralph sources update %s' now.\n",
		src.Name(), src.Name())
	return nil
}

// RemoveSource implements 'ralph sources remove'.
func (s *State) RemoveSource(scopeName, name string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	db, err := s.openScope(scope)
	if err != nil {
		return err
	}

	if err := withFileLock(db, func() error {
		_, err := awaitTerminal(db.UnregisterSource(name))
		return err
	}); err != nil {
		return err
	}

	fmt.Printf("Source %s was successfully removed.\n", name)
	return nil
}

// UpdateSources implements 'ralph sources update'. With no names,
// every source of the scope is updated.
func (s *State) UpdateSources(scopeName string, names []string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	db, err := s.openScope(scope)
	if err != nil {
		return err
	}

	var sources []source.Source
	if len(names) > 0 {
		for _, name := range names {
			src, err := db.Source(name)
			if err != nil {
				return err
			}
			sources = append(sources, src)
		}
	} else {
		sources = db.Sources()
	}

	return withFileLock(db, func() error {
		for _, src := range sources {
			fmt.Printf("Updating %s source %s...\n",
				src.TypeString(), util.Style(cyanStyle, src.Name()))
			if _, err := awaitTerminal(db.UpdateSource(src.Name())); err != nil {
				return err
			}
		}
		return nil
	})
}

// sourceInfo is the output shape of 'sources list' and 'sources
// show'.
type sourceInfo struct {
	Name        string `json:"name" yaml:"name" pretty:"Name"`
	Type        string `json:"type" yaml:"type" pretty:"Type"`
	URL         string `json:"url" yaml:"url" pretty:"URL"`
	LastUpdated string `json:"lastUpdated" yaml:"lastUpdated" pretty:"Last updated"`
}

func describeSource(src source.Source) sourceInfo {
	info := sourceInfo{
		Name:        src.Name(),
		Type:        src.TypeString(),
		LastUpdated: src.LastUpdated().UTC().Format(time.RFC3339),
	}
	if gitSrc, ok := src.(*source.GitSource); ok {
		info.URL = gitSrc.URL()
	}
	return info
}

// renderInfos prints a value in the requested output format.
func renderInfos(format string, infos []sourceInfo) error {
	if infos == nil {
		infos = []sourceInfo{}
	}
	switch format {
	case "", "table":
		t := table.FromStructs(infos)
		t.Print()
	case "json":
		out, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(infos)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		return fmt.Errorf("invalid format %q (must be \"table\", \"json\" or \"yaml\")", format)
	}
	return nil
}

// RenderNames prints a plain name list in json or yaml form.
func RenderNames(names []string, format string) error {
	if names == nil {
		names = []string{}
	}
	switch format {
	case "json":
		out, err := json.MarshalIndent(names, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(names)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		return fmt.Errorf("invalid format %q (must be \"table\", \"json\" or \"yaml\")", format)
	}
	return nil
}

// ListSources implements 'ralph sources list'. The project scope also
// lists the user and system databases underneath, the user scope also
// lists system.
func (s *State) ListSources(scopeName, format string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}

	chain := []database.Scope{scope}
	switch scope {
	case database.ScopeProject:
		chain = append(chain, database.ScopeUser, database.ScopeSystem)
	case database.ScopeUser:
		chain = append(chain, database.ScopeSystem)
	}

	for i, member := range chain {
		db, err := s.openScope(member)
		if err != nil {
			if i == 0 {
				return err
			}
			continue
		}
		if i > 0 {
			fmt.Println()
		}

		if format == "" || format == "table" {
			fmt.Println(util.Style(boldStyle, fmt.Sprintf("Package sources in the %s database:", member)))
			sources := db.Sources()
			if len(sources) == 0 {
				fmt.Println("    Empty.")
				fmt.Println("    Use 'ralph sources add <name> <url>' to add a source!")
				continue
			}
			for _, src := range sources {
				fmt.Printf(" * %s (type: %s, last updated: %s)\n",
					src.Name(), src.TypeString(),
					util.Style(lastUpdatedStyle(src), src.LastUpdated().UTC().Format(time.RFC3339)))
			}
			continue
		}

		var infos []sourceInfo
		for _, src := range db.Sources() {
			infos = append(infos, describeSource(src))
		}
		if err := renderInfos(format, infos); err != nil {
			return err
		}
	}
	return nil
}

// ShowSource implements 'ralph sources show'.
func (s *State) ShowSource(scopeName, name, format string) error {
	scope, err := scopeByName(scopeName)
	if err != nil {
		return err
	}
	db, err := s.openScope(scope)
	if err != nil {
		return err
	}
	src, err := db.Source(name)
	if err != nil {
		return err
	}

	if format == "" || format == "table" {
		info := describeSource(src)
		fmt.Printf("%s %s\n", util.Style(boldStyle, "Name:"), info.Name)
		fmt.Printf("%s %s\n", util.Style(boldStyle, "Last updated:"),
			util.Style(lastUpdatedStyle(src), info.LastUpdated))
		fmt.Printf("%s %s\n", util.Style(boldStyle, "Type:"), info.Type)
		if info.URL != "" {
			fmt.Printf("%s %s\n", util.Style(boldStyle, "URL:"), info.URL)
		}
		fmt.Printf("%s %d\n", util.Style(boldStyle, "Packages:"), len(src.Packages()))
		return nil
	}
	return renderInfos(format, []sourceInfo{describeSource(src)})
}
