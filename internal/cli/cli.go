// Package cli implements the command-line interface of ralph.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralph-pm/ralph/internal/config"
	"github.com/ralph-pm/ralph/internal/trace"
	"github.com/ralph-pm/ralph/internal/util"
)

// version is set at build time to a Git tag or the string
// "development version" when not tagging a release.
var version = "unknown version"

// getVersion returns a string that can be printed when calling 'ralph
// --version'.
func getVersion() string {
	return "ralph " + version
}

// DoCLI reads the command-line arguments and runs the appropriate
// code, then exits the process (or returns to indicate normal exit).
func DoCLI() {
	cfg, err := config.Load()
	if err != nil {
		util.Die("Error: %s", err)
	}
	config.Quiet = cfg.Quiet
	if os.Getenv("NO_COLOR") != "" {
		config.NoColor = true
	}

	if trace.MaybeTrace(getVersion()) {
		defer trace.Stop()
	}

	defaultDatabase := cfg.DefaultDatabase
	if defaultDatabase == "" {
		defaultDatabase = "project"
	}

	var directory string
	var group string
	var formatStr string
	var configItems []string
	var buildSystem string
	var vcs string

	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:     "ralph",
		Version: getVersion(),
	}
	rootCmd.SetVersionTemplate(`{{.Version}}` + "\n")
	rootCmd.PersistentFlags().StringVar(
		&config.Database, "database", defaultDatabase,
		`database scope to operate on ("project", "user" or "system")`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&directory, "directory", "C", ".", "project directory to operate in",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&config.Quiet, "quiet", "q", cfg.Quiet, "don't show progress output",
	)
	rootCmd.PersistentFlags().BoolVar(
		&config.NoColor, "no-color", config.NoColor, "disable colored output",
	)
	rootCmd.PersistentFlags().BoolP(
		"help", "h", false, "display command-line usage",
	)
	rootCmd.PersistentFlags().BoolP(
		"version", "v", false, "display command version",
	)

	cmdInstall := &cobra.Command{
		Use:   "install PACKAGE[@REQUIREMENT]...",
		Short: "Install packages into a group",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runInstall(cfg, directory, args, group, configItems)
		},
	}
	cmdInstall.Flags().SortFlags = false
	cmdInstall.Flags().StringVarP(
		&group, "group", "g", "default", "group to install into",
	)
	cmdInstall.Flags().StringArrayVar(
		&configItems, "config", nil, "package configuration (KEY=VALUE, repeatable)",
	)
	rootCmd.AddCommand(cmdInstall)

	cmdRemove := &cobra.Command{
		Use:   "remove PACKAGE[@REQUIREMENT]...",
		Short: "Remove installed packages from a group",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runRemove(cfg, directory, args, group)
		},
	}
	cmdRemove.Flags().SortFlags = false
	cmdRemove.Flags().StringVarP(
		&group, "group", "g", "default", "group to remove from",
	)
	rootCmd.AddCommand(cmdRemove)

	cmdCheck := &cobra.Command{
		Use:   "check PACKAGE[@REQUIREMENT]...",
		Short: "Check that packages are installed in a group",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runCheck(cfg, directory, args, group)
		},
	}
	cmdCheck.Flags().SortFlags = false
	cmdCheck.Flags().StringVarP(
		&group, "group", "g", "default", "group to check in",
	)
	rootCmd.AddCommand(cmdCheck)

	cmdSearch := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the available packages by name",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			runSearch(cfg, directory, query, formatStr)
		},
	}
	cmdSearch.Flags().SortFlags = false
	cmdSearch.Flags().StringVarP(
		&formatStr, "format", "f", "table", `output format ("table", "json" or "yaml")`,
	)
	rootCmd.AddCommand(cmdSearch)

	cmdSources := &cobra.Command{
		Use:   "sources",
		Short: "Manage package sources",
	}

	cmdSourcesList := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runSourcesList(cfg, directory, formatStr)
		},
	}
	cmdSourcesList.Flags().SortFlags = false
	cmdSourcesList.Flags().StringVarP(
		&formatStr, "format", "f", "table", `output format ("table", "json" or "yaml")`,
	)
	cmdSources.AddCommand(cmdSourcesList)

	cmdSourcesAdd := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Register a new source",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			runSourcesAdd(cfg, directory, args[0], args[1])
		},
	}
	cmdSources.AddCommand(cmdSourcesAdd)

	cmdSourcesRemove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Unregister a source",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runSourcesRemove(cfg, directory, args[0])
		},
	}
	cmdSources.AddCommand(cmdSourcesRemove)

	cmdSourcesUpdate := &cobra.Command{
		Use:   "update [NAME...]",
		Short: "Fetch sources and re-ingest their packages",
		Run: func(cmd *cobra.Command, args []string) {
			runSourcesUpdate(cfg, directory, args)
		},
	}
	cmdSources.AddCommand(cmdSourcesUpdate)

	cmdSourcesShow := &cobra.Command{
		Use:   "show NAME",
		Short: "Show details of one source",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runSourcesShow(cfg, directory, args[0], formatStr)
		},
	}
	cmdSourcesShow.Flags().SortFlags = false
	cmdSourcesShow.Flags().StringVarP(
		&formatStr, "format", "f", "table", `output format ("table", "json" or "yaml")`,
	)
	cmdSources.AddCommand(cmdSourcesShow)

	rootCmd.AddCommand(cmdSources)

	cmdProject := &cobra.Command{
		Use:   "project",
		Short: "Create and verify projects",
	}

	cmdProjectNew := &cobra.Command{
		Use:   "new NAME",
		Short: "Generate a new project",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runProjectNew(cfg, directory, args[0], buildSystem, vcs)
		},
	}
	cmdProjectNew.Flags().SortFlags = false
	cmdProjectNew.Flags().StringVar(
		&buildSystem, "build-system", "cmake", `build system to generate files for ("cmake" or "none")`,
	)
	cmdProjectNew.Flags().StringVar(
		&vcs, "version-control-system", "git", `version control system to set up ("git" or "none")`,
	)
	cmdProject.AddCommand(cmdProjectNew)

	cmdProjectVerify := &cobra.Command{
		Use:   "verify",
		Short: "Verify the project manifest",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runProjectVerify(cfg, directory)
		},
	}
	cmdProject.AddCommand(cmdProjectVerify)

	rootCmd.AddCommand(cmdProject)

	cmdInfo := &cobra.Command{
		Use:   "info",
		Short: "Show the available database locations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runInfo(cfg, directory)
		},
	}
	rootCmd.AddCommand(cmdInfo)

	specialArgs := map[string](func()){}
	for _, helpFlag := range []string{"-help", "-?"} {
		specialArgs[helpFlag] = func() {
			_ = rootCmd.Usage()
			os.Exit(0)
		}
	}
	for _, versionFlag := range []string{"-version", "-V"} {
		specialArgs[versionFlag] = func() {
			fmt.Println(getVersion())
			os.Exit(0)
		}
	}

	if len(os.Args) >= 2 {
		fn, ok := specialArgs[os.Args[1]]
		if ok {
			fn()
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
