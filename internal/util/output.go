package util

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/ralph-pm/ralph/internal/config"
)

var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

// Style renders s with the given lipgloss style unless coloring is
// disabled.
func Style(style lipgloss.Style, s string) string {
	if config.NoColor {
		return s
	}
	return style.Render(s)
}

// Die is like fmt.Printf, but writes to stderr in red, adds a newline,
// and terminates the process.
func Die(format string, a ...interface{}) {
	fmt.Fprintln(os.Stderr, Style(errStyle, fmt.Sprintf(format, a...)))
	os.Exit(1)
}

// Panicf is a composition of fmt.Sprintf and panic.
func Panicf(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}

// ProgressMsg prints a progress message to stdout, unless --quiet was
// given.
func ProgressMsg(msg string) {
	if !config.Quiet {
		fmt.Println("-->", msg)
	}
}

// WarningMsg prints a non-fatal warning to stderr.
func WarningMsg(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", a...)
}
