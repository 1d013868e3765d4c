// Package main implements the ralph binary. It is the only
// public-facing entry point, since ralph's Go packages are all
// internal.
package main

import "github.com/ralph-pm/ralph/internal/cli"

// Main entry point for the ralph binary.
func main() {
	cli.DoCLI()
}
