// Package main provides the entry point for the harborsync CLI tool.
package main

import "github.com/harborsync/harborsync/cmd/harborsync/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
