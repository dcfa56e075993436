// Package main is the entry point for deployctl.
//
// Hosting platforms call "deployctl build" from their build hook and
// "deployctl start" from their start hook. All commands live in
// internal/cli.
//
// version, commit and date are injected with -ldflags "-X main.version=..."
// at release time.
package main

import (
	"github.com/shinji-kodama/deployctl/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	cli.Execute(cli.NewRootCommand())
}
