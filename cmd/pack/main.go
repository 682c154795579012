package main

import (
	"os"

	"github.com/conduit-lang/pack/internal/cli/commands"
)

var (
	// Version information - will be set at build time
	Version   = ""
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if Version != "" {
		commands.Version = Version
	}
	commands.GitCommit = GitCommit
	commands.BuildDate = BuildDate

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
