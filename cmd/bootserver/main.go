package main

import (
	"os"

	"github.com/Wa4h1h/go-bootserver/cmd/bootserver/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.Version = version
	commands.Commit = commit

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
