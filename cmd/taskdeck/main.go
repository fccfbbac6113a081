package main

import (
	"fmt"
	"os"

	app "github.com/taskdeck/taskdeck/internal"
	"github.com/taskdeck/taskdeck/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()

	deck, err := app.NewApp(basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing taskdeck: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = deck.Close() }()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
