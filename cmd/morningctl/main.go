// Package main provides the entrypoint for the morningctl operator tool.
package main

import (
	"fmt"
	"os"

	"github.com/morningready/morningready/internal/cli"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	cli.SetVersion(Version)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
