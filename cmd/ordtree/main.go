// Package main provides the entry point for the ordtree CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/ordtree/cmd/ordtree/commands"
	"github.com/Sumatoshi-tech/ordtree/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
