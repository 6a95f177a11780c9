// Package main provides the pmactl CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/intellect4all/pma-engine/cmd/pmactl/commands"
)

var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
