// Package main provides the RideWise CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/ridewise-ai/ridewise/cmd/ridewise-cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
