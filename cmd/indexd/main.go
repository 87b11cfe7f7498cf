package main

import (
	"os"

	"github.com/indexforge/backend/cmd/indexd/commands"
)

// main is the entry point for the IndexForge CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
