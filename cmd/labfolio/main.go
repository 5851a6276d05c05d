package main

import (
	"os"

	"github.com/wonny/labfolio/backend/cmd/labfolio/commands"
)

// main is the entry point for the labfolio CLI
// ⭐ single CLI entry point: go run ./cmd/labfolio [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
