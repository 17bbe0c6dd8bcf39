package main

import (
	"os"

	"github.com/wonny/vantage/backend/cmd/vantage/commands"
)

// main is the entry point for the Vantage CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
