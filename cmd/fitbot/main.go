// Command fitbot is the entry point for the FIT Assistant, a
// retrieval-augmented FAQ bot for the Food Intelligence Tool. It provides a
// CLI interface (via Cobra) and an HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/lightblue/fitbot-go/cmd/fitbot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
