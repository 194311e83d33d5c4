// Package main provides the entry point for the carrel CLI.
package main

import (
	"fmt"
	"os"

	"github.com/carrelhq/carrel/cmd/carrel/cmd"
	carrelerrors "github.com/carrelhq/carrel/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, carrelerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
