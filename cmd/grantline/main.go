// Package main is the entry point for the Grantline CLI.
package main

import (
	"os"

	"github.com/grantline/grantline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
