// Package main is the entry point for the approvalctl CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tOgg1/approvalctl/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(fmt.Sprintf("%s (%s, %s)", version, commit, date)); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || !exitErr.Printed {
			fmt.Fprint(os.Stderr, cli.FormatError(err))
		}
		os.Exit(cli.ExitCode(err))
	}
}
