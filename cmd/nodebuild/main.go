// Command nodebuild validates patches for custom Node.js builds and tracks
// build stage checkpoints.
package main

import (
	"os"

	"github.com/NielsdaWheelz/nodebuild/internal/cli/cobra"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
)

func main() {
	err := cobra.Execute(os.Stdout, os.Stderr)
	if err != nil {
		// Use verbose mode if --verbose global flag was set
		opts := errors.PrintOptions{
			Verbose: cobra.GetGlobalOpts().Verbose,
		}
		errors.PrintWithOptions(os.Stderr, err, opts)
		os.Exit(errors.ExitCode(err))
	}
}
