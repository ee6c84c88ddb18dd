package cobra

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
)

func newDryRunCmd() *cobra.Command {
	var opts commands.DryRunOpts
	var timeoutStr string

	cmd := &cobra.Command{
		Use:   "dry-run <patch>",
		Short: "Check whether a patch applies without modifying the source",
		Long: `Check whether a patch applies to a Node.js source tree without modifying it.
Runs patch(1) with --dry-run. A patch that is already applied is reported as
such rather than as a failure.

Arguments:
  patch    patch file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeoutStr != "" {
				d, err := time.ParseDuration(timeoutStr)
				if err != nil {
					_ = cmd.Help()
					return errors.New(errors.EUsage, fmt.Sprintf("invalid timeout: %s", timeoutStr))
				}
				if d <= 0 {
					_ = cmd.Help()
					return errors.New(errors.EUsage, "timeout must be positive")
				}
				opts.Timeout = d
			}

			env, err := newEnv(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			opts.Patch = args[0]
			return commands.DryRun(ctx, env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.SourceDir, "source", "", "Node.js source directory (default: source_dir from nodebuild.yaml)")
	cmd.Flags().IntVar(&opts.Strip, "strip", 1, "leading path components to strip (patch -p)")
	cmd.Flags().StringVar(&timeoutStr, "timeout", "", "dry-run timeout (Go duration format, e.g. '90s'); defaults to nodebuild.yaml")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")

	return cmd
}
