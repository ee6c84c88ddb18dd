package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
)

func newValidateCmd() *cobra.Command {
	var opts commands.ValidateOpts

	cmd := &cobra.Command{
		Use:   "validate [patch...]",
		Short: "Validate patch files",
		Long: `Validate patch files: parse each unified diff, extract its description and
declared target version, and flag hunks that touch include paths, SEA
feature detection, build configuration or compression.

Without arguments, validates the patches listed in nodebuild.yaml against
its node_version.

Exit status is non-zero when any patch is unreadable, malformed, or
declares a different target version.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			opts.Patches = args
			return commands.Validate(env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.NodeVersion, "node-version", "", "expected target version (e.g. v24.10.0); defaults to nodebuild.yaml")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print verdicts as JSON")

	return cmd
}
