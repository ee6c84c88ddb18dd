package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
)

func newConflictsCmd() *cobra.Command {
	var opts commands.ConflictsOpts

	cmd := &cobra.Command{
		Use:   "conflicts [patch...]",
		Short: "Report files modified by more than one patch",
		Long: `Report files modified by more than one patch.

Overlapping line ranges are errors by default; touching the same file at
different lines is a warning. Severities come from nodebuild.yaml and can be
overridden with --same-file and --overlap (error, warning or ignore).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			opts.Patches = args
			return commands.Conflicts(env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.NodeVersion, "node-version", "", "target version included in conflict messages")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")
	cmd.Flags().StringVar(&opts.SameFile, "same-file", "", "severity for patches touching the same file")
	cmd.Flags().StringVar(&opts.Overlap, "overlap", "", "severity for overlapping line ranges")

	return cmd
}
