package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
)

func newDoctorCmd() *cobra.Command {
	var opts commands.DoctorOpts

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this host can run a Node.js build",
		Long: `Check that this host can run a Node.js build.
Verifies free disk in the build directory, available memory, CPU count and
that patch(1) is installed. Thresholds come from nodebuild.yaml when present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			return commands.Doctor(ctx, env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")
	cmd.Flags().StringVar(&opts.BuildDir, "build-dir", "", "directory to check for free disk (default: build_dir from nodebuild.yaml)")

	return cmd
}
