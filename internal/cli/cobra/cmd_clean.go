package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
	"github.com/NielsdaWheelz/nodebuild/internal/tty"
)

func newCleanCmd() *cobra.Command {
	var opts commands.CleanOpts

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build output and the checkpoint",
		Long: `Remove build output (<build_dir>/out) and the checkpoint so the next build
starts from scratch. Never touches the source tree or anything outside the
build directory.

Requires an interactive terminal and typed confirmation unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			opts.Interactive = tty.IsInteractive()
			return commands.Clean(env, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.BuildDir, "build-dir", "", "build directory (default: build_dir from nodebuild.yaml)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "skip the confirmation prompt")

	return cmd
}
