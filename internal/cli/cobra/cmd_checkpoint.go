package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
)

func newCheckpointCmd() *cobra.Command {
	var opts commands.CheckpointOpts

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Show, record or clear build stage checkpoints",
		Long: `Show, record or clear build stage checkpoints.
Stages are none, cloned, patched, built and complete. The checkpoint lives in
<build_dir>/.nodebuild/checkpoint.json. Recording "complete" finishes the
build and clears the checkpoint.`,
	}

	cmd.PersistentFlags().StringVar(&opts.BuildDir, "build-dir", "", "build directory (default: build_dir from nodebuild.yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print recorded stages",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := newEnv(cmd)
				if err != nil {
					return err
				}
				return commands.CheckpointShow(env, opts, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:       "record <stage>",
			Short:     "Record that a stage finished",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"cloned", "patched", "built", "complete"},
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := newEnv(cmd)
				if err != nil {
					return err
				}
				return commands.CheckpointRecord(env, opts, args[0], cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the checkpoint",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := newEnv(cmd)
				if err != nil {
					return err
				}
				return commands.CheckpointClear(env, opts, cmd.OutOrStdout())
			},
		},
	)

	return cmd
}
