package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
)

func newPatchCmd() *cobra.Command {
	var opts commands.PatchOpts

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Run the patch gate for the configured build",
		Long: `Run the patch gate for the build described by nodebuild.yaml:

  1. validate every patch
  2. detect conflicts between patches
  3. dry-run every patch
  4. apply every patch, in order
  5. verify the source tree carries every modification
  6. record the "patched" checkpoint

The stage is skipped when the checkpoint already shows it complete.
Writes .nodebuild/patch_record.json and appends to .nodebuild/events.jsonl
in the build directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			return commands.Patch(ctx, env, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to nodebuild.yaml (default: ./nodebuild.yaml)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-run even if the checkpoint shows the stage complete")
	cmd.Flags().BoolVar(&opts.AllowVersionMismatch, "allow-version-mismatch", false, "accept patches that declare another node version")

	cmd.AddCommand(newPatchNewCmd())

	return cmd
}

func newPatchNewCmd() *cobra.Command {
	var opts commands.PatchNewOpts

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Author a patch file from two versions of a source file",
		Long: `Author a patch file from two versions of a source file.
The patch starts with a comment header holding the description and the
target node version, and is checked by the parser before it is written.

Omit --from to create the file; omit --to to delete it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd)
			if err != nil {
				return err
			}
			return commands.PatchNew(env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "original file")
	cmd.Flags().StringVar(&opts.To, "to", "", "modified file")
	cmd.Flags().StringVar(&opts.Path, "path", "", "file path relative to the Node.js source root (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "one-line description for the patch header")
	cmd.Flags().StringVar(&opts.NodeVersion, "node-version", "", "target node version for the patch header")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the patch to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite --output if it exists")
	cmd.Flags().IntVar(&opts.Context, "context", 3, "context lines around each change")

	return cmd
}
