package cobra

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/version"
)

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print nodebuild version",
		Long: `Print the nodebuild version, the Go toolchain it was built with and the
host platform. Include this line in bug reports about patch or build failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, version.Version)
				return err
			}
			_, err := fmt.Fprintf(out, "nodebuild %s (%s, %s/%s)\n",
				version.FullVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")

	return cmd
}
