// Package cobra provides the Cobra-based CLI command tree for nodebuild.
package cobra

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/nodebuild/internal/commands"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/exec"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
	"github.com/NielsdaWheelz/nodebuild/internal/tty"
	"github.com/NielsdaWheelz/nodebuild/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose bool
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for nodebuild.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nodebuild",
		Short: "Patch gate and build checkpoints for custom Node.js runtimes",
		Long: `nodebuild - patch gate and build checkpoints for custom Node.js runtimes

nodebuild validates the patches applied to a Node.js source tree before a
long native build: it parses each unified diff, checks the declared target
version, flags patches that touch build configuration, reports patches that
overlap, dry-runs and applies them, and records which build stages finished
so an interrupted build can resume.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show debug logs and detailed error context")

	// Disable Cobra's default completion command (we register our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newValidateCmd(),
		newConflictsCmd(),
		newDryRunCmd(),
		newPatchCmd(),
		newCheckpointCmd(),
		newCleanCmd(),
		newDoctorCmd(),
		newCompletionCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

// newEnv builds the real command environment for cmd.
func newEnv(cmd *cobra.Command) (commands.Env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return commands.Env{}, errors.Wrap(errors.EInternal, "failed to get working directory", err)
	}
	return commands.Env{
		Runner: exec.NewRealRunner(),
		FS:     fs.NewRealFS(),
		Cwd:    cwd,
		Logger: newLogger(cmd.ErrOrStderr()),
		Now:    time.Now,
		Style:  styleFor(cmd.OutOrStdout()),
	}, nil
}

// newLogger returns a text logger on w: warnings by default, debug with --verbose.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if globalOpts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func styleFor(w io.Writer) render.Style {
	f, ok := w.(*os.File)
	return render.StyleFor(ok && tty.IsTTY(f))
}

// signalContext is cancelled on SIGINT or SIGTERM so a running patch(1)
// is interrupted instead of orphaned.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
