package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/pipeline"
)

// CleanOpts holds options for the clean command.
type CleanOpts struct {
	CheckpointOpts

	// Yes skips the confirmation prompt.
	Yes bool

	// Interactive reports whether stdin and stderr are terminals.
	Interactive bool
}

// Clean removes build output and the checkpoint. Without --yes it
// requires an interactive terminal and a typed confirmation.
func Clean(env Env, opts CleanOpts, stdin io.Reader, stdout, stderr io.Writer) error {
	bc, err := env.buildContext(opts.CheckpointOpts)
	if err != nil {
		return err
	}

	if !opts.Yes {
		if !opts.Interactive {
			return errors.New(errors.ENotInteractive, "clean requires an interactive terminal or --yes")
		}
		_, _ = fmt.Fprintf(stderr, "this removes %s and the build checkpoint\n", bc.Store.OutputDir())
		_, _ = fmt.Fprint(stderr, "confirm: type 'clean' to proceed: ")
		input, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil {
			return errors.Wrap(errors.EAborted, "failed to read confirmation", err)
		}
		if strings.TrimSpace(input) != "clean" {
			return errors.New(errors.EAborted, "confirmation failed; expected 'clean'")
		}
	}

	if err := pipeline.Clean(bc); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "cleaned %s\n", bc.BuildDir)
	return nil
}
