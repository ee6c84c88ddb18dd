package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/NielsdaWheelz/nodebuild/internal/diff"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/patch"
	"github.com/NielsdaWheelz/nodebuild/internal/pipeline"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// PatchOpts holds options for the patch command.
type PatchOpts struct {
	ConfigPath           string
	Force                bool
	AllowVersionMismatch bool
}

// Patch runs the full patch gate for the configured build: validate,
// detect conflicts, dry-run, apply, verify, checkpoint.
func Patch(ctx context.Context, env Env, opts PatchOpts, stdout, stderr io.Writer) error {
	cfg, err := env.loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	bc := pipeline.NewBuildContext(&cfg, env.FS, env.Now, env.Logger)
	bc.Force = opts.Force
	bc.AllowVersionMismatch = opts.AllowVersionMismatch

	stage := pipeline.NewPatchStage(env.FS, env.toolFor(cfg), env.Now)
	rep, runErr := stage.Run(ctx, bc)

	if errors.GetCode(runErr) == errors.EPatchConflict {
		render.WriteConflictMessages(stderr, rep.Conflicts)
	}
	if err := render.WritePatchSummary(stdout, rep.Record); err != nil && runErr == nil {
		return errors.Wrap(errors.EInternal, "failed to write output", err)
	}
	return runErr
}

// PatchNewOpts holds options for the patch new command.
type PatchNewOpts struct {
	// From and To are the original and modified files. An empty From
	// creates Path; an empty To deletes it.
	From string
	To   string

	// Path is the file path relative to the Node.js source root.
	Path string

	Description string
	NodeVersion string

	// Output is the patch file to write. Empty writes to stdout.
	Output  string
	Force   bool
	Context int
}

// PatchNew authors a patch file with a metadata header from two versions
// of one source file.
func PatchNew(env Env, opts PatchNewOpts, stdout io.Writer) error {
	if opts.Path == "" {
		return errors.New(errors.EUsage, "--path is required")
	}
	if opts.From == "" && opts.To == "" {
		return errors.New(errors.EUsage, "at least one of --from and --to is required")
	}
	if err := checkVersion(opts.NodeVersion); err != nil {
		return err
	}

	oldContent, err := env.readOptional(opts.From)
	if err != nil {
		return err
	}
	newContent, err := env.readOptional(opts.To)
	if err != nil {
		return err
	}

	var header []string
	if d := strings.TrimSpace(opts.Description); d != "" {
		header = append(header, d)
	}
	if opts.NodeVersion != "" {
		header = append(header, "Target: "+patch.NormalizeVersion(opts.NodeVersion))
	}

	text, err := diff.Generate(strings.TrimPrefix(opts.Path, "/"), oldContent, newContent,
		diff.GenerateOptions{Context: opts.Context, Header: header})
	if err != nil {
		if stderrors.Is(err, diff.ErrNoChanges) {
			return errors.New(errors.EUsage, "no changes between --from and --to")
		}
		return errors.Wrap(errors.EInternal, "failed to generate patch", err)
	}
	if _, err := diff.Parse(text); err != nil {
		return errors.Wrap(errors.EInternal, "generated patch does not parse", err)
	}

	if opts.Output == "" {
		_, err := io.WriteString(stdout, text)
		return err
	}

	out := env.abs(opts.Output)
	if _, err := env.FS.Stat(out); err == nil && !opts.Force {
		return errors.NewWithDetails(errors.EUsage, out+" already exists",
			map[string]string{"hint": "use --force to overwrite"})
	}
	if err := fs.WriteFileAtomic(out, []byte(text), 0o644); err != nil {
		return errors.Wrap(errors.EInternal, "failed to write "+out, err)
	}
	_, _ = fmt.Fprintf(stdout, "wrote %s\n", out)
	return nil
}

// readOptional reads p, returning nil content for an empty path.
func (e Env) readOptional(p string) ([]byte, error) {
	if p == "" {
		return nil, nil
	}
	data, err := e.FS.ReadFile(e.abs(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(errors.EUsage, "file not found: "+p, map[string]string{"file": e.abs(p)})
		}
		return nil, errors.Wrap(errors.EInternal, "failed to read "+p, err)
	}
	return data, nil
}
