package commands

import (
	"fmt"
	"io"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
	"github.com/NielsdaWheelz/nodebuild/internal/config"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/pipeline"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// CheckpointOpts selects the build directory: --build-dir wins over the
// config's build_dir.
type CheckpointOpts struct {
	BuildDir   string
	ConfigPath string
}

// buildContext returns a context for checkpoint-only commands.
func (e Env) buildContext(opts CheckpointOpts) (*pipeline.BuildContext, error) {
	cfg := config.BuildConfig{BuildDir: e.abs(opts.BuildDir)}
	if cfg.BuildDir == "" {
		loaded, err := e.loadConfig(opts.ConfigPath)
		if err != nil {
			if errors.GetCode(err) == errors.ENoBuildConfig && opts.ConfigPath == "" {
				return nil, errors.NewWithDetails(errors.EUsage, "--build-dir is required without "+config.FileName,
					map[string]string{"hint": "pass --build-dir or run from the directory holding " + config.FileName})
			}
			return nil, err
		}
		cfg = loaded
	}
	return pipeline.NewBuildContext(&cfg, e.FS, e.Now, e.Logger), nil
}

// CheckpointShow prints the checkpoint log.
func CheckpointShow(env Env, opts CheckpointOpts, stdout io.Writer) error {
	bc, err := env.buildContext(opts)
	if err != nil {
		return err
	}
	return render.WriteCheckpoint(stdout, bc.Checkpoint.Entries(), env.now(), env.Style)
}

// CheckpointRecord records stage. Recording complete finishes the build,
// which clears the checkpoint.
func CheckpointRecord(env Env, opts CheckpointOpts, stage string, stdout io.Writer) error {
	s, err := checkpoint.ParseStage(stage)
	if err != nil || s == checkpoint.StageNone {
		return errors.NewWithDetails(errors.EUsage, fmt.Sprintf("invalid stage %q (want cloned, patched, built or complete)", stage),
			map[string]string{"stage": stage})
	}

	bc, err := env.buildContext(opts)
	if err != nil {
		return err
	}

	if s == checkpoint.StageComplete {
		if err := pipeline.Finish(bc); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, "build complete; checkpoint cleared")
		return nil
	}

	if err := bc.Checkpoint.Record(s); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "recorded %s\n", s)
	return nil
}

// CheckpointClear removes the checkpoint so the next build starts from none.
func CheckpointClear(env Env, opts CheckpointOpts, stdout io.Writer) error {
	bc, err := env.buildContext(opts)
	if err != nil {
		return err
	}
	if err := bc.Checkpoint.Clear(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, "checkpoint cleared")
	return nil
}
