package commands

import (
	"context"
	"io"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/config"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/patchtool"
	"github.com/NielsdaWheelz/nodebuild/internal/pipeline"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// DryRunOpts holds options for the dry-run command.
type DryRunOpts struct {
	Patch string

	// SourceDir defaults to the config's source_dir.
	SourceDir string

	// Strip is the -p level; the CLI defaults it to 1.
	Strip int

	// Timeout overrides the configured dry-run timeout when positive.
	Timeout time.Duration

	ConfigPath string
}

// DryRun checks whether one patch applies to a source tree without
// modifying it.
func DryRun(ctx context.Context, env Env, opts DryRunOpts, stdout io.Writer) error {
	if opts.Patch == "" {
		return errors.New(errors.EUsage, "patch file is required")
	}

	tool := patchtool.New(env.Runner, env.Logger)
	sourceDir := env.abs(opts.SourceDir)

	cfg, cfgErr := env.loadConfig(opts.ConfigPath)
	switch {
	case cfgErr == nil:
		tool = env.toolFor(cfg)
		if sourceDir == "" {
			sourceDir = cfg.SourceDir
		}
	case opts.ConfigPath != "" || errors.GetCode(cfgErr) != errors.ENoBuildConfig:
		return cfgErr
	}
	if sourceDir == "" {
		return errors.NewWithDetails(errors.EUsage, "--source is required without "+config.FileName,
			map[string]string{"hint": "nodebuild dry-run <patch> --source <node source dir>"})
	}

	if opts.Timeout > 0 {
		tool.DryRunTimeout = opts.Timeout
	}
	if opts.Strip < 0 || opts.Strip > config.MaxStrip {
		return errors.New(errors.EUsage, "--strip must be between 0 and 16")
	}

	spec := pipeline.PatchSpec{Path: env.abs(opts.Patch), Strip: opts.Strip}
	res, err := tool.DryRun(ctx, spec.Path, sourceDir, spec.Strip)
	if err != nil {
		return pipeline.SpawnError(ctx, "dry-run", spec, err)
	}
	if err := render.WriteApplyResult(stdout, res); err != nil {
		return errors.Wrap(errors.EInternal, "failed to write output", err)
	}
	return res.Err()
}
