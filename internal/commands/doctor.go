package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/NielsdaWheelz/nodebuild/internal/config"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/patchtool"
	"github.com/NielsdaWheelz/nodebuild/internal/preflight"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// DoctorOpts holds options for the doctor command.
type DoctorOpts struct {
	ConfigPath string

	// BuildDir overrides the config's build_dir for the disk check.
	BuildDir string

	// Resources reads host resources. Nil uses the real host.
	Resources preflight.Resources
}

// Doctor checks that the host can run a build: disk, memory, CPUs and
// the patch tool. Thresholds come from the build config when one exists.
func Doctor(ctx context.Context, env Env, opts DoctorOpts, stdout io.Writer) error {
	popts := preflight.Options{
		BuildDir:       env.Cwd,
		MinDiskBytes:   config.DefaultMinDiskGB << 30,
		MinMemoryBytes: config.DefaultMinMemoryGB << 30,
	}

	cfg, err := env.loadConfig(opts.ConfigPath)
	switch {
	case err == nil:
		popts.BuildDir = cfg.BuildDir
		popts.MinDiskBytes = cfg.MinDiskBytes
		popts.MinMemoryBytes = cfg.MinMemoryBytes
		_, _ = fmt.Fprintf(stdout, "config: %s\n", cfg.Path)
		_, _ = fmt.Fprintf(stdout, "node_version: %s\n", cfg.NodeVersion)
		_, _ = fmt.Fprintf(stdout, "patches: %d\n", len(cfg.Patches))
	case opts.ConfigPath == "" && errors.GetCode(err) == errors.ENoBuildConfig:
		_, _ = fmt.Fprintf(stdout, "config: none (using defaults)\n")
	default:
		return err
	}
	if opts.BuildDir != "" {
		popts.BuildDir = env.abs(opts.BuildDir)
	}

	res := opts.Resources
	if res == nil {
		res = preflight.HostResources{}
	}
	report := preflight.Run(ctx, res, patchtool.New(env.Runner, env.Logger), popts)
	if err := render.WriteDoctor(stdout, report, env.Style); err != nil {
		return errors.Wrap(errors.EInternal, "failed to write output", err)
	}
	return report.Err()
}
