// Package commands implements nodebuild CLI commands. Each command takes
// its dependencies (command runner, filesystem, writers) explicitly so it
// can run against fakes in tests.
package commands

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/config"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/exec"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/patchtool"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// Env holds what every command shares.
type Env struct {
	Runner exec.CommandRunner
	FS     fs.FS
	Cwd    string
	Logger *slog.Logger
	Now    func() time.Time
	Style  render.Style
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// configPath resolves --config against the working directory.
func (e Env) configPath(flag string) string {
	if flag == "" {
		return filepath.Join(e.Cwd, config.FileName)
	}
	if filepath.IsAbs(flag) {
		return flag
	}
	return filepath.Join(e.Cwd, flag)
}

func (e Env) loadConfig(flag string) (config.BuildConfig, error) {
	return config.Load(e.FS, e.configPath(flag))
}

// abs resolves p against the working directory.
func (e Env) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.Cwd, p)
}

// toolFor returns a patch tool configured from cfg.
func (e Env) toolFor(cfg config.BuildConfig) *patchtool.Tool {
	tool := patchtool.New(e.Runner, e.Logger)
	tool.DryRunTimeout = cfg.DryRunTimeout
	tool.ApplyTimeout = cfg.ApplyTimeout
	tool.Retry = patchtool.RetryConfig{Attempts: cfg.RetryAttempts, InitialDelay: cfg.RetryInitialDelay}
	return tool
}

// patchArgs resolves either explicit patch arguments or, when none are
// given, the patches and node version from the build config.
func (e Env) patchArgs(args []string, nodeVersion, configFlag string) (paths []string, version string, cfg *config.BuildConfig, err error) {
	if len(args) > 0 {
		paths = make([]string, len(args))
		for i, a := range args {
			paths[i] = e.abs(a)
		}
		return paths, nodeVersion, nil, nil
	}

	loaded, err := e.loadConfig(configFlag)
	if err != nil {
		if errors.GetCode(err) == errors.ENoBuildConfig && configFlag == "" {
			return nil, "", nil, errors.NewWithDetails(errors.EUsage,
				"no patches given and no "+config.FileName+" in the current directory",
				map[string]string{"hint": "pass patch files as arguments or use --config"})
		}
		return nil, "", nil, err
	}
	if nodeVersion == "" {
		nodeVersion = loaded.NodeVersion
	}
	return loaded.PatchPaths(), nodeVersion, &loaded, nil
}
