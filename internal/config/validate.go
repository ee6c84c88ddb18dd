package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
	"github.com/NielsdaWheelz/nodebuild/internal/patch"
)

// ValidationError is a single validation failure with field context.
type ValidationError struct {
	Field string
	Msg   string
}

func (v *ValidationError) Error() string {
	if v.Field != "" {
		return v.Field + ": " + v.Msg
	}
	return v.Msg
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// resolve validates raw and applies defaults. Relative paths are joined
// to baseDir. The first failure is returned.
func resolve(raw fileConfig, baseDir string) (BuildConfig, error) {
	var cfg BuildConfig

	if raw.Version == nil {
		return cfg, invalid("version", "missing required field")
	}
	if *raw.Version != 1 {
		return cfg, invalid("version", "must be 1")
	}

	if raw.NodeVersion == "" {
		return cfg, invalid("node_version", "missing required field")
	}
	cfg.NodeVersion = patch.NormalizeVersion(raw.NodeVersion)
	if !patch.IsVersion(cfg.NodeVersion) {
		return cfg, invalid("node_version", "must be a release version like v24.10.0, got %q", raw.NodeVersion)
	}

	if raw.SourceDir == "" {
		return cfg, invalid("source_dir", "missing required field")
	}
	cfg.SourceDir = resolvePath(baseDir, raw.SourceDir)
	if raw.BuildDir == "" {
		return cfg, invalid("build_dir", "missing required field")
	}
	cfg.BuildDir = resolvePath(baseDir, raw.BuildDir)

	for i, p := range raw.Patches {
		field := fmt.Sprintf("patches[%d]", i)
		if p.Path == "" {
			return cfg, invalid(field+".path", "missing required field")
		}
		strip := DefaultStrip
		if p.Strip != nil {
			strip = *p.Strip
		}
		if strip < 0 || strip > MaxStrip {
			return cfg, invalid(field+".strip", "must be between 0 and %d", MaxStrip)
		}
		cfg.Patches = append(cfg.Patches, Patch{Path: resolvePath(baseDir, p.Path), Strip: strip})
	}

	var err error
	if cfg.DryRunTimeout, err = parseTimeout("timeouts.dry_run", raw.Timeouts.DryRun, DefaultDryRunTimeout); err != nil {
		return cfg, err
	}
	if cfg.ApplyTimeout, err = parseTimeout("timeouts.apply", raw.Timeouts.Apply, DefaultApplyTimeout); err != nil {
		return cfg, err
	}

	cfg.RetryAttempts = DefaultRetryAttempts
	if raw.Retry.Attempts != nil {
		cfg.RetryAttempts = *raw.Retry.Attempts
		if cfg.RetryAttempts < 1 || cfg.RetryAttempts > MaxRetryAttempts {
			return cfg, invalid("retry.attempts", "must be between 1 and %d", MaxRetryAttempts)
		}
	}
	cfg.RetryInitialDelay = DefaultRetryInitialDelay
	if raw.Retry.InitialDelay != "" {
		d, err := time.ParseDuration(raw.Retry.InitialDelay)
		if err != nil {
			return cfg, invalid("retry.initial_delay", "invalid duration: %v", err)
		}
		if d <= 0 || d > MaxRetryInitialDelay {
			return cfg, invalid("retry.initial_delay", "must be greater than 0 and at most %s", MaxRetryInitialDelay)
		}
		cfg.RetryInitialDelay = d
	}

	cfg.Conflicts = conflict.DefaultPolicy()
	if raw.Conflicts.SameFile != "" {
		if cfg.Conflicts.SameFile, err = conflict.ParseSeverity(raw.Conflicts.SameFile); err != nil {
			return cfg, invalid("conflicts.same_file", "%v", err)
		}
	}
	if raw.Conflicts.Overlap != "" {
		if cfg.Conflicts.Overlap, err = conflict.ParseSeverity(raw.Conflicts.Overlap); err != nil {
			return cfg, invalid("conflicts.overlap", "%v", err)
		}
	}

	disk := float64(DefaultMinDiskGB)
	if raw.Preflight.MinDiskGB != nil {
		disk = *raw.Preflight.MinDiskGB
		if disk < 0 {
			return cfg, invalid("preflight.min_disk_gb", "must not be negative")
		}
	}
	mem := float64(DefaultMinMemoryGB)
	if raw.Preflight.MinMemoryGB != nil {
		mem = *raw.Preflight.MinMemoryGB
		if mem < 0 {
			return cfg, invalid("preflight.min_memory_gb", "must not be negative")
		}
	}
	cfg.MinDiskBytes = uint64(disk * gib)
	cfg.MinMemoryBytes = uint64(mem * gib)

	return cfg, nil
}

func parseTimeout(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, invalid(field, "invalid duration: %v", err)
	}
	if d < MinTimeout {
		return 0, invalid(field, "must be at least %s", MinTimeout)
	}
	if d > MaxTimeout {
		return 0, invalid(field, "must be at most %s", MaxTimeout)
	}
	return d, nil
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
