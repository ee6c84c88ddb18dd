package commands

import (
	"io"

	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/patch"
	"github.com/NielsdaWheelz/nodebuild/internal/pipeline"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// ConflictsOpts holds options for the conflicts command.
type ConflictsOpts struct {
	Patches     []string
	NodeVersion string
	ConfigPath  string

	// SameFile and Overlap override the configured severities when set.
	SameFile string
	Overlap  string
}

// Conflicts reports files touched by more than one patch. Version
// mismatches are accepted here; `validate` reports them.
func Conflicts(env Env, opts ConflictsOpts, stdout io.Writer) error {
	paths, version, cfg, err := env.patchArgs(opts.Patches, opts.NodeVersion, opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := checkVersion(version); err != nil {
		return err
	}

	policy := conflict.DefaultPolicy()
	if cfg != nil {
		policy = cfg.Conflicts
	}
	if policy.SameFile, err = overrideSeverity("--same-file", opts.SameFile, policy.SameFile); err != nil {
		return err
	}
	if policy.Overlap, err = overrideSeverity("--overlap", opts.Overlap, policy.Overlap); err != nil {
		return err
	}

	v := patch.NewValidator(env.FS)
	verdicts := v.ValidateAll(paths, version)
	for i, verdict := range verdicts {
		if verdict.Kind == patch.KindVersionMismatch {
			env.logger().Warn("ignoring target version for conflict check", "patch", verdict.Path, "reason", verdict.Reason)
			verdicts[i] = v.Accept(verdict)
			continue
		}
		if !verdict.Valid {
			return verdict.Err(version)
		}
	}

	records := conflict.Detect(conflict.FromVerdicts(verdicts), version, policy)
	if err := render.WriteConflicts(stdout, records, env.Style); err != nil {
		return errors.Wrap(errors.EInternal, "failed to write output", err)
	}

	if errs, _ := conflict.Partition(records); len(errs) > 0 {
		return pipeline.ConflictError(errs)
	}
	return nil
}

func overrideSeverity(flag, value string, current conflict.Severity) (conflict.Severity, error) {
	if value == "" {
		return current, nil
	}
	s, err := conflict.ParseSeverity(value)
	if err != nil {
		return "", errors.New(errors.EUsage, flag+": "+err.Error())
	}
	return s, nil
}
