package commands

import (
	"io"

	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/patch"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

// ValidateOpts holds options for the validate command.
type ValidateOpts struct {
	// Patches are the patch files to validate. Empty means the patches
	// listed in the build config.
	Patches []string

	// NodeVersion is the expected target version. Empty falls back to the
	// config's node_version; still empty skips the version check.
	NodeVersion string

	ConfigPath string
	JSON       bool
}

// Validate validates patch files and prints one verdict per patch.
// Returns the error of the first invalid patch.
func Validate(env Env, opts ValidateOpts, stdout io.Writer) error {
	paths, version, _, err := env.patchArgs(opts.Patches, opts.NodeVersion, opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := checkVersion(version); err != nil {
		return err
	}

	v := patch.NewValidator(env.FS)
	verdicts := v.ValidateAll(paths, version)

	if opts.JSON {
		err = render.WriteVerdictsJSON(stdout, verdicts)
	} else {
		err = render.WriteVerdicts(stdout, verdicts, v.Rules, env.Style)
	}
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to write output", err)
	}

	for _, verdict := range verdicts {
		if !verdict.Valid {
			return verdict.Err(version)
		}
	}
	return nil
}

// checkVersion rejects a malformed --node-version. Empty is allowed.
func checkVersion(version string) error {
	if version == "" {
		return nil
	}
	if !patch.IsVersion(patch.NormalizeVersion(version)) {
		return errors.NewWithDetails(errors.EUsage, "invalid node version "+version+" (want vMAJOR.MINOR.PATCH)",
			map[string]string{"expected": "vMAJOR.MINOR.PATCH"})
	}
	return nil
}
