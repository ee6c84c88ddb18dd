package patch

import (
	stderrors "errors"
	"fmt"

	"github.com/NielsdaWheelz/nodebuild/internal/diff"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

// Kind classifies an invalid verdict.
type Kind string

const (
	KindUnreadable      Kind = "unreadable"
	KindMalformed       Kind = "malformed"
	KindVersionMismatch Kind = "version_mismatch"
)

// Verdict is the result of validating one patch file.
// Reason is set iff Valid is false.
type Verdict struct {
	Path   string
	Valid  bool
	Kind   Kind
	Reason string

	Metadata Metadata
	Analysis Analysis

	// Files is the parsed patch. Set for valid verdicts and version
	// mismatches; nil when the file was unreadable or malformed.
	Files []diff.FileDiff

	// Malformed carries the parser failure for KindMalformed.
	Malformed *diff.MalformedError
}

// Validator validates patch files. The file read is its only side effect.
type Validator struct {
	FS    fs.FS
	Rules RuleTable
}

// NewValidator returns a Validator using DefaultRules.
func NewValidator(fsys fs.FS) *Validator {
	return &Validator{FS: fsys, Rules: DefaultRules}
}

// Validate reads, parses and classifies the patch at path. When the patch
// declares a target version that differs from expected, the verdict is
// invalid. Expected may be empty to skip the version check.
func (v *Validator) Validate(path, expected string) Verdict {
	verdict := Verdict{Path: path}

	data, err := v.FS.ReadFile(path)
	if err != nil {
		verdict.Kind = KindUnreadable
		verdict.Reason = fmt.Sprintf("unreadable: %v", err)
		return verdict
	}
	text := string(data)

	parsed, err := diff.Parse(text)
	if err != nil {
		verdict.Kind = KindMalformed
		verdict.Reason = err.Error()
		var me *diff.MalformedError
		if stderrors.As(err, &me) {
			verdict.Malformed = me
		}
		return verdict
	}
	verdict.Files = parsed.Files
	verdict.Metadata = ExtractMetadata(text)

	expected = NormalizeVersion(expected)
	if declared := verdict.Metadata.TargetVersion; declared != "" && expected != "" && declared != expected {
		verdict.Kind = KindVersionMismatch
		verdict.Reason = fmt.Sprintf("version mismatch: patch declares %s, expected %s", declared, expected)
		return verdict
	}

	verdict.Analysis = Analyze(parsed.Files, v.Rules)
	verdict.Valid = true
	return verdict
}

// ValidateAll validates each path in order.
func (v *Validator) ValidateAll(paths []string, expected string) []Verdict {
	out := make([]Verdict, 0, len(paths))
	for _, p := range paths {
		out = append(out, v.Validate(p, expected))
	}
	return out
}

// Accept turns a version-mismatch verdict into a valid one, running the
// analysis that was skipped. Other verdicts are returned unchanged.
func (v *Validator) Accept(verdict Verdict) Verdict {
	if verdict.Kind != KindVersionMismatch {
		return verdict
	}
	verdict.Analysis = Analyze(verdict.Files, v.Rules)
	verdict.Valid = true
	verdict.Kind = ""
	verdict.Reason = ""
	return verdict
}

// Err converts an invalid verdict into a BuildError. Returns nil for valid
// verdicts.
func (v Verdict) Err(expected string) error {
	if v.Valid {
		return nil
	}
	details := map[string]string{"op": "validate", "patch": v.Path}

	switch v.Kind {
	case KindUnreadable:
		return errors.NewWithDetails(errors.EPatchUnreadable, v.Reason, details)
	case KindMalformed:
		if v.Malformed != nil {
			details["file"] = v.Malformed.Path
			details["hunk"] = v.Malformed.Header
		}
		return errors.NewWithDetails(errors.EPatchMalformed, v.Reason, details)
	case KindVersionMismatch:
		details["declared"] = v.Metadata.TargetVersion
		details["expected"] = NormalizeVersion(expected)
		return errors.NewWithDetails(errors.EVersionMismatch, v.Reason, details)
	default:
		return errors.NewWithDetails(errors.EInternal, "invalid verdict without kind", details)
	}
}
