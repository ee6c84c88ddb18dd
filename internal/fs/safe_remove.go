package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotUnderPrefix is returned when SafeRemoveAll refuses a target.
type ErrNotUnderPrefix struct {
	Target string
	Prefix string
	Reason string
}

func (e *ErrNotUnderPrefix) Error() string {
	return fmt.Sprintf("refusing to remove %q: %s (allowed prefix %q)", e.Target, e.Reason, e.Prefix)
}

// Refusal reasons.
const (
	ReasonOutsidePrefix = "resolves outside the allowed prefix"
	ReasonIsPrefix      = "is the allowed prefix itself"
	ReasonUnresolvable  = "cannot be resolved"
)

// SafeRemoveAll removes target only if, after cleaning and resolving
// symlinks, it lies strictly inside allowedPrefix. `nodebuild clean` wipes
// <build_dir>/out with it and never reaches the source tree.
//
// A missing target is a no-op. Anything that cannot be resolved is refused.
func SafeRemoveAll(target, allowedPrefix string) error {
	refuse := func(reason string) error {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix, Reason: reason}
	}

	realTarget, err := filepath.EvalSymlinks(filepath.Clean(target))
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return refuse(ReasonUnresolvable)
	}
	realPrefix, err := filepath.EvalSymlinks(filepath.Clean(allowedPrefix))
	if err != nil {
		return refuse(ReasonUnresolvable)
	}

	if realTarget == realPrefix {
		return refuse(ReasonIsPrefix)
	}
	if !IsSubpath(realTarget, realPrefix) {
		return refuse(ReasonOutsidePrefix)
	}
	return os.RemoveAll(filepath.Clean(target))
}

// IsSubpath reports whether target lies strictly below prefix. Both paths
// should already be cleaned and resolved.
func IsSubpath(target, prefix string) bool {
	rel, err := filepath.Rel(prefix, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
