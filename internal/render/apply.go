package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/patchtool"
	"github.com/NielsdaWheelz/nodebuild/internal/store"
)

// ApplyStatus is the one-word outcome of a dry run or apply.
func ApplyStatus(r patchtool.Result) string {
	switch {
	case r.TimedOut:
		return "timed out"
	case r.AlreadyApplied:
		return "already applied"
	case r.Applicable && r.DryRun:
		return "applicable"
	case r.Applicable:
		return "applied"
	default:
		return "rejected"
	}
}

// WriteApplyResult writes a dry run or apply outcome as key: value lines.
//
// Output format:
//
//	patch: 001-sea.patch
//	source: /build/node
//	status: rejected
//	reason: Hunk #1 FAILED at 120.
//	duration: 0.4s
func WriteApplyResult(w io.Writer, r patchtool.Result) error {
	_, _ = fmt.Fprintf(w, "patch: %s\n", displayName(r.Patch))
	_, _ = fmt.Fprintf(w, "source: %s\n", r.SourceDir)
	_, _ = fmt.Fprintf(w, "status: %s\n", ApplyStatus(r))
	if r.Reason != "" {
		_, _ = fmt.Fprintf(w, "reason: %s\n", r.Reason)
	}
	_, err := fmt.Fprintf(w, "duration: %s\n", formatDuration(r.Duration))
	return err
}

// WritePatchSummary writes the outcome of a patch stage run.
//
// Output format:
//
//	build: 6f1c...
//	node: v24.10.0
//	  applied          001-sea.patch  modifies_feature_detection
//	  already applied  002-brotli.patch
//	patched 2 patches in 1.2s
func WritePatchSummary(w io.Writer, rec store.PatchRecord) error {
	_, _ = fmt.Fprintf(w, "build: %s\n", rec.BuildID)
	_, _ = fmt.Fprintf(w, "node: %s\n", rec.NodeVersion)

	if rec.Skipped {
		_, err := fmt.Fprintln(w, "patch stage already complete (checkpoint); use --force to re-run")
		return err
	}

	for _, c := range rec.Conflicts {
		_, _ = fmt.Fprintf(w, "%s\n", c)
	}

	width := 0
	statuses := make([]string, len(rec.Patches))
	for i, p := range rec.Patches {
		statuses[i] = outcomeStatus(p)
		if len(statuses[i]) > width {
			width = len(statuses[i])
		}
	}
	for i, p := range rec.Patches {
		line := fmt.Sprintf("  %-*s  %s", width, statuses[i], displayName(p.Path))
		if len(p.Flags) > 0 {
			line += "  " + strings.Join(p.Flags, ",")
		}
		_, _ = fmt.Fprintln(w, line)
	}

	dur := formatDuration(time.Duration(rec.DurationMS) * time.Millisecond)
	if !rec.OK {
		_, err := fmt.Fprintf(w, "patch stage failed after %s: %s\n", dur, rec.ErrorCode)
		return err
	}
	_, err := fmt.Fprintf(w, "patched %d %s in %s\n", len(rec.Patches), plural(len(rec.Patches), "patch", "patches"), dur)
	return err
}

func outcomeStatus(p store.PatchOutcome) string {
	switch {
	case !p.Valid:
		return "invalid"
	case p.AlreadyApplied:
		return "already applied"
	case p.Applied:
		return "applied"
	default:
		return "not applied"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
