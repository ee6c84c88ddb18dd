// Package conflict finds file and line-range overlaps between patches that
// are applied to the same source tree.
package conflict

import (
	"fmt"
	"path/filepath"

	"github.com/NielsdaWheelz/nodebuild/internal/diff"
	"github.com/NielsdaWheelz/nodebuild/internal/patch"
)

// Severity classifies a conflict record.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityIgnore  Severity = "ignore"
)

// ParseSeverity parses a configured severity name.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityIgnore:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("invalid severity %q (want error, warning or ignore)", s)
	}
}

// Policy decides the severity of each kind of overlap.
type Policy struct {
	// SameFile applies when two patches touch a file without overlapping lines.
	SameFile Severity
	// Overlap applies when new-range intervals intersect.
	Overlap Severity
}

// DefaultPolicy blocks on line overlaps and warns on shared files.
func DefaultPolicy() Policy {
	return Policy{SameFile: SeverityWarning, Overlap: SeverityError}
}

// Input is one validated patch.
type Input struct {
	ID       string
	Analysis patch.Analysis
	Files    []diff.FileDiff
}

// FromVerdicts builds inputs from valid verdicts, keyed by path.
// Invalid verdicts are skipped.
func FromVerdicts(verdicts []patch.Verdict) []Input {
	var inputs []Input
	for _, v := range verdicts {
		if !v.Valid {
			continue
		}
		inputs = append(inputs, Input{ID: v.Path, Analysis: v.Analysis, Files: v.Files})
	}
	return inputs
}

// Record describes a file touched by two patches.
type Record struct {
	Patches [2]string
	File    string

	// Range is the intersection of the first overlapping hunk pair.
	// Zero when the patches do not overlap.
	Range    diff.Range
	Overlaps bool

	Severity Severity
	Message  string
}

// Detect compares every unordered pair of inputs, in input order, and
// returns one record per commonly touched file. Records whose severity the
// policy maps to ignore are dropped.
func Detect(inputs []Input, targetVersion string, policy Policy) []Record {
	var records []Record
	for i := 0; i < len(inputs); i++ {
		for j := i + 1; j < len(inputs); j++ {
			records = append(records, comparePair(inputs[i], inputs[j], targetVersion, policy)...)
		}
	}
	return records
}

func comparePair(a, b Input, targetVersion string, policy Policy) []Record {
	var records []Record
	for _, file := range a.Analysis.TouchedFiles {
		if !b.Analysis.Touches(file) {
			continue
		}

		rec := Record{Patches: [2]string{a.ID, b.ID}, File: file}
		if r, ok := firstOverlap(newRanges(a.Files, file), newRanges(b.Files, file)); ok {
			rec.Range = r
			rec.Overlaps = true
			rec.Severity = policy.Overlap
			rec.Message = fmt.Sprintf("%s and %s both modify %s at lines %s",
				name(a.ID), name(b.ID), file, r)
		} else {
			rec.Severity = policy.SameFile
			rec.Message = fmt.Sprintf("%s and %s both modify %s at non-overlapping lines",
				name(a.ID), name(b.ID), file)
		}
		if rec.Severity == SeverityIgnore {
			continue
		}
		if targetVersion != "" {
			rec.Message += fmt.Sprintf(" (target %s)", targetVersion)
		}
		records = append(records, rec)
	}
	return records
}

func newRanges(files []diff.FileDiff, path string) []diff.Range {
	var ranges []diff.Range
	for _, f := range files {
		if f.Path() != path {
			continue
		}
		for _, h := range f.Hunks {
			ranges = append(ranges, h.NewRange())
		}
	}
	return ranges
}

func firstOverlap(a, b []diff.Range) (diff.Range, bool) {
	for _, ra := range a {
		for _, rb := range b {
			if ra.Overlaps(rb) {
				return ra.Intersect(rb), true
			}
		}
	}
	return diff.Range{}, false
}

func name(id string) string {
	return filepath.Base(id)
}

// HasBlocking reports whether any record has error severity.
func HasBlocking(records []Record) bool {
	for _, r := range records {
		if r.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Partition splits records into errors and warnings, preserving order.
func Partition(records []Record) (errs, warnings []Record) {
	for _, r := range records {
		switch r.Severity {
		case SeverityError:
			errs = append(errs, r)
		case SeverityWarning:
			warnings = append(warnings, r)
		}
	}
	return errs, warnings
}
