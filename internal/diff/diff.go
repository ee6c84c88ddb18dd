// Package diff parses unified diffs into files and hunks without applying
// them, and generates unified diffs for authoring new patches.
//
// Parsing is pure: the same text always yields the same result, and nothing
// touches the filesystem.
package diff

import (
	"fmt"
	"strings"
)

// DevNull is the path used by unified diffs for a missing side of a
// file creation or deletion.
const DevNull = "/dev/null"

// LineKind tags a hunk line.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

func (k LineKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "context"
	}
}

// prefix returns the unified-diff marker for the kind.
func (k LineKind) prefix() byte {
	switch k {
	case Added:
		return '+'
	case Removed:
		return '-'
	default:
		return ' '
	}
}

// Line is one body line of a hunk, without its marker.
type Line struct {
	Kind LineKind
	Text string
}

// Range is an inclusive line interval. Zero-length hunk sides are the
// point [Start, Start].
type Range struct {
	Start int
	End   int
}

// Overlaps reports whether r and o share at least one line.
func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// Intersect returns the shared interval. Only meaningful when Overlaps is true.
func (r Range) Intersect(o Range) Range {
	return Range{Start: max(r.Start, o.Start), End: min(r.End, o.End)}
}

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Hunk is one @@ block of a unified diff.
type Hunk struct {
	// Header is the hunk header line as written.
	Header string

	OldStart int
	OldCount int
	NewStart int
	NewCount int

	// Section is the optional text after the closing @@ (usually a
	// function signature).
	Section string

	Lines []Line
}

// Counted returns the old and new line counts derived from the hunk body.
func (h Hunk) Counted() (oldCount, newCount int) {
	for _, l := range h.Lines {
		switch l.Kind {
		case Context:
			oldCount++
			newCount++
		case Removed:
			oldCount++
		case Added:
			newCount++
		}
	}
	return oldCount, newCount
}

// OldRange returns the interval of original-file lines the hunk covers.
func (h Hunk) OldRange() Range {
	return lineRange(h.OldStart, h.OldCount)
}

// NewRange returns the interval of patched-file lines the hunk covers.
func (h Hunk) NewRange() Range {
	return lineRange(h.NewStart, h.NewCount)
}

func lineRange(start, count int) Range {
	if count <= 0 {
		return Range{Start: start, End: start}
	}
	return Range{Start: start, End: start + count - 1}
}

// Changed reports whether the hunk adds or removes anything.
func (h Hunk) Changed() bool {
	for _, l := range h.Lines {
		if l.Kind != Context {
			return true
		}
	}
	return false
}

// AddedText returns the added lines in order.
func (h Hunk) AddedText() []string {
	return h.textOf(Added)
}

// RemovedText returns the removed lines in order.
func (h Hunk) RemovedText() []string {
	return h.textOf(Removed)
}

func (h Hunk) textOf(kind LineKind) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind == kind {
			out = append(out, l.Text)
		}
	}
	return out
}

// FileDiff is the section of a diff that targets one file.
type FileDiff struct {
	// OldPath and NewPath are the header paths with a/ and b/ prefixes and
	// trailing timestamps removed.
	OldPath string
	NewPath string

	// RawOldPath and RawNewPath keep the header paths as written, minus
	// timestamps. patch -pN strips components from these.
	RawOldPath string
	RawNewPath string

	IsNew     bool // old side is /dev/null
	IsDeleted bool // new side is /dev/null

	Hunks []Hunk
}

// Path returns the path the section targets: the new path, or the old path
// for deletions.
func (f FileDiff) Path() string {
	if f.NewPath == "" || f.NewPath == DevNull {
		return f.OldPath
	}
	return f.NewPath
}

// RawPath is Path before prefix removal.
func (f FileDiff) RawPath() string {
	if f.NewPath == "" || f.NewPath == DevNull {
		return f.RawOldPath
	}
	return f.RawNewPath
}

// Patch is a parsed unified diff.
type Patch struct {
	// Preamble holds the lines before the first file header (commit
	// message, metadata comments, git extended headers).
	Preamble []string

	Files []FileDiff
}

// HunkCount returns the total number of hunks across all files.
func (p *Patch) HunkCount() int {
	n := 0
	for _, f := range p.Files {
		n += len(f.Hunks)
	}
	return n
}

// MalformedError describes a structural violation in a unified diff.
type MalformedError struct {
	// Path is the file section the violation belongs to, if any.
	Path string

	// Header is the offending hunk header, if any.
	Header string

	// LineNo is the 1-based input line where the problem was detected.
	LineNo int

	Reason string
}

func (e *MalformedError) Error() string {
	var sb strings.Builder
	sb.WriteString("malformed patch")
	if e.Path != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Path)
	}
	if e.Header != "" {
		sb.WriteString(": hunk ")
		sb.WriteString(fmt.Sprintf("%q", e.Header))
	}
	if e.LineNo > 0 {
		sb.WriteString(fmt.Sprintf(" (line %d)", e.LineNo))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	return sb.String()
}
