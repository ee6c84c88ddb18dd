// Package verify checks that a patched source tree actually contains the
// modifications its patches describe.
package verify

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/nodebuild/internal/diff"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

// Target is one applied patch.
type Target struct {
	Patch string
	Strip int
	Files []diff.FileDiff
}

// Finding is one expected modification that is not present.
type Finding struct {
	Patch  string
	File   string
	Hunk   string // hunk header, empty for file-level findings
	Reason string
}

// Result is the outcome of verifying a source tree.
type Result struct {
	OK bool

	// Checked counts the hunks and file deletions examined.
	Checked int
	Missing []Finding
	Summary string
}

// Reasons reported in findings.
const (
	ReasonFileMissing    = "file missing"
	ReasonFileNotDeleted = "file should have been deleted"
	ReasonHunkNotFound   = "patched lines not found"
)

// Verify checks every target against sourceDir. For each hunk the patched
// side (context and added lines, in order) must appear contiguously in the
// file, after the previous hunk's match. Deleted files must be absent.
func Verify(filesystem fs.FS, sourceDir string, targets []Target) Result {
	var res Result
	for _, t := range targets {
		for _, f := range t.Files {
			rel := TargetPath(f.RawPath(), t.Strip)
			full := filepath.Join(sourceDir, filepath.FromSlash(rel))

			if f.IsDeleted {
				res.Checked++
				if _, err := filesystem.Stat(full); err == nil {
					res.Missing = append(res.Missing, Finding{Patch: t.Patch, File: rel, Reason: ReasonFileNotDeleted})
				}
				continue
			}

			data, err := filesystem.ReadFile(full)
			if err != nil {
				res.Checked += len(f.Hunks)
				reason := ReasonFileMissing
				if !stderrors.Is(err, os.ErrNotExist) {
					reason = "read failed: " + err.Error()
				}
				res.Missing = append(res.Missing, Finding{Patch: t.Patch, File: rel, Reason: reason})
				continue
			}

			lines := splitFileLines(string(data))
			from := 0
			for _, h := range f.Hunks {
				res.Checked++
				block := newSide(h)
				if len(block) == 0 {
					continue
				}
				at := indexBlock(lines, block, from)
				if at < 0 {
					res.Missing = append(res.Missing, Finding{Patch: t.Patch, File: rel, Hunk: h.Header, Reason: ReasonHunkNotFound})
					continue
				}
				from = at + len(block)
			}
		}
	}
	res.OK = DeriveOK(res)
	res.Summary = DeriveSummary(res)
	return res
}

// TargetPath applies a -p strip level to a raw diff header path the way
// patch(1) does: strip leading components are removed, so -p0 keeps an a/
// or b/ prefix. A path with too few components keeps its last one.
func TargetPath(p string, strip int) string {
	for i := 0; i < strip; i++ {
		_, rest, ok := strings.Cut(p, "/")
		if !ok {
			break
		}
		p = rest
	}
	return p
}

func newSide(h diff.Hunk) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind != diff.Removed {
			out = append(out, l.Text)
		}
	}
	return out
}

func splitFileLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// indexBlock returns the first index >= from where block occurs in lines.
func indexBlock(lines, block []string, from int) int {
	for i := from; i+len(block) <= len(lines); i++ {
		match := true
		for j, b := range block {
			if lines[i+j] != b {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
