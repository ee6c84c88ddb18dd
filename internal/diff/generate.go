package diff

import (
	"errors"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// ErrNoChanges is returned by Generate when old and new content are equal.
var ErrNoChanges = errors.New("no changes between old and new content")

// GenerateOptions controls patch generation.
type GenerateOptions struct {
	// Context is the number of context lines around each change. Default 3.
	Context int

	// Header lines are written before the file header, each prefixed
	// with "# ". Used for patch metadata (description, target version).
	Header []string
}

// Generate produces a unified diff that turns oldContent into newContent for the file at
// path (relative to the source tree root). Empty old content produces a
// file creation, empty new content a deletion.
//
// Content without a trailing newline is normalized to end with one.
func Generate(path string, oldContent, newContent []byte, opts GenerateOptions) (string, error) {
	ctx := opts.Context
	if ctx <= 0 {
		ctx = 3
	}

	fromFile := "a/" + path
	toFile := "b/" + path
	if len(oldContent) == 0 {
		fromFile = DevNull
	}
	if len(newContent) == 0 {
		toFile = DevNull
	}

	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(oldContent)),
		B:        splitLinesKeepNL(string(newContent)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  ctx,
	}
	body, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", err
	}
	if body == "" {
		return "", ErrNoChanges
	}

	var sb strings.Builder
	for _, h := range opts.Header {
		sb.WriteString("# ")
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	sb.WriteString(body)
	return sb.String(), nil
}

// splitLinesKeepNL splits s into lines that each end in "\n".
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}
