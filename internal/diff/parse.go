package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hunkHeaderRe matches "@@ -start[,count] +start[,count] @@[ section]".
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// signatureSeparator ends the diff body in git format-patch output.
const signatureSeparator = "-- "

// Parse parses unified-diff text.
//
// A *MalformedError is returned when a hunk's body does not match its
// declared counts, a file section has no hunks, a hunk header is unreadable
// or appears outside a file section, or the input contains no hunks at all.
func Parse(text string) (*Patch, error) {
	p := &parser{lines: splitLines(text)}
	return p.parse()
}

type parser struct {
	lines []string
	pos   int

	patch Patch
	file  *FileDiff
	hunk  *Hunk

	// hunkLine is the input line of the current hunk header.
	hunkLine int
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (p *parser) parse() (*Patch, error) {
	seenFile := false
	done := false

	for p.pos = 0; p.pos < len(p.lines); p.pos++ {
		line := p.lines[p.pos]

		if done {
			// Everything after a format-patch signature is trailer text.
			continue
		}

		if p.hunk != nil {
			consumed, err := p.hunkLineOrEnd(line)
			if err != nil {
				return nil, err
			}
			if consumed {
				continue
			}
		}

		switch {
		case p.isFileHeader():
			if err := p.closeFile(); err != nil {
				return nil, err
			}
			p.openFile(line, p.lines[p.pos+1])
			seenFile = true
			p.pos++ // the +++ line

		case strings.HasPrefix(line, "@@"):
			if p.file == nil {
				return nil, &MalformedError{LineNo: p.pos + 1, Header: line, Reason: "hunk header before any file header"}
			}
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, &MalformedError{Path: p.file.Path(), Header: line, LineNo: p.pos + 1, Reason: err.Error()}
			}
			p.hunk = h
			p.hunkLine = p.pos + 1

		case line == signatureSeparator && seenFile:
			done = true

		case !seenFile:
			p.patch.Preamble = append(p.patch.Preamble, line)

		default:
			// git extended headers (diff --git, index, mode lines) and
			// free text between sections carry no hunk data.
		}
	}

	if err := p.closeFile(); err != nil {
		return nil, err
	}

	if p.patch.HunkCount() == 0 {
		return nil, &MalformedError{Reason: "no hunks found"}
	}

	return &p.patch, nil
}

// hunkLineOrEnd handles a line while a hunk is open. It returns true when
// the line belonged to the hunk. When the line ends the hunk, the hunk is
// closed (and its counts checked) and false is returned so the caller can
// interpret the line as a header.
func (p *parser) hunkLineOrEnd(line string) (bool, error) {
	oldN, newN := p.hunk.Counted()
	complete := oldN >= p.hunk.OldCount && newN >= p.hunk.NewCount

	// Headers only end a hunk once its declared lines are in; before that
	// "--- x" is a removed line and "+++ x" an added one.
	if complete && (p.isFileHeader() || strings.HasPrefix(line, "@@") || line == signatureSeparator) {
		return false, p.closeHunk()
	}

	switch {
	case line == "":
		if complete {
			return false, p.closeHunk()
		}
		// Editors strip the lone space from empty context lines.
		p.hunk.Lines = append(p.hunk.Lines, Line{Kind: Context})
		return true, nil
	case line[0] == ' ':
		p.hunk.Lines = append(p.hunk.Lines, Line{Kind: Context, Text: line[1:]})
		return true, nil
	case line[0] == '-':
		p.hunk.Lines = append(p.hunk.Lines, Line{Kind: Removed, Text: line[1:]})
		return true, nil
	case line[0] == '+':
		p.hunk.Lines = append(p.hunk.Lines, Line{Kind: Added, Text: line[1:]})
		return true, nil
	case line[0] == '\\':
		// "\ No newline at end of file" does not count toward either side.
		return true, nil
	default:
		return false, p.closeHunk()
	}
}

// isFileHeader reports whether the current line starts a "--- "/"+++ " pair.
func (p *parser) isFileHeader() bool {
	if p.pos+1 >= len(p.lines) {
		return false
	}
	return strings.HasPrefix(p.lines[p.pos], "--- ") && strings.HasPrefix(p.lines[p.pos+1], "+++ ")
}

func (p *parser) openFile(oldHeader, newHeader string) {
	f := &FileDiff{
		OldPath:    parseFilePath(oldHeader[4:]),
		NewPath:    parseFilePath(newHeader[4:]),
		RawOldPath: rawFilePath(oldHeader[4:]),
		RawNewPath: rawFilePath(newHeader[4:]),
	}
	f.IsNew = f.OldPath == DevNull
	f.IsDeleted = f.NewPath == DevNull
	p.file = f
}

func (p *parser) closeHunk() error {
	h := p.hunk
	p.hunk = nil
	if h == nil {
		return nil
	}

	oldN, newN := h.Counted()
	if oldN != h.OldCount {
		return &MalformedError{
			Path:   p.file.Path(),
			Header: h.Header,
			LineNo: p.hunkLine,
			Reason: fmt.Sprintf("old line count mismatch: declared %d, counted %d (context+removed)", h.OldCount, oldN),
		}
	}
	if newN != h.NewCount {
		return &MalformedError{
			Path:   p.file.Path(),
			Header: h.Header,
			LineNo: p.hunkLine,
			Reason: fmt.Sprintf("new line count mismatch: declared %d, counted %d (context+added)", h.NewCount, newN),
		}
	}

	p.file.Hunks = append(p.file.Hunks, *h)
	return nil
}

func (p *parser) closeFile() error {
	if err := p.closeHunk(); err != nil {
		return err
	}
	if p.file == nil {
		return nil
	}
	f := p.file
	p.file = nil
	if len(f.Hunks) == 0 {
		return &MalformedError{Path: f.Path(), Reason: "file section has no hunks"}
	}
	p.patch.Files = append(p.patch.Files, *f)
	return nil
}

// parseFilePath strips the a/ or b/ prefix and any trailing timestamp from
// a ---/+++ header path.
// rawFilePath drops a trailing tab-separated timestamp from a header path.
func rawFilePath(s string) string {
	if idx := strings.Index(s, "\t"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func parseFilePath(s string) string {
	s = rawFilePath(s)
	if s == DevNull {
		return s
	}
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		s = s[2:]
	}
	return s
}

func parseHunkHeader(line string) (*Hunk, error) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("invalid hunk header")
	}

	h := &Hunk{Header: line, Section: strings.TrimSpace(m[5])}
	var err error
	if h.OldStart, err = strconv.Atoi(m[1]); err != nil {
		return nil, fmt.Errorf("invalid old start: %w", err)
	}
	if h.OldCount, err = parseCount(m[2]); err != nil {
		return nil, fmt.Errorf("invalid old count: %w", err)
	}
	if h.NewStart, err = strconv.Atoi(m[3]); err != nil {
		return nil, fmt.Errorf("invalid new start: %w", err)
	}
	if h.NewCount, err = parseCount(m[4]); err != nil {
		return nil, fmt.Errorf("invalid new count: %w", err)
	}
	return h, nil
}

// parseCount defaults an omitted count to 1.
func parseCount(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	return strconv.Atoi(s)
}
