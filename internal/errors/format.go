// Package errors provides error formatting for nodebuild CLI output.
package errors

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with more context keys and longer tails.
	Verbose bool
}

// Context key whitelist (default mode, in order)
var defaultContextKeys = []string{
	"op",
	"patch",
	"file",
	"hunk",
	"declared",
	"expected",
	"source_dir",
	"strip",
	"stage",
	"exit_code",
	"config",
	"log",
}

// Additional context keys for verbose mode
var verboseContextKeys = []string{
	"op",
	"build_id",
	"patch",
	"patches",
	"file",
	"hunk",
	"range",
	"declared",
	"expected",
	"source_dir",
	"build_dir",
	"strip",
	"stage",
	"exit_code",
	"timed_out",
	"duration_ms",
	"config",
	"log",
	"hint",
}

// Truncation limits
const (
	defaultMaxLines = 20
	verboseMaxLines = 100

	maxValueLen      = 256
	maxExtraValueLen = 128
	maxOutputLineLen = 512
)

// Format formats an error for display without I/O.
// Returns the formatted string ready for printing.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	be, ok := AsBuildError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(be.Code))
	sb.WriteString("\n")
	sb.WriteString(be.Msg)
	sb.WriteString("\n")

	contextKeys := defaultContextKeys
	if opts.Verbose {
		contextKeys = verboseContextKeys
	}

	printedKeys := make(map[string]bool)
	wroteBlank := false
	for _, key := range contextKeys {
		val, ok := be.Details[key]
		if !ok || val == "" || key == "hint" {
			continue
		}
		if !wroteBlank {
			sb.WriteString("\n")
			wroteBlank = true
		}
		printedKeys[key] = true
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(sanitizeValue(val, maxValueLen))
		sb.WriteString("\n")
	}

	if opts.Verbose && be.Details != nil {
		var extraKeys []string
		for key, val := range be.Details {
			if !printedKeys[key] && key != "hint" && key != "stderr" && val != "" {
				extraKeys = append(extraKeys, key)
			}
		}
		if len(extraKeys) > 0 {
			sort.Strings(extraKeys)
			sb.WriteString("\nextra:\n")
			for _, key := range extraKeys {
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(be.Details[key], maxExtraValueLen))
				sb.WriteString("\n")
			}
		}
	}

	// Tool output is the primary diagnostic; it is passed through line by line.
	if stderr := be.Details["stderr"]; strings.TrimSpace(stderr) != "" {
		maxLines := defaultMaxLines
		if opts.Verbose {
			maxLines = verboseMaxLines
		}
		sb.WriteString(outputBlock(tailLines(stderr, maxLines), maxLines))
	}

	if hint := be.Details["hint"]; hint != "" {
		sb.WriteString("\n")
		sb.WriteString(FormatHint(hint))
		sb.WriteString("\n")
	}

	for _, try := range deriveTryLines(be) {
		sb.WriteString("try: ")
		sb.WriteString(try)
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrintWithOptions writes a formatted error to w with the given options.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}
	_, _ = io.WriteString(w, Format(err, opts))
}

// sanitizeValue sanitizes a value for single-line context output.
func sanitizeValue(val string, maxLen int) string {
	val = strings.TrimRight(val, " \t\r\n")
	val = strings.ReplaceAll(val, "\r\n", "\n")
	val = strings.ReplaceAll(val, "\n", "\\n")
	if len(val) > maxLen {
		return val[:maxLen] + "…"
	}
	return val
}

// tailLines returns the last maxLines non-trailing lines of s.
func tailLines(s string, maxLines int) []string {
	s = strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if len(line) > maxOutputLineLen {
			line = line[:maxOutputLineLen] + "…"
		}
		lines[i] = line
	}
	if len(lines) > maxLines {
		return lines[len(lines)-maxLines:]
	}
	return lines
}

func outputBlock(lines []string, maxLines int) string {
	var block strings.Builder
	if len(lines) >= maxLines {
		block.WriteString(fmt.Sprintf("\noutput (last %d lines):\n", len(lines)))
	} else {
		block.WriteString(fmt.Sprintf("\noutput (%d lines):\n", len(lines)))
	}
	for _, line := range lines {
		block.WriteString("  ")
		block.WriteString(line)
		block.WriteString("\n")
	}
	return block.String()
}

// deriveTryLines returns actionable suggestions based on error code.
func deriveTryLines(be *BuildError) []string {
	if be == nil {
		return nil
	}

	var lines []string

	switch be.Code {
	case ENoBuildConfig:
		lines = append(lines, "nodebuild patch --config <path/to/nodebuild.yaml>")
	case EPatchToolNotInstalled:
		lines = append(lines, "nodebuild doctor")
	case EDryRunFailed, EApplyFailed:
		if patch := be.Details["patch"]; patch != "" {
			if dir := be.Details["source_dir"]; dir != "" {
				lines = append(lines, fmt.Sprintf("nodebuild dry-run %s --source %s", patch, dir))
			}
		}
	case EVersionMismatch:
		lines = append(lines, "nodebuild patch --allow-version-mismatch")
	case ENotInteractive:
		lines = append(lines, "nodebuild clean --yes")
	}

	return lines
}

// FormatHint formats a hint for output.
// If hint already starts with "hint:", returns as-is.
func FormatHint(hint string) string {
	if hint == "" {
		return ""
	}
	if strings.HasPrefix(hint, "hint:") {
		return hint
	}
	return "hint: " + hint
}

// GetHint extracts the hint from an error's details, if present.
func GetHint(err error) string {
	be, ok := AsBuildError(err)
	if !ok || be.Details == nil {
		return ""
	}
	return be.Details["hint"]
}
