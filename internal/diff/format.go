package diff

import (
	"strconv"
	"strings"
)

// FormatHeader renders a hunk header from the hunk's counted body, using the
// unified-diff convention of omitting a count of 1.
func FormatHeader(h Hunk) string {
	oldN, newN := h.Counted()
	var sb strings.Builder
	sb.WriteString("@@ -")
	sb.WriteString(formatRange(h.OldStart, oldN))
	sb.WriteString(" +")
	sb.WriteString(formatRange(h.NewStart, newN))
	sb.WriteString(" @@")
	if h.Section != "" {
		sb.WriteString(" ")
		sb.WriteString(h.Section)
	}
	return sb.String()
}

func formatRange(start, count int) string {
	if count == 1 {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "," + strconv.Itoa(count)
}

// Format renders a parsed patch back to unified-diff text. Hunk headers are
// recomputed from their bodies; a/ and b/ prefixes are restored.
func Format(p *Patch) string {
	var sb strings.Builder
	for _, l := range p.Preamble {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	for _, f := range p.Files {
		sb.WriteString("--- ")
		sb.WriteString(headerPath("a/", f.OldPath))
		sb.WriteString("\n+++ ")
		sb.WriteString(headerPath("b/", f.NewPath))
		sb.WriteString("\n")
		for _, h := range f.Hunks {
			sb.WriteString(FormatHeader(h))
			sb.WriteString("\n")
			for _, l := range h.Lines {
				sb.WriteByte(l.Kind.prefix())
				sb.WriteString(l.Text)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func headerPath(prefix, path string) string {
	if path == DevNull {
		return path
	}
	return prefix + path
}
