// Package render provides output formatting for nodebuild commands.
// Tables use go-pretty; everything else is plain text, one fact per line.
package render

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Style selects how tables are drawn.
type Style int

const (
	// StylePlain draws borderless, whitespace-aligned columns. Used when
	// stdout is not a terminal so output stays grep-friendly.
	StylePlain Style = iota

	// StyleBox draws light box borders.
	StyleBox
)

// StyleFor returns StyleBox for terminals and StylePlain otherwise.
func StyleFor(isTTY bool) Style {
	if isTTY {
		return StyleBox
	}
	return StylePlain
}

func newTable(style Style, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(header)

	switch style {
	case StyleBox:
		tw.SetStyle(table.StyleLight)
	default:
		s := table.StyleDefault
		s.Options = table.OptionsNoBordersAndSeparators
		s.Box.PaddingLeft = ""
		s.Box.PaddingRight = "  "
		tw.SetStyle(s)
	}

	configs := make([]table.ColumnConfig, len(header))
	for i := range header {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func writeTable(w io.Writer, tw table.Writer) error {
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// displayName is the base name of a patch path.
func displayName(p string) string {
	return filepath.Base(p)
}

// formatRelativeTime formats a time as a human-friendly relative string.
func formatRelativeTime(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		return t.Format("2006-01-02")
	}
}

// TruncateForDisplay truncates s to maxLen runes, adding an ellipsis.
func TruncateForDisplay(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
