package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
)

// WriteConflicts writes one row per conflict record followed by a count line.
func WriteConflicts(w io.Writer, records []conflict.Record, style Style) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no conflicts")
		return err
	}

	tw := newTable(style, table.Row{"SEVERITY", "PATCH A", "PATCH B", "FILE", "LINES"})
	for _, r := range records {
		lines := "-"
		if r.Overlaps {
			lines = r.Range.String()
		}
		tw.AppendRow(table.Row{
			string(r.Severity),
			displayName(r.Patches[0]),
			displayName(r.Patches[1]),
			r.File,
			lines,
		})
	}
	if err := writeTable(w, tw); err != nil {
		return err
	}

	errs, warnings := conflict.Partition(records)
	_, err := fmt.Fprintf(w, "%d %s, %d %s\n",
		len(errs), plural(len(errs), "error", "errors"),
		len(warnings), plural(len(warnings), "warning", "warnings"))
	return err
}

// WriteConflictMessages writes each record's message on its own line,
// prefixed by severity. Used on stderr when a gate stops on conflicts.
func WriteConflictMessages(w io.Writer, records []conflict.Record) {
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s: %s\n", r.Severity, r.Message)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
