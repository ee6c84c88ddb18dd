package render

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
)

// WriteCheckpoint writes the checkpoint log, oldest first, and warns when
// the last entry is stale.
func WriteCheckpoint(w io.Writer, entries []checkpoint.Entry, now time.Time, style Style) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no checkpoint (stage: none)")
		return err
	}

	tw := newTable(style, table.Row{"STAGE", "RECORDED", "AGE", "BUILD"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			string(e.Stage),
			e.Timestamp.UTC().Format(time.RFC3339),
			formatRelativeTime(e.Timestamp, now),
			dash(shortID(e.BuildID)),
		})
	}
	if err := writeTable(w, tw); err != nil {
		return err
	}

	last := entries[len(entries)-1]
	if last.Stale(now) {
		_, err := fmt.Fprintf(w, "warning: last checkpoint (%s) was recorded %s; run `nodebuild checkpoint clear` if this build directory was abandoned\n",
			last.Stage, formatRelativeTime(last.Timestamp, now))
		return err
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
