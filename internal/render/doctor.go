package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/NielsdaWheelz/nodebuild/internal/preflight"
)

// WriteDoctor writes the preflight report as a table and a final verdict line.
func WriteDoctor(w io.Writer, r preflight.Report, style Style) error {
	tw := newTable(style, table.Row{"CHECK", "STATUS", "DETAIL"})
	for _, c := range r.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		tw.AppendRow(table.Row{c.Name, status, c.Detail})
	}
	if err := writeTable(w, tw); err != nil {
		return err
	}
	if r.OK {
		_, err := fmt.Fprintln(w, "ready to build")
		return err
	}
	_, err := fmt.Fprintf(w, "%d %s failed\n", len(r.Failed()), plural(len(r.Failed()), "check", "checks"))
	return err
}
