package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/NielsdaWheelz/nodebuild/internal/patch"
)

const descriptionMaxLen = 48

// WriteVerdicts writes one row per patch, then the reason of every invalid
// verdict verbatim, one per line.
func WriteVerdicts(w io.Writer, verdicts []patch.Verdict, rules patch.RuleTable, style Style) error {
	if len(verdicts) == 0 {
		_, err := fmt.Fprintln(w, "no patches")
		return err
	}

	tw := newTable(style, table.Row{"PATCH", "STATUS", "TARGET", "DESCRIPTION", "FLAGS"})
	for _, v := range verdicts {
		tw.AppendRow(table.Row{
			displayName(v.Path),
			verdictStatus(v),
			dash(v.Metadata.TargetVersion),
			dash(TruncateForDisplay(v.Metadata.Description, descriptionMaxLen)),
			dash(joinFlags(v.Analysis.SetFlags(rules))),
		})
	}
	if err := writeTable(w, tw); err != nil {
		return err
	}

	for _, v := range verdicts {
		if v.Valid {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", displayName(v.Path), v.Reason); err != nil {
			return err
		}
	}
	return nil
}

func verdictStatus(v patch.Verdict) string {
	if v.Valid {
		return "ok"
	}
	return string(v.Kind)
}

func joinFlags(flags []patch.Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// verdictJSON is the stable machine-readable form of a verdict.
type verdictJSON struct {
	Path          string           `json:"path"`
	Valid         bool             `json:"valid"`
	Kind          string           `json:"kind,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Description   *string          `json:"description"`
	TargetVersion *string          `json:"target_version"`
	Flags         map[string]bool  `json:"flags"`
	Triggers      map[string][]int `json:"triggers,omitempty"`
	TouchedFiles  []string         `json:"touched_files"`
	RulesVersion  int              `json:"rules_version"`
}

// WriteVerdictsJSON writes verdicts as an indented JSON array.
// Absent metadata fields are null.
func WriteVerdictsJSON(w io.Writer, verdicts []patch.Verdict) error {
	out := make([]verdictJSON, 0, len(verdicts))
	for _, v := range verdicts {
		j := verdictJSON{
			Path:         v.Path,
			Valid:        v.Valid,
			Kind:         string(v.Kind),
			Reason:       v.Reason,
			Flags:        make(map[string]bool, len(v.Analysis.Flags)),
			TouchedFiles: v.Analysis.TouchedFiles,
			RulesVersion: v.Analysis.RulesVersion,
		}
		if v.Metadata.HasDescription() {
			d := v.Metadata.Description
			j.Description = &d
		}
		if v.Metadata.HasTargetVersion() {
			tv := v.Metadata.TargetVersion
			j.TargetVersion = &tv
		}
		for f, set := range v.Analysis.Flags {
			j.Flags[string(f)] = set
		}
		if len(v.Analysis.Triggers) > 0 {
			j.Triggers = make(map[string][]int, len(v.Analysis.Triggers))
			for f, idx := range v.Analysis.Triggers {
				j.Triggers[string(f)] = idx
			}
		}
		if j.TouchedFiles == nil {
			j.TouchedFiles = []string{}
		}
		out = append(out, j)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
