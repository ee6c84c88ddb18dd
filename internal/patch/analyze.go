package patch

import (
	"github.com/NielsdaWheelz/nodebuild/internal/diff"
)

// Analysis is the classification of a parsed patch.
type Analysis struct {
	// Flags has an entry for every flag in the rule table.
	Flags map[Flag]bool

	// Triggers lists, per flag, the indices of the hunks that set it.
	// Indices count hunks across the whole patch in parse order.
	Triggers map[Flag][]int

	// TouchedFiles is the de-duplicated list of file paths, in first-seen order.
	TouchedFiles []string

	RulesVersion int
}

// Analyze classifies the hunks of a patch against rules. It never fails;
// a patch that matches nothing yields all flags false.
func Analyze(files []diff.FileDiff, rules RuleTable) Analysis {
	a := Analysis{
		Flags:        make(map[Flag]bool),
		Triggers:     make(map[Flag][]int),
		RulesVersion: rules.Version,
	}
	for _, f := range rules.Flags() {
		a.Flags[f] = false
	}

	seen := make(map[string]bool)
	hunkIndex := 0
	for _, f := range files {
		p := f.Path()
		if !seen[p] {
			seen[p] = true
			a.TouchedFiles = append(a.TouchedFiles, p)
		}
		for _, h := range f.Hunks {
			for _, flag := range matchHunk(p, h, rules) {
				a.Flags[flag] = true
				a.Triggers[flag] = append(a.Triggers[flag], hunkIndex)
			}
			hunkIndex++
		}
	}
	return a
}

// matchHunk returns the flags a hunk triggers, each at most once, in rule order.
func matchHunk(p string, h diff.Hunk, rules RuleTable) []Flag {
	var hit []Flag
	fired := make(map[Flag]bool)
	for _, r := range rules.Rules {
		if fired[r.Flag] {
			continue
		}
		for _, l := range h.Lines {
			if l.Kind == diff.Context {
				continue
			}
			if r.Match(p, l) {
				fired[r.Flag] = true
				hit = append(hit, r.Flag)
				break
			}
		}
	}
	return hit
}

// Touches reports whether the patch touches path.
func (a Analysis) Touches(path string) bool {
	for _, p := range a.TouchedFiles {
		if p == path {
			return true
		}
	}
	return false
}

// SetFlags returns the flags that are true, in rules order.
func (a Analysis) SetFlags(rules RuleTable) []Flag {
	var out []Flag
	for _, f := range rules.Flags() {
		if a.Flags[f] {
			out = append(out, f)
		}
	}
	return out
}
