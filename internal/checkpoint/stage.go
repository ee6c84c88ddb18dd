package checkpoint

import "fmt"

// Stage is a named build stage. Stages are linear.
type Stage string

const (
	StageNone     Stage = "none"
	StageCloned   Stage = "cloned"
	StagePatched  Stage = "patched"
	StageBuilt    Stage = "built"
	StageComplete Stage = "complete"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageNone, StageCloned, StagePatched, StageBuilt, StageComplete}

// ParseStage parses a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if st.Index() < 0 {
		return "", fmt.Errorf("unknown stage %q (want one of cloned, patched, built, complete)", s)
	}
	return st, nil
}

// Index returns the position of s in Stages, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Completed reports whether stage is done given the last recorded stage.
// Nothing is completed when last is none or unknown.
func Completed(last, stage Stage) bool {
	if stage == StageNone || last.Index() <= 0 || stage.Index() < 0 {
		return false
	}
	return last.Index() >= stage.Index()
}
