package verify

import "fmt"

// DeriveOK computes the final verification result: true iff nothing is
// missing. An empty patch set verifies trivially.
func DeriveOK(r Result) bool {
	return len(r.Missing) == 0
}

// DeriveSummary computes the human-readable summary for the verify result.
//
// Summary rules:
//   - if nothing was checked => "no modifications to verify"
//   - else if nothing is missing => "verified N modifications"
//   - else if one finding => "<file>: <reason>"
//   - else => "M of N modifications missing (first: <file>: <reason>)"
func DeriveSummary(r Result) string {
	if r.Checked == 0 {
		return "no modifications to verify"
	}
	if len(r.Missing) == 0 {
		return fmt.Sprintf("verified %d modifications", r.Checked)
	}
	first := r.Missing[0].File + ": " + r.Missing[0].Reason
	if len(r.Missing) == 1 {
		return first
	}
	return fmt.Sprintf("%d of %d modifications missing (first: %s)", len(r.Missing), r.Checked, first)
}

// Merge combines results checked separately, in order.
func Merge(results ...Result) Result {
	var out Result
	for _, r := range results {
		out.Checked += r.Checked
		out.Missing = append(out.Missing, r.Missing...)
	}
	out.OK = DeriveOK(out)
	out.Summary = DeriveSummary(out)
	return out
}
