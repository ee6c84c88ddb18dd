package patch

import (
	"path"
	"strings"

	"github.com/NielsdaWheelz/nodebuild/internal/diff"
)

// Flag names a sensitive area of the Node.js source tree.
type Flag string

const (
	FlagIncludePaths     Flag = "modifies_include_paths"
	FlagFeatureDetection Flag = "modifies_feature_detection"
	FlagBuildConfig      Flag = "modifies_build_config"
	FlagCompression      Flag = "modifies_compression"
)

// RulesVersion is bumped whenever DefaultRules changes meaning.
const RulesVersion = 2

// Rule maps a matcher to a flag. Match is only called for added and
// removed lines, so a rule that ignores line fires for any changed hunk in
// a matching file.
type Rule struct {
	Flag  Flag
	Match func(path string, line diff.Line) bool
}

// RuleTable is a versioned, ordered list of rules. Several rules may share a
// flag.
type RuleTable struct {
	Version int
	Rules   []Rule
}

// Flags returns the distinct flags of the table in rule order.
func (t RuleTable) Flags() []Flag {
	var flags []Flag
	seen := make(map[Flag]bool)
	for _, r := range t.Rules {
		if !seen[r.Flag] {
			seen[r.Flag] = true
			flags = append(flags, r.Flag)
		}
	}
	return flags
}

// DefaultRules is the built-in rule table.
var DefaultRules = RuleTable{
	Version: RulesVersion,
	Rules: []Rule{
		{Flag: FlagIncludePaths, Match: gypIncludeDirs},
		{Flag: FlagIncludePaths, Match: cppInclude},
		{Flag: FlagFeatureDetection, Match: containsAny("IsSingleExecutable", "IsSEA", "isSea")},
		{Flag: FlagBuildConfig, Match: basenameIn("configure.py", "common.gypi", "config.gypi")},
		{Flag: FlagCompression, Match: containsFold("brotli")},
	},
}

var cppExtensions = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true,
	".h": true, ".hh": true, ".hpp": true,
}

func gypIncludeDirs(p string, line diff.Line) bool {
	ext := path.Ext(p)
	if ext != ".gyp" && ext != ".gypi" {
		return false
	}
	return strings.Contains(line.Text, "include_dirs")
}

func cppInclude(p string, line diff.Line) bool {
	if !cppExtensions[path.Ext(p)] {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(line.Text), "#include")
}

func containsAny(markers ...string) func(string, diff.Line) bool {
	return func(_ string, line diff.Line) bool {
		for _, m := range markers {
			if strings.Contains(line.Text, m) {
				return true
			}
		}
		return false
	}
}

func containsFold(marker string) func(string, diff.Line) bool {
	return func(_ string, line diff.Line) bool {
		return strings.Contains(strings.ToLower(line.Text), marker)
	}
}

func basenameIn(names ...string) func(string, diff.Line) bool {
	return func(p string, _ diff.Line) bool {
		base := path.Base(p)
		for _, n := range names {
			if base == n {
				return true
			}
		}
		return false
	}
}
