// Package patch validates unified-diff patch files against a target Node.js
// version: it extracts header metadata, classifies what the patch touches,
// and composes both with the diff parser into a single verdict.
package patch

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Metadata is the descriptive header of a patch file. Both fields are
// optional; an empty string means absent.
type Metadata struct {
	Description   string
	TargetVersion string

	// HeaderLines are the raw comment lines consumed from the top of the file.
	HeaderLines []string
}

// HasDescription reports whether the header carried a description.
func (m Metadata) HasDescription() bool { return m.Description != "" }

// HasTargetVersion reports whether the header declared a target version.
func (m Metadata) HasTargetVersion() bool { return m.TargetVersion != "" }

var (
	versionTokenRe = regexp.MustCompile(`\bv\d+\.\d+\.\d+\b`)
	keyValueRe     = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _-]*):\s*(.*)$`)
)

// ExtractMetadata reads the leading comment block of a patch. Lines starting
// with "#" or "//" are comments; blank lines inside the block are allowed.
// Scanning stops at the first other line.
func ExtractMetadata(text string) Metadata {
	var md Metadata
	explicitDescription := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		body, ok := commentBody(trimmed)
		if !ok {
			break
		}
		md.HeaderLines = append(md.HeaderLines, line)

		if md.TargetVersion == "" {
			if tok := versionToken(body); tok != "" {
				md.TargetVersion = tok
			}
		}

		if m := keyValueRe.FindStringSubmatch(body); m != nil {
			key := strings.ToLower(strings.TrimSpace(m[1]))
			val := strings.TrimSpace(m[2])
			if key == "description" && val != "" && !explicitDescription {
				md.Description = val
				explicitDescription = true
				continue
			}
			if versionToken(val) != "" {
				// "Target: v24.10.0" style declarations are not descriptions.
				continue
			}
		}

		if md.Description == "" && isDescriptive(body) {
			md.Description = body
		}
	}

	return md
}

// commentBody strips the comment marker. The second return is false when the
// line is not a comment.
func commentBody(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "//"):
		return strings.TrimSpace(strings.TrimLeft(line, "/")), true
	case strings.HasPrefix(line, "#"):
		return strings.TrimSpace(strings.TrimLeft(line, "#")), true
	default:
		return "", false
	}
}

// versionToken returns the first vMAJOR.MINOR.PATCH token in s.
func versionToken(s string) string {
	for _, tok := range versionTokenRe.FindAllString(s, -1) {
		if semver.IsValid(tok) && semver.Canonical(tok) == tok {
			return tok
		}
	}
	return ""
}

// isDescriptive rejects separators and lines without any letters.
func isDescriptive(body string) bool {
	if len(body) < 3 {
		return false
	}
	if strings.Trim(body, "-=*#/~_ ") == "" {
		return false
	}
	return strings.IndexFunc(body, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}) >= 0
}

// NormalizeVersion trims whitespace and adds the "v" prefix to bare
// "24.10.0" style versions.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && v[0] >= '0' && v[0] <= '9' {
		v = "v" + v
	}
	return v
}

// IsVersion reports whether v is a full vMAJOR.MINOR.PATCH version.
func IsVersion(v string) bool {
	return semver.IsValid(v) && semver.Canonical(v) == v && semver.Prerelease(v) == ""
}
