package patch

import "testing"

func TestExtractMetadata(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantDesc    string
		wantVersion string
		wantHeader  int
	}{
		{
			name:        "description and target",
			text:        "# Enable SEA detection for smol builds\n# Target: v24.10.0\n--- a/x\n+++ b/x\n",
			wantDesc:    "Enable SEA detection for smol builds",
			wantVersion: "v24.10.0",
			wantHeader:  2,
		},
		{
			name:        "slash comments with separator and blank line",
			text:        "// ===========\n\n// Node.js v24.9.0 brotli loader\n// ===========\ndiff --git a/x b/x\n",
			wantDesc:    "Node.js v24.9.0 brotli loader",
			wantVersion: "v24.9.0",
			wantHeader:  3,
		},
		{
			name:        "explicit description key wins",
			text:        "# Patch 003\n# Description: Add compression tools\n# Node-Version: v22.1.0\n",
			wantDesc:    "Add compression tools",
			wantVersion: "v22.1.0",
			wantHeader:  3,
		},
		{
			name:       "no header",
			text:       "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n",
			wantHeader: 0,
		},
		{
			name:       "version token must be full triple",
			text:       "# Works on v24.10 and later\n",
			wantDesc:   "Works on v24.10 and later",
			wantHeader: 1,
		},
		{
			name:       "comments after the first diff line are ignored",
			text:       "--- a/x\n+++ b/x\n# Target: v1.2.3\n",
			wantHeader: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := ExtractMetadata(tt.text)
			if md.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", md.Description, tt.wantDesc)
			}
			if md.TargetVersion != tt.wantVersion {
				t.Errorf("TargetVersion = %q, want %q", md.TargetVersion, tt.wantVersion)
			}
			if md.HasTargetVersion() != (tt.wantVersion != "") {
				t.Errorf("HasTargetVersion() = %v", md.HasTargetVersion())
			}
			if md.HasDescription() != (tt.wantDesc != "") {
				t.Errorf("HasDescription() = %v", md.HasDescription())
			}
			if len(md.HeaderLines) != tt.wantHeader {
				t.Errorf("len(HeaderLines) = %d, want %d", len(md.HeaderLines), tt.wantHeader)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := map[string]string{
		"24.10.0":    "v24.10.0",
		" v24.10.0 ": "v24.10.0",
		"":           "",
	}
	for in, want := range tests {
		if got := NormalizeVersion(in); got != want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", in, got, want)
		}
	}
	if !IsVersion("v24.10.0") || IsVersion("v24.10") || IsVersion("v1.2.3-rc.1") {
		t.Error("IsVersion classification wrong")
	}
}
