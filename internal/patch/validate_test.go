package patch

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

func writePatch(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const goodPatch = `# Enable SEA detection for smol builds
# Target: v24.9.0
--- a/src/node_sea.cc
+++ b/src/node_sea.cc
@@ -10,2 +10,2 @@
-bool IsSingleExecutable() { return false; }
+bool IsSingleExecutable() { return true; }
 int x;
`

func TestValidate_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	p := writePatch(t, dir, "001-sea.patch", goodPatch)
	v := NewValidator(fs.NewRealFS())

	verdict := v.Validate(p, "v24.10.0")
	if verdict.Valid {
		t.Fatal("expected invalid verdict")
	}
	if verdict.Kind != KindVersionMismatch {
		t.Errorf("Kind = %q, want %q", verdict.Kind, KindVersionMismatch)
	}
	if !strings.Contains(verdict.Reason, "v24.9.0") || !strings.Contains(verdict.Reason, "v24.10.0") {
		t.Errorf("Reason = %q, want both versions", verdict.Reason)
	}
	if verdict.Metadata.Description != "Enable SEA detection for smol builds" {
		t.Errorf("Description = %q", verdict.Metadata.Description)
	}

	err := verdict.Err("v24.10.0")
	if errors.GetCode(err) != errors.EVersionMismatch {
		t.Errorf("Err() code = %q", errors.GetCode(err))
	}

	accepted := v.Accept(verdict)
	if !accepted.Valid || !accepted.Analysis.Flags[FlagFeatureDetection] {
		t.Errorf("Accept() = %+v, want valid with analysis", accepted)
	}
}

func TestValidate_Valid(t *testing.T) {
	dir := t.TempDir()
	p := writePatch(t, dir, "001-sea.patch", goodPatch)
	v := NewValidator(fs.NewRealFS())

	for _, expected := range []string{"v24.9.0", "24.9.0", ""} {
		verdict := v.Validate(p, expected)
		if !verdict.Valid {
			t.Fatalf("Validate(%q) invalid: %s", expected, verdict.Reason)
		}
		if verdict.Reason != "" || verdict.Kind != "" {
			t.Errorf("valid verdict carries reason %q kind %q", verdict.Reason, verdict.Kind)
		}
		if !verdict.Analysis.Flags[FlagFeatureDetection] {
			t.Error("expected feature detection flag")
		}
		if verdict.Err(expected) != nil {
			t.Error("Err() should be nil for valid verdicts")
		}
	}
}

func TestValidate_UndatedPatchSkipsVersionCheck(t *testing.T) {
	dir := t.TempDir()
	p := writePatch(t, dir, "002.patch", strings.Replace(goodPatch, "# Target: v24.9.0\n", "", 1))

	verdict := NewValidator(fs.NewRealFS()).Validate(p, "v24.10.0")
	if !verdict.Valid {
		t.Fatalf("expected valid verdict, got %s", verdict.Reason)
	}
	if verdict.Metadata.HasTargetVersion() {
		t.Error("expected no target version")
	}
}

func TestValidate_Unreadable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.patch")
	verdict := NewValidator(fs.NewRealFS()).Validate(missing, "v24.10.0")

	if verdict.Valid || verdict.Kind != KindUnreadable {
		t.Fatalf("verdict = %+v, want unreadable", verdict)
	}
	if !strings.HasPrefix(verdict.Reason, "unreadable: ") {
		t.Errorf("Reason = %q", verdict.Reason)
	}
	if errors.GetCode(verdict.Err("v24.10.0")) != errors.EPatchUnreadable {
		t.Error("expected E_PATCH_UNREADABLE")
	}
}

func TestValidate_MalformedReasonVerbatim(t *testing.T) {
	text := "# Target: v24.10.0\n--- a/src/node.cc\n+++ b/src/node.cc\n@@ -10,3 +10,4 @@\n a\n b\n-c\n+d\n"
	p := writePatch(t, t.TempDir(), "bad.patch", text)

	verdict := NewValidator(fs.NewRealFS()).Validate(p, "v24.10.0")
	if verdict.Valid || verdict.Kind != KindMalformed {
		t.Fatalf("verdict = %+v, want malformed", verdict)
	}
	for _, want := range []string{"src/node.cc", "@@ -10,3 +10,4 @@", "declared 4, counted 3"} {
		if !strings.Contains(verdict.Reason, want) {
			t.Errorf("Reason = %q, want it to contain %q", verdict.Reason, want)
		}
	}

	be, ok := errors.AsBuildError(verdict.Err("v24.10.0"))
	if !ok || be.Code != errors.EPatchMalformed {
		t.Fatalf("Err() = %v", verdict.Err("v24.10.0"))
	}
	if be.Details["hunk"] != "@@ -10,3 +10,4 @@" || be.Details["file"] != "src/node.cc" {
		t.Errorf("Details = %v", be.Details)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	dir := t.TempDir()
	p := writePatch(t, dir, "001.patch", goodPatch)
	v := NewValidator(fs.NewRealFS())

	for _, expected := range []string{"v24.9.0", "v24.10.0"} {
		a := v.Validate(p, expected)
		b := v.Validate(p, expected)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Validate(%q) not deterministic:\n%+v\n%+v", expected, a, b)
		}
	}
}

func TestValidateAll_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	a := writePatch(t, dir, "a.patch", goodPatch)
	b := filepath.Join(dir, "missing.patch")
	c := writePatch(t, dir, "c.patch", "")

	verdicts := NewValidator(fs.NewRealFS()).ValidateAll([]string{a, b, c}, "v24.9.0")
	if len(verdicts) != 3 {
		t.Fatalf("len = %d", len(verdicts))
	}
	wantKinds := []Kind{"", KindUnreadable, KindMalformed}
	for i, v := range verdicts {
		if v.Kind != wantKinds[i] {
			t.Errorf("verdicts[%d].Kind = %q, want %q", i, v.Kind, wantKinds[i])
		}
	}
	if !strings.Contains(verdicts[2].Reason, "no hunks found") {
		t.Errorf("empty patch reason = %q", verdicts[2].Reason)
	}
}
