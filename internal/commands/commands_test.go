package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
	"github.com/NielsdaWheelz/nodebuild/internal/diff"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/exec"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/render"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(args []string) exec.CmdResult
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.respond != nil {
		return f.respond(args), nil
	}
	if len(args) == 1 && args[0] == "--version" {
		return exec.CmdResult{Stdout: "GNU patch 2.7.6\n"}, nil
	}
	return exec.CmdResult{}, nil
}

func (f *fakeRunner) LookPath(file string) (string, error) { return "/usr/bin/" + file, nil }

type fakeResources struct{}

func (fakeResources) DiskFree(ctx context.Context, path string) (uint64, error) { return 100 << 30, nil }
func (fakeResources) MemoryAvailable(ctx context.Context) (uint64, error)       { return 2 << 30, nil }
func (fakeResources) CPUCount(ctx context.Context) (int, error)                 { return 8, nil }

const (
	gypOld = "{\n  'variables': {\n    'node_use_sea%': 'false',\n  },\n}\n"
	gypNew = "{\n  'variables': {\n    'node_use_sea%': 'true',\n  },\n}\n"
)

var fixedNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

// workspace is a temp directory laid out like a build checkout:
// nodebuild.yaml, patches/, node/ (source) and build/.
type workspace struct {
	dir    string
	runner *fakeRunner
	env    Env
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	for _, d := range []string{"patches", "node", "build"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	r := &fakeRunner{}
	return &workspace{
		dir:    dir,
		runner: r,
		env: Env{
			Runner: r,
			FS:     fs.NewRealFS(),
			Cwd:    dir,
			Now:    func() time.Time { return fixedNow },
			Style:  render.StylePlain,
		},
	}
}

func (w *workspace) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(w.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (w *workspace) patch(t *testing.T, name, target, old, updated string, header ...string) string {
	t.Helper()
	text, err := diff.Generate(target, []byte(old), []byte(updated), diff.GenerateOptions{Header: header})
	if err != nil {
		t.Fatal(err)
	}
	return w.write(t, "patches/"+name, text)
}

func (w *workspace) config(t *testing.T, patches ...string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("version: 1\nnode_version: v24.10.0\nsource_dir: node\nbuild_dir: build\npatches:\n")
	for _, p := range patches {
		sb.WriteString("  - patches/" + p + "\n")
	}
	w.write(t, "nodebuild.yaml", sb.String())
}

func TestValidate_ExplicitPatches(t *testing.T) {
	w := newWorkspace(t)
	w.patch(t, "001-sea.patch", "common.gypi", gypOld, gypNew, "Turn on SEA", "Target: v24.10.0")
	w.patch(t, "002-old.patch", "common.gypi", gypOld, gypNew, "Old SEA", "Target: v24.9.0")

	var stdout bytes.Buffer
	err := Validate(w.env, ValidateOpts{
		Patches:     []string{"patches/001-sea.patch", "patches/002-old.patch"},
		NodeVersion: "24.10.0",
	}, &stdout)

	if errors.GetCode(err) != errors.EVersionMismatch {
		t.Fatalf("Validate() error = %v, want E_VERSION_MISMATCH", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "modifies_build_config") {
		t.Errorf("expected build config flag in output:\n%s", out)
	}
	if !strings.Contains(out, "002-old.patch: version mismatch: patch declares v24.9.0, expected v24.10.0") {
		t.Errorf("expected verbatim reason in output:\n%s", out)
	}
}

func TestValidate_FromConfigJSON(t *testing.T) {
	w := newWorkspace(t)
	w.patch(t, "001-sea.patch", "common.gypi", gypOld, gypNew, "Turn on SEA", "Target: v24.10.0")
	w.config(t, "001-sea.patch")

	var stdout bytes.Buffer
	if err := Validate(w.env, ValidateOpts{JSON: true}, &stdout); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, stdout.String())
	}
	if len(got) != 1 || got[0]["description"] != "Turn on SEA" {
		t.Errorf("got %v", got)
	}
}

func TestValidate_Usage(t *testing.T) {
	w := newWorkspace(t)

	err := Validate(w.env, ValidateOpts{}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("no patches and no config: error = %v, want E_USAGE", err)
	}

	err = Validate(w.env, ValidateOpts{Patches: []string{"x.patch"}, NodeVersion: "v24"}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("bad version: error = %v, want E_USAGE", err)
	}
}

func TestConflicts(t *testing.T) {
	w := newWorkspace(t)
	w.patch(t, "001.patch", "common.gypi", gypOld, gypNew, "Turn on SEA")
	w.patch(t, "002.patch", "common.gypi", gypOld, strings.Replace(gypOld, "'false'", "'auto'", 1), "Auto SEA")
	args := []string{"patches/001.patch", "patches/002.patch"}

	var stdout bytes.Buffer
	err := Conflicts(w.env, ConflictsOpts{Patches: args}, &stdout)
	if errors.GetCode(err) != errors.EPatchConflict {
		t.Fatalf("Conflicts() error = %v, want E_PATCH_CONFLICT", err)
	}
	if !strings.Contains(stdout.String(), "1 error, 0 warnings") {
		t.Errorf("output:\n%s", stdout.String())
	}

	stdout.Reset()
	if err := Conflicts(w.env, ConflictsOpts{Patches: args, Overlap: "warning"}, &stdout); err != nil {
		t.Errorf("overlap downgraded to warning: error = %v", err)
	}

	err = Conflicts(w.env, ConflictsOpts{Patches: args, Overlap: "fatal"}, &stdout)
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("bad severity: error = %v, want E_USAGE", err)
	}
}

func TestDryRun(t *testing.T) {
	w := newWorkspace(t)
	p := w.patch(t, "001.patch", "common.gypi", gypOld, gypNew, "Turn on SEA")

	var stdout bytes.Buffer
	err := DryRun(context.Background(), w.env, DryRunOpts{Patch: p, SourceDir: "node", Strip: 1}, &stdout)
	if err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "status: applicable") {
		t.Errorf("output:\n%s", stdout.String())
	}
	call := w.runner.calls[0]
	if call[0] != "patch" || strings.Join(call[1:], " ") != "-p1 --batch --forward --dry-run -i "+p {
		t.Errorf("call = %v", call)
	}

	w.runner.respond = func(args []string) exec.CmdResult {
		return exec.CmdResult{ExitCode: 1, Stderr: "patch: **** Only garbage was found in the patch input.\n"}
	}
	stdout.Reset()
	err = DryRun(context.Background(), w.env, DryRunOpts{Patch: p, SourceDir: "node", Strip: 1}, &stdout)
	if errors.GetCode(err) != errors.EDryRunFailed {
		t.Fatalf("DryRun() error = %v, want E_DRY_RUN_FAILED", err)
	}
	if !strings.Contains(stdout.String(), "reason: patch: **** Only garbage was found in the patch input.") {
		t.Errorf("output:\n%s", stdout.String())
	}
}

func TestDryRun_RequiresSource(t *testing.T) {
	w := newWorkspace(t)
	err := DryRun(context.Background(), w.env, DryRunOpts{Patch: "x.patch", Strip: 1}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("error = %v, want E_USAGE", err)
	}
}

func TestPatch_FullGate(t *testing.T) {
	w := newWorkspace(t)
	w.patch(t, "001-sea.patch", "common.gypi", gypOld, gypNew, "Turn on SEA", "Target: v24.10.0")
	w.config(t, "001-sea.patch")
	w.write(t, "node/common.gypi", gypNew) // stands in for patch(1)

	var stdout, stderr bytes.Buffer
	if err := Patch(context.Background(), w.env, PatchOpts{}, &stdout, &stderr); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "patched 1 patch in") {
		t.Errorf("output:\n%s", stdout.String())
	}

	// a second run is skipped by the checkpoint
	stdout.Reset()
	calls := len(w.runner.calls)
	if err := Patch(context.Background(), w.env, PatchOpts{}, &stdout, &stderr); err != nil {
		t.Fatalf("second Patch() error = %v", err)
	}
	if len(w.runner.calls) != calls {
		t.Error("second run should not invoke patch")
	}
	if !strings.Contains(stdout.String(), "already complete") {
		t.Errorf("output:\n%s", stdout.String())
	}
}

func TestPatchNew(t *testing.T) {
	w := newWorkspace(t)
	from := w.write(t, "orig/common.gypi", gypOld)
	to := w.write(t, "edit/common.gypi", gypNew)

	var stdout bytes.Buffer
	err := PatchNew(w.env, PatchNewOpts{
		From:        from,
		To:          to,
		Path:        "common.gypi",
		Description: "Turn on SEA",
		NodeVersion: "24.10.0",
		Output:      "patches/010-sea.patch",
	}, &stdout)
	if err != nil {
		t.Fatalf("PatchNew() error = %v", err)
	}

	var vout bytes.Buffer
	err = Validate(w.env, ValidateOpts{Patches: []string{"patches/010-sea.patch"}, NodeVersion: "v24.10.0", JSON: true}, &vout)
	if err != nil {
		t.Fatalf("generated patch does not validate: %v", err)
	}
	if !strings.Contains(vout.String(), `"target_version": "v24.10.0"`) {
		t.Errorf("validate output:\n%s", vout.String())
	}

	err = PatchNew(w.env, PatchNewOpts{From: from, To: to, Path: "common.gypi", Output: "patches/010-sea.patch"}, &stdout)
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("existing output without --force: error = %v, want E_USAGE", err)
	}

	err = PatchNew(w.env, PatchNewOpts{From: from, To: from, Path: "common.gypi"}, &stdout)
	if errors.GetCode(err) != errors.EUsage {
		t.Errorf("no changes: error = %v, want E_USAGE", err)
	}
}

func TestCheckpointCommands(t *testing.T) {
	w := newWorkspace(t)
	opts := CheckpointOpts{BuildDir: "build"}

	var stdout bytes.Buffer
	if err := CheckpointRecord(w.env, opts, "cloned", &stdout); err != nil {
		t.Fatalf("record cloned: %v", err)
	}
	if err := CheckpointRecord(w.env, opts, "patched", &stdout); err != nil {
		t.Fatalf("record patched: %v", err)
	}

	stdout.Reset()
	if err := CheckpointShow(w.env, opts, &stdout); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(stdout.String(), "cloned") || !strings.Contains(stdout.String(), "patched") {
		t.Errorf("show output:\n%s", stdout.String())
	}

	if err := CheckpointRecord(w.env, opts, "none", &stdout); errors.GetCode(err) != errors.EUsage {
		t.Errorf("record none: error = %v, want E_USAGE", err)
	}

	if err := CheckpointRecord(w.env, opts, "complete", &stdout); err != nil {
		t.Fatalf("record complete: %v", err)
	}
	cp := checkpoint.New(w.env.FS, filepath.Join(w.dir, "build", ".nodebuild", "checkpoint.json"), "", nil)
	if got := cp.LastStage(); got != checkpoint.StageNone {
		t.Errorf("after complete LastStage() = %q, want none", got)
	}

	if err := CheckpointRecord(w.env, opts, "built", &stdout); err != nil {
		t.Fatal(err)
	}
	if err := CheckpointClear(w.env, opts, &stdout); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := cp.LastStage(); got != checkpoint.StageNone {
		t.Errorf("after clear LastStage() = %q, want none", got)
	}
}

func TestClean(t *testing.T) {
	w := newWorkspace(t)
	w.config(t)
	w.write(t, "build/out/Release/node", "elf")
	opts := CleanOpts{}

	err := Clean(w.env, opts, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.ENotInteractive {
		t.Errorf("non-interactive: error = %v, want E_NOT_INTERACTIVE", err)
	}

	opts.Interactive = true
	err = Clean(w.env, opts, strings.NewReader("no\n"), &bytes.Buffer{}, &bytes.Buffer{})
	if errors.GetCode(err) != errors.EAborted {
		t.Errorf("wrong confirmation: error = %v, want E_ABORTED", err)
	}
	if _, err := os.Stat(filepath.Join(w.dir, "build", "out")); err != nil {
		t.Error("aborted clean must not remove anything")
	}

	var stderr bytes.Buffer
	if err := Clean(w.env, opts, strings.NewReader("clean\n"), &bytes.Buffer{}, &stderr); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "confirm: type 'clean' to proceed: ") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(w.dir, "build", "out")); !os.IsNotExist(err) {
		t.Error("output dir should be removed")
	}

	w.write(t, "build/out/x", "y")
	if err := Clean(w.env, CleanOpts{Yes: true}, nil, &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("Clean(--yes) error = %v", err)
	}
}

func TestDoctor(t *testing.T) {
	w := newWorkspace(t)
	w.config(t)

	var stdout bytes.Buffer
	err := Doctor(context.Background(), w.env, DoctorOpts{Resources: fakeResources{}}, &stdout)
	if errors.GetCode(err) != errors.EPreflightFailed {
		t.Fatalf("Doctor() error = %v, want E_PREFLIGHT_FAILED (2 GB memory < 4 GB)", err)
	}
	out := stdout.String()
	for _, want := range []string{"node_version: v24.10.0", "GNU patch 2.7.6", "1 check failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
