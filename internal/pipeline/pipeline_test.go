package pipeline

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
	"github.com/NielsdaWheelz/nodebuild/internal/config"
	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
	"github.com/NielsdaWheelz/nodebuild/internal/diff"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/events"
	"github.com/NielsdaWheelz/nodebuild/internal/exec"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/patchtool"
)

// fakeRunner answers every patch invocation with respond, or exit 0.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(args []string) exec.CmdResult
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	if f.respond != nil {
		return f.respond(args), nil
	}
	return exec.CmdResult{}, nil
}

func (f *fakeRunner) LookPath(file string) (string, error) { return "/usr/bin/" + file, nil }

const (
	seaOld = "namespace node {\nbool IsSingleExecutable() {\n  return false;\n}\n}\n"
	seaNew = "namespace node {\nbool IsSingleExecutable() {\n  return IsSEA();\n}\n}\n"
)

var fixedNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	root   string
	src    string
	build  string
	runner *fakeRunner
	stage  *PatchStage
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	e := &testEnv{
		root:   root,
		src:    filepath.Join(root, "node"),
		build:  filepath.Join(root, "build"),
		runner: &fakeRunner{},
	}
	for _, d := range []string{e.src, e.build} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	fsys := fs.NewRealFS()
	tool := patchtool.New(e.runner, nil)
	e.stage = NewPatchStage(fsys, tool, func() time.Time { return fixedNow })
	return e
}

// writePatch generates a patch for rel and writes it under the env root.
func (e *testEnv) writePatch(t *testing.T, name, rel, old, updated string, header ...string) string {
	t.Helper()
	text, err := diff.Generate(rel, []byte(old), []byte(updated), diff.GenerateOptions{Header: header})
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(e.root, name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeSource writes rel under the source dir, standing in for patch(1).
func (e *testEnv) writeSource(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(e.src, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) context(patches ...string) *BuildContext {
	cfg := &config.BuildConfig{
		NodeVersion: "v24.10.0",
		SourceDir:   e.src,
		BuildDir:    e.build,
		Conflicts:   conflict.DefaultPolicy(),
	}
	for _, p := range patches {
		cfg.Patches = append(cfg.Patches, config.Patch{Path: p, Strip: 1})
	}
	return NewBuildContext(cfg, fs.NewRealFS(), func() time.Time { return fixedNow }, nil)
}

func eventNames(t *testing.T, bc *BuildContext) []string {
	t.Helper()
	evs, err := events.ReadEvents(bc.Store.EventsPath())
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Event
	}
	return names
}

func TestRun_Success(t *testing.T) {
	e := newEnv(t)
	p := e.writePatch(t, "001-sea.patch", "src/node_sea.cc", seaOld, seaNew,
		"Route SEA detection through IsSEA", "Target: v24.10.0")
	e.writeSource(t, "src/node_sea.cc", seaNew)

	bc := e.context(p)
	rep, err := e.stage.Run(context.Background(), bc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !rep.Record.OK || rep.Record.Skipped {
		t.Errorf("Record = %+v, want OK and not skipped", rep.Record)
	}
	if len(rep.Record.Patches) != 1 || !rep.Record.Patches[0].Applied {
		t.Fatalf("Patches = %+v, want one applied patch", rep.Record.Patches)
	}
	out := rep.Record.Patches[0]
	if out.Description != "Route SEA detection through IsSEA" {
		t.Errorf("Description = %q", out.Description)
	}
	if strings.Join(out.Flags, ",") != "modifies_feature_detection" {
		t.Errorf("Flags = %v", out.Flags)
	}
	if !rep.Verify.OK {
		t.Errorf("Verify = %+v", rep.Verify)
	}

	// dry-run, then apply's own check and the real apply
	if len(e.runner.calls) != 3 {
		t.Errorf("runner calls = %d, want 3", len(e.runner.calls))
	}
	if got := strings.Join(e.runner.calls[2], " "); got != "-p1 --batch --forward -i "+p {
		t.Errorf("apply args = %q", got)
	}

	if got := bc.Checkpoint.LastStage(); got != checkpoint.StagePatched {
		t.Errorf("LastStage() = %q, want patched", got)
	}
	rec, found, err := bc.Store.ReadPatchRecord()
	if err != nil || !found {
		t.Fatalf("ReadPatchRecord() = %v, %v", found, err)
	}
	if rec.BuildID != bc.ID || !rec.OK {
		t.Errorf("persisted record = %+v", rec)
	}

	names := eventNames(t, bc)
	if names[0] != events.StageStarted || names[len(names)-1] != events.StageFinished {
		t.Errorf("events = %v", names)
	}
}

func TestRun_SkipsCompletedStage(t *testing.T) {
	e := newEnv(t)
	p := e.writePatch(t, "001.patch", "src/node_sea.cc", seaOld, seaNew, "SEA", "Target: v24.10.0")
	e.writeSource(t, "src/node_sea.cc", seaNew)

	bc := e.context(p)
	if err := bc.Checkpoint.Record(checkpoint.StageBuilt); err != nil {
		t.Fatal(err)
	}

	rep, err := e.stage.Run(context.Background(), bc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Record.Skipped {
		t.Error("expected skipped record")
	}
	if len(e.runner.calls) != 0 {
		t.Errorf("runner calls = %d, want 0", len(e.runner.calls))
	}

	bc.Force = true
	rep, err = e.stage.Run(context.Background(), bc)
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if rep.Record.Skipped {
		t.Error("forced run should not skip")
	}
}

func TestRun_VersionMismatch(t *testing.T) {
	e := newEnv(t)
	p := e.writePatch(t, "001.patch", "src/node_sea.cc", seaOld, seaNew, "SEA", "Target: v24.9.0")
	e.writeSource(t, "src/node_sea.cc", seaNew)

	bc := e.context(p)
	rep, err := e.stage.Run(context.Background(), bc)
	if errors.GetCode(err) != errors.EVersionMismatch {
		t.Fatalf("Run() error = %v, want E_VERSION_MISMATCH", err)
	}
	if !strings.Contains(err.Error(), "version mismatch: patch declares v24.9.0, expected v24.10.0") {
		t.Errorf("error = %q", err.Error())
	}
	if len(e.runner.calls) != 0 {
		t.Error("patch tool must not run after a validation failure")
	}
	if rep.Record.ErrorCode != string(errors.EVersionMismatch) {
		t.Errorf("ErrorCode = %q", rep.Record.ErrorCode)
	}
	if got := bc.Checkpoint.LastStage(); got != checkpoint.StageNone {
		t.Errorf("LastStage() = %q, want none", got)
	}

	bc.AllowVersionMismatch = true
	if _, err := e.stage.Run(context.Background(), bc); err != nil {
		t.Fatalf("Run() with AllowVersionMismatch error = %v", err)
	}
}

func TestRun_OverlapBlocks(t *testing.T) {
	e := newEnv(t)
	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	a := e.writePatch(t, "001-a.patch", "common.gypi", old, strings.Replace(old, "5\n", "five\n", 1), "A")
	b := e.writePatch(t, "002-b.patch", "common.gypi", old, strings.Replace(old, "5\n", "FIVE\n", 1), "B")

	bc := e.context(a, b)
	rep, err := e.stage.Run(context.Background(), bc)
	if errors.GetCode(err) != errors.EPatchConflict {
		t.Fatalf("Run() error = %v, want E_PATCH_CONFLICT", err)
	}
	if !strings.Contains(err.Error(), "001-a.patch and 002-b.patch both modify common.gypi at lines") {
		t.Errorf("error = %q", err.Error())
	}
	if len(rep.Conflicts) != 1 || len(rep.Record.Conflicts) != 1 {
		t.Errorf("Conflicts = %+v", rep.Conflicts)
	}
	if len(e.runner.calls) != 0 {
		t.Error("patch tool must not run after a blocking conflict")
	}
}

func TestRun_DryRunRejected(t *testing.T) {
	e := newEnv(t)
	p := e.writePatch(t, "001.patch", "src/node_sea.cc", seaOld, seaNew, "SEA", "Target: v24.10.0")
	e.runner.respond = func(args []string) exec.CmdResult {
		return exec.CmdResult{
			ExitCode: 1,
			Stdout:   "checking file src/node_sea.cc\nHunk #1 FAILED at 2.\n1 out of 1 hunk FAILED\n",
		}
	}

	bc := e.context(p)
	rep, err := e.stage.Run(context.Background(), bc)
	if errors.GetCode(err) != errors.EDryRunFailed {
		t.Fatalf("Run() error = %v, want E_DRY_RUN_FAILED", err)
	}
	if len(rep.DryRuns) != 1 || rep.DryRuns[0].Reason != "Hunk #1 FAILED at 2." {
		t.Errorf("DryRuns = %+v", rep.DryRuns)
	}
	if len(rep.Applies) != 0 {
		t.Error("nothing should be applied after a dry-run failure")
	}
}

// stackedPatches writes 001 (c -> X) and 002 (X -> Y) against f.c, where
// 002 only applies once 001 has. The source starts at the base content.
func (e *testEnv) stackedPatches(t *testing.T) (first, second string) {
	t.Helper()
	first = e.writePatch(t, "001-x.patch", "f.c", stackBase, stackMid, "c to X")
	second = e.writePatch(t, "002-y.patch", "f.c", stackMid, stackFinal, "X to Y")
	e.writeSource(t, "f.c", stackBase)
	return first, second
}

const (
	stackBase  = "a\nb\nc\nd\ne\n"
	stackMid   = "a\nb\nX\nd\ne\n"
	stackFinal = "a\nb\nY\nd\ne\n"
)

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestRun_StackedPatchesApplyInOrder(t *testing.T) {
	e := newEnv(t)
	first, second := e.stackedPatches(t)
	file := filepath.Join(e.src, "f.c")

	// Each patch applies only to its own before-state, like patch(1).
	states := map[string][2]string{first: {stackBase, stackMid}, second: {stackMid, stackFinal}}
	e.runner.respond = func(args []string) exec.CmdResult {
		st := states[args[len(args)-1]]
		data, err := os.ReadFile(file)
		if err != nil {
			t.Errorf("read source: %v", err)
		}
		from, to := st[0], st[1]
		if hasArg(args, "--reverse") {
			from, to = to, from
		}
		if string(data) != from {
			return exec.CmdResult{ExitCode: 1, Stdout: "patching file f.c\nHunk #1 FAILED at 1.\n"}
		}
		if !hasArg(args, "--dry-run") {
			if err := os.WriteFile(file, []byte(to), 0o644); err != nil {
				t.Errorf("write source: %v", err)
			}
		}
		return exec.CmdResult{}
	}

	bc := e.context(first, second)
	bc.Policy.Overlap = conflict.SeverityWarning
	rep, err := e.stage.Run(context.Background(), bc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stackFinal {
		t.Errorf("f.c = %q, want %q", data, stackFinal)
	}
	if len(rep.Conflicts) != 1 || rep.Conflicts[0].Severity != conflict.SeverityWarning {
		t.Errorf("Conflicts = %+v, want one warning", rep.Conflicts)
	}
	for i, out := range rep.Record.Patches {
		if !out.Applied {
			t.Errorf("Patches[%d] = %+v, want applied", i, out)
		}
	}
	if !rep.Verify.OK || rep.Verify.Checked != 2 {
		t.Errorf("Verify = %+v, want 2 checked hunks", rep.Verify)
	}
	if got := bc.Checkpoint.LastStage(); got != checkpoint.StagePatched {
		t.Errorf("LastStage() = %q, want patched", got)
	}
}

func TestRun_StackedPatchesWithGNUPatch(t *testing.T) {
	if _, err := osexec.LookPath("patch"); err != nil {
		t.Skip("patch not installed")
	}
	e := newEnv(t)
	first, second := e.stackedPatches(t)
	e.stage = NewPatchStage(fs.NewRealFS(), patchtool.New(exec.NewRealRunner(), nil), func() time.Time { return fixedNow })

	bc := e.context(first, second)
	bc.Policy.Overlap = conflict.SeverityWarning
	if _, err := e.stage.Run(context.Background(), bc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(e.src, "f.c"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stackFinal {
		t.Errorf("f.c = %q, want %q", data, stackFinal)
	}
}

func TestRun_VerifyFails(t *testing.T) {
	e := newEnv(t)
	p := e.writePatch(t, "001.patch", "src/node_sea.cc", seaOld, seaNew, "SEA", "Target: v24.10.0")
	e.writeSource(t, "src/node_sea.cc", seaOld) // the fake runner changes nothing

	bc := e.context(p)
	_, err := e.stage.Run(context.Background(), bc)
	if errors.GetCode(err) != errors.EVerifyFailed {
		t.Fatalf("Run() error = %v, want E_VERIFY_FAILED", err)
	}
	be, _ := errors.AsBuildError(err)
	if be.Details["file"] != "src/node_sea.cc" {
		t.Errorf("details = %v", be.Details)
	}
	if got := bc.Checkpoint.LastStage(); got != checkpoint.StageNone {
		t.Errorf("LastStage() = %q, want none", got)
	}
}

func TestClean(t *testing.T) {
	e := newEnv(t)
	bc := e.context()

	obj := filepath.Join(bc.Store.OutputDir(), "Release", "node")
	if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(obj, []byte("elf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := bc.Checkpoint.Record(checkpoint.StageBuilt); err != nil {
		t.Fatal(err)
	}

	if err := Clean(bc); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if _, err := os.Stat(bc.Store.OutputDir()); !os.IsNotExist(err) {
		t.Error("output dir should be removed")
	}
	if _, err := os.Stat(e.build); err != nil {
		t.Error("build dir itself must survive")
	}
	if got := bc.Checkpoint.LastStage(); got != checkpoint.StageNone {
		t.Errorf("LastStage() = %q, want none", got)
	}

	if err := Clean(bc); err != nil {
		t.Errorf("second Clean() error = %v", err)
	}
}

func TestFinish(t *testing.T) {
	e := newEnv(t)
	bc := e.context()
	if err := bc.Checkpoint.Record(checkpoint.StageBuilt); err != nil {
		t.Fatal(err)
	}

	if err := Finish(bc); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if _, err := os.Stat(bc.Store.CheckpointPath()); !os.IsNotExist(err) {
		t.Error("finished build should leave no checkpoint file")
	}
	names := eventNames(t, bc)
	if strings.Join(names, ",") != "checkpoint_recorded,checkpoint_cleared" {
		t.Errorf("events = %v", names)
	}
}
