package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strconv"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/events"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/patch"
	"github.com/NielsdaWheelz/nodebuild/internal/patchtool"
	"github.com/NielsdaWheelz/nodebuild/internal/store"
	"github.com/NielsdaWheelz/nodebuild/internal/verify"
)

const stageName = "patch"

// PatchStage runs the patch gate against a source tree.
type PatchStage struct {
	FS        fs.FS
	Tool      *patchtool.Tool
	Validator *patch.Validator
	Now       func() time.Time
}

// NewPatchStage returns a PatchStage using the default analyzer rules.
func NewPatchStage(fsys fs.FS, tool *patchtool.Tool, now func() time.Time) *PatchStage {
	return &PatchStage{FS: fsys, Tool: tool, Validator: patch.NewValidator(fsys), Now: now}
}

// Report is everything the stage learned, successful or not.
type Report struct {
	Record    store.PatchRecord
	Verdicts  []patch.Verdict
	Conflicts []conflict.Record
	DryRuns   []patchtool.Result
	Applies   []patchtool.Result
	Verify    verify.Result
}

// Run executes the stage:
//  1. skip when the checkpoint shows patched or later (unless bc.Force)
//  2. validate every patch
//  3. detect conflicts between patches
//  4. for each patch in order: dry-run it against the tree as left by the
//     patches before it, apply it, then verify the tree carries its
//     modifications
//  5. record the patched checkpoint
//
// The first failing step stops the stage. A failure in step 4 leaves the
// earlier patches applied and no checkpoint; the next run sees them as
// already applied. The patch record is written either way; the returned
// error is a BuildError whose code names the step.
func (s *PatchStage) Run(ctx context.Context, bc *BuildContext) (Report, error) {
	start := s.now()
	r := Report{Record: store.PatchRecord{
		BuildID:     bc.ID,
		NodeVersion: bc.NodeVersion,
		SourceDir:   bc.SourceDir,
		StartedAt:   start.UTC().Format(time.RFC3339Nano),
	}}

	bc.emit(events.StageStarted, map[string]any{"stage": stageName})
	err := s.run(ctx, bc, &r)

	end := s.now()
	r.Record.FinishedAt = end.UTC().Format(time.RFC3339Nano)
	r.Record.DurationMS = end.Sub(start).Milliseconds()
	r.Record.OK = err == nil
	if err != nil {
		r.Record.ErrorCode = string(errors.GetCode(err))
		r.Record.Error = err.Error()
	}

	if werr := bc.Store.WritePatchRecord(r.Record); werr != nil {
		bc.logger().Warn("patch record write failed", "path", bc.Store.PatchRecordPath(), "error", werr)
	}
	bc.emit(events.StageFinished, events.StageData(stageName, r.Record.OK, r.Record.DurationMS, r.Record.ErrorCode))
	return r, err
}

func (s *PatchStage) run(ctx context.Context, bc *BuildContext, r *Report) error {
	log := bc.logger().With("stage", stageName, "build_id", bc.ID)

	if !bc.Force {
		if last := bc.Checkpoint.LastStage(); checkpoint.Completed(last, checkpoint.StagePatched) {
			log.Info("patch stage already complete, skipping", "checkpoint", last)
			r.Record.Skipped = true
			return nil
		}
	}

	log.Info("patch stage started", "patches", len(bc.Patches), "source_dir", bc.SourceDir)
	if err := s.validate(bc, r); err != nil {
		return err
	}
	if err := s.detectConflicts(bc, r); err != nil {
		return err
	}

	r.Verify = verify.Merge()
	for i, p := range bc.Patches {
		dry, err := s.Tool.DryRun(ctx, p.Path, bc.SourceDir, p.Strip)
		r.DryRuns = append(r.DryRuns, dry)
		if err != nil {
			return SpawnError(ctx, "dry-run", p, err)
		}
		bc.emit(events.DryRunFinished, toolData(dry))
		if !dry.Applicable {
			return dry.Err()
		}

		res, err := s.Tool.Apply(ctx, p.Path, bc.SourceDir, p.Strip)
		r.Applies = append(r.Applies, res)
		if err != nil {
			return SpawnError(ctx, "apply", p, err)
		}
		bc.emit(events.PatchApplied, toolData(res))
		if !res.Applicable {
			return res.Err()
		}
		r.Record.Patches[i].Applied = !res.AlreadyApplied
		r.Record.Patches[i].AlreadyApplied = res.AlreadyApplied
		log.Info("patch applied", "patch", p.Path, "already_applied", res.AlreadyApplied)

		// Checked now: a later patch may rewrite these lines.
		v := verify.Verify(s.FS, bc.SourceDir, []verify.Target{{Patch: p.Path, Strip: p.Strip, Files: r.Verdicts[i].Files}})
		r.Verify = verify.Merge(r.Verify, v)
		bc.emit(events.SourceVerified, events.SourceVerifiedData(v.OK, v.Checked, len(v.Missing)))
		if !v.OK {
			return verifyError(bc, r.Verify)
		}
	}

	if err := bc.Checkpoint.Record(checkpoint.StagePatched); err != nil {
		return err
	}
	bc.emit(events.CheckpointRecorded, events.CheckpointData(string(checkpoint.StagePatched)))
	return nil
}

// validate fills r.Verdicts and the per-patch outcomes and returns the
// error of the first invalid patch.
func (s *PatchStage) validate(bc *BuildContext, r *Report) error {
	log := bc.logger()
	r.Record.Patches = make([]store.PatchOutcome, len(bc.Patches))

	for i, p := range bc.Patches {
		v := s.Validator.Validate(p.Path, bc.NodeVersion)
		if !v.Valid && v.Kind == patch.KindVersionMismatch && bc.AllowVersionMismatch {
			log.Warn("accepting patch built for another node version", "patch", p.Path, "reason", v.Reason)
			v = s.Validator.Accept(v)
		}
		r.Verdicts = append(r.Verdicts, v)

		flags := flagNames(v.Analysis.SetFlags(s.Validator.Rules))
		r.Record.Patches[i] = store.PatchOutcome{
			Path:        p.Path,
			Strip:       p.Strip,
			Description: v.Metadata.Description,
			Flags:       flags,
			Valid:       v.Valid,
			Reason:      v.Reason,
		}
		bc.emit(events.PatchValidated, events.PatchValidatedData(p.Path, v.Valid, string(v.Kind), v.Reason, flags))
	}

	for _, v := range r.Verdicts {
		if !v.Valid {
			return v.Err(bc.NodeVersion)
		}
	}
	return nil
}

func (s *PatchStage) detectConflicts(bc *BuildContext, r *Report) error {
	if len(r.Verdicts) < 2 {
		return nil
	}
	r.Conflicts = conflict.Detect(conflict.FromVerdicts(r.Verdicts), bc.NodeVersion, bc.Policy)
	errs, warnings := conflict.Partition(r.Conflicts)
	for _, c := range errs {
		r.Record.Conflicts = append(r.Record.Conflicts, c.Message)
	}
	for _, c := range warnings {
		r.Record.Conflicts = append(r.Record.Conflicts, c.Message)
		bc.logger().Warn("patches touch the same file", "message", c.Message)
	}
	bc.emit(events.ConflictsDetected, events.ConflictsData(len(errs), len(warnings)))

	if len(errs) == 0 {
		return nil
	}
	return ConflictError(errs)
}

// ConflictError converts blocking conflict records into E_PATCH_CONFLICT.
// The first record supplies the message and details.
func ConflictError(errs []conflict.Record) error {
	first := errs[0]
	msg := first.Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}
	details := map[string]string{
		"op":      "conflicts",
		"patches": first.Patches[0] + "," + first.Patches[1],
		"file":    first.File,
	}
	if first.Overlaps {
		details["range"] = first.Range.String()
	}
	return errors.NewWithDetails(errors.EPatchConflict, msg, details)
}

func verifyError(bc *BuildContext, res verify.Result) error {
	first := res.Missing[0]
	details := map[string]string{
		"op":         "verify",
		"patch":      first.Patch,
		"file":       first.File,
		"source_dir": bc.SourceDir,
	}
	if first.Hunk != "" {
		details["hunk"] = first.Hunk
	}
	return errors.NewWithDetails(errors.EVerifyFailed, res.Summary, details)
}

// SpawnError maps a failure to run patch(1) at all into a BuildError.
func SpawnError(ctx context.Context, op string, p PatchSpec, err error) error {
	details := map[string]string{"op": op, "patch": p.Path, "strip": strconv.Itoa(p.Strip)}
	if ctx.Err() != nil {
		return errors.WrapWithDetails(errors.EInternal, op+" interrupted", err, details)
	}
	if stderrors.Is(err, osexec.ErrNotFound) || stderrors.Is(err, os.ErrNotExist) {
		details["hint"] = "install GNU patch or run `nodebuild doctor`"
		return errors.WrapWithDetails(errors.EPatchToolNotInstalled, "patch tool could not be started", err, details)
	}
	return errors.WrapWithDetails(errors.EInternal, "failed to run patch: "+err.Error(), err, details)
}

func toolData(res patchtool.Result) map[string]any {
	return events.PatchToolData(res.Patch, res.Applicable, res.AlreadyApplied, res.TimedOut,
		res.ExitCode, res.Duration.Milliseconds(), res.Reason)
}

func flagNames(flags []patch.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func (s *PatchStage) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
