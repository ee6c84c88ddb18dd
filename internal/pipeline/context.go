// Package pipeline sequences the patch stage of a Node.js build: validate,
// detect conflicts, dry-run, apply, verify, checkpoint.
//
// All per-build state travels in a BuildContext passed explicitly; the
// package holds no globals.
package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
	"github.com/NielsdaWheelz/nodebuild/internal/config"
	"github.com/NielsdaWheelz/nodebuild/internal/conflict"
	"github.com/NielsdaWheelz/nodebuild/internal/events"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
	"github.com/NielsdaWheelz/nodebuild/internal/store"
)

// PatchSpec is one patch to apply, in order.
type PatchSpec struct {
	Path  string
	Strip int
}

// BuildContext carries the state of one build invocation.
type BuildContext struct {
	// ID identifies this invocation in checkpoints, events and records.
	ID string

	NodeVersion string
	SourceDir   string
	BuildDir    string
	Patches     []PatchSpec
	Policy      conflict.Policy

	// AllowVersionMismatch accepts patches that declare a different
	// target version (with a warning).
	AllowVersionMismatch bool

	// Force re-runs the patch stage even when the checkpoint says it is done.
	Force bool

	Logger     *slog.Logger
	Events     *events.Recorder
	Store      *store.Store
	Checkpoint *checkpoint.Store
}

// NewBuildContext builds a context from a loaded config with a fresh build ID.
func NewBuildContext(cfg *config.BuildConfig, fsys fs.FS, now func() time.Time, logger *slog.Logger) *BuildContext {
	if now == nil {
		now = time.Now
	}
	id := uuid.NewString()
	st := store.NewStore(fsys, cfg.BuildDir, now)

	patches := make([]PatchSpec, len(cfg.Patches))
	for i, p := range cfg.Patches {
		patches[i] = PatchSpec{Path: p.Path, Strip: p.Strip}
	}

	return &BuildContext{
		ID:          id,
		NodeVersion: cfg.NodeVersion,
		SourceDir:   cfg.SourceDir,
		BuildDir:    cfg.BuildDir,
		Patches:     patches,
		Policy:      cfg.Conflicts,
		Logger:      logger,
		Events:      events.NewRecorder(st.EventsPath(), id, now),
		Store:       st,
		Checkpoint:  checkpoint.New(fsys, st.CheckpointPath(), id, now),
	}
}

// PatchPaths returns the patch paths in order.
func (bc *BuildContext) PatchPaths() []string {
	paths := make([]string, len(bc.Patches))
	for i, p := range bc.Patches {
		paths[i] = p.Path
	}
	return paths
}

func (bc *BuildContext) logger() *slog.Logger {
	if bc.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return bc.Logger
}

// emit appends an event. Event writes are best-effort.
func (bc *BuildContext) emit(name string, data map[string]any) {
	if err := bc.Events.Emit(name, data); err != nil {
		bc.logger().Warn("event write failed", "event", name, "error", err)
	}
}
