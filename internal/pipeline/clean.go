package pipeline

import (
	stderrors "errors"
	"os"

	"github.com/NielsdaWheelz/nodebuild/internal/checkpoint"
	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/events"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

// Clean resets the build directory so the next build starts from stage
// none: the checkpoint and patch record are removed and the output
// subtree is deleted. Nothing outside the build directory is touched.
func Clean(bc *BuildContext) error {
	if err := bc.Checkpoint.Clear(); err != nil {
		return err
	}
	bc.emit(events.CheckpointCleared, events.CheckpointData(string(checkpoint.StageNone)))

	if err := bc.Store.FS.Remove(bc.Store.PatchRecordPath()); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		bc.logger().Warn("failed to remove patch record", "path", bc.Store.PatchRecordPath(), "error", err)
	}

	out := bc.Store.OutputDir()
	if err := fs.SafeRemoveAll(out, bc.BuildDir); err != nil {
		details := map[string]string{"op": "clean", "build_dir": bc.BuildDir, "file": out}
		var notUnder *fs.ErrNotUnderPrefix
		if stderrors.As(err, &notUnder) {
			return errors.WrapWithDetails(errors.EUnsafePath, "refusing to remove "+out+": "+notUnder.Reason, err, details)
		}
		return errors.WrapWithDetails(errors.EInternal, "failed to remove build output", err, details)
	}
	bc.logger().Info("build directory cleaned", "build_dir", bc.BuildDir)
	return nil
}

// Finish marks the build complete and then clears the checkpoint; a
// finished build leaves no marker behind.
func Finish(bc *BuildContext) error {
	if err := bc.Checkpoint.Record(checkpoint.StageComplete); err != nil {
		return err
	}
	bc.emit(events.CheckpointRecorded, events.CheckpointData(string(checkpoint.StageComplete)))

	if err := bc.Checkpoint.Clear(); err != nil {
		return err
	}
	bc.emit(events.CheckpointCleared, events.CheckpointData(string(checkpoint.StageNone)))
	return nil
}
