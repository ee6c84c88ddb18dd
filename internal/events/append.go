// Package events provides per-build event logging for nodebuild.
// Events are stored in an append-only JSONL file under the build directory.
package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Event names.
const (
	StageStarted       = "stage_started"
	StageFinished      = "stage_finished"
	PatchValidated     = "patch_validated"
	ConflictsDetected  = "conflicts_detected"
	DryRunFinished     = "dry_run_finished"
	PatchApplied       = "patch_applied"
	SourceVerified     = "source_verified"
	CheckpointRecorded = "checkpoint_recorded"
	CheckpointCleared  = "checkpoint_cleared"
)

// Event represents a single event in events.jsonl.
// This is the public contract for the events file format.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	Timestamp     string         `json:"timestamp"` // RFC3339
	BuildID       string         `json:"build_id"`
	Event         string         `json:"event"`
	Data          map[string]any `json:"data,omitempty"`
}

// AppendEvent appends a single event to the events.jsonl file.
// The file is created lazily if it doesn't exist.
// Each event is written as a single JSON line followed by newline.
//
// Best-effort: errors are returned but callers should typically ignore them
// and continue with the main operation.
func AppendEvent(path string, e Event) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

// ReadEvents returns every parseable event in the file, in order.
// Lines that fail to parse are skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Event
		if json.Unmarshal(sc.Bytes(), &e) == nil {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}

// Recorder stamps and appends events for one build.
// A nil *Recorder discards events.
type Recorder struct {
	Path    string
	BuildID string
	Now     func() time.Time
}

// NewRecorder returns a Recorder writing to path.
func NewRecorder(path, buildID string, now func() time.Time) *Recorder {
	return &Recorder{Path: path, BuildID: buildID, Now: now}
}

// Emit appends one event. Errors are returned for logging only.
func (r *Recorder) Emit(name string, data map[string]any) error {
	if r == nil || r.Path == "" {
		return nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return AppendEvent(r.Path, Event{
		SchemaVersion: "1.0",
		Timestamp:     now().UTC().Format(time.RFC3339),
		BuildID:       r.BuildID,
		Event:         name,
		Data:          data,
	})
}

// StageData returns the data map for stage_started / stage_finished.
// errorCode is empty on success.
func StageData(stage string, ok bool, durationMS int64, errorCode string) map[string]any {
	data := map[string]any{
		"stage":       stage,
		"ok":          ok,
		"duration_ms": durationMS,
	}
	if errorCode != "" {
		data["error_code"] = errorCode
	}
	return data
}

// PatchValidatedData returns the data map for a patch_validated event.
func PatchValidatedData(path string, valid bool, kind, reason string, flags []string) map[string]any {
	data := map[string]any{
		"patch": path,
		"valid": valid,
	}
	if !valid {
		data["kind"] = kind
		data["reason"] = reason
	}
	if len(flags) > 0 {
		data["flags"] = flags
	}
	return data
}

// ConflictsData returns the data map for a conflicts_detected event.
func ConflictsData(errorCount, warningCount int) map[string]any {
	return map[string]any{
		"errors":   errorCount,
		"warnings": warningCount,
	}
}

// PatchToolData returns the data map for dry_run_finished and patch_applied.
func PatchToolData(path string, applicable, alreadyApplied, timedOut bool, exitCode int, durationMS int64, reason string) map[string]any {
	data := map[string]any{
		"patch":           path,
		"applicable":      applicable,
		"already_applied": alreadyApplied,
		"timed_out":       timedOut,
		"exit_code":       exitCode,
		"duration_ms":     durationMS,
	}
	if reason != "" {
		data["reason"] = reason
	}
	return data
}

// SourceVerifiedData returns the data map for a source_verified event.
func SourceVerifiedData(ok bool, checked, missing int) map[string]any {
	return map[string]any{
		"ok":      ok,
		"checked": checked,
		"missing": missing,
	}
}

// CheckpointData returns the data map for checkpoint events.
func CheckpointData(stage string) map[string]any {
	return map[string]any{"stage": stage}
}
