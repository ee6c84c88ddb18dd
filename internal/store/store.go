// Package store defines the build-directory layout and persists the patch
// stage record. Files are written atomically via temp file + rename.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

// StateDirName is the nodebuild state directory inside the build directory.
const StateDirName = ".nodebuild"

// Store resolves and persists state under one build directory.
type Store struct {
	FS       fs.FS            // filesystem interface for stubbing
	BuildDir string           // absolute build directory from nodebuild.yaml
	Now      func() time.Time // injectable clock for deterministic tests
}

// NewStore creates a new Store with the given dependencies.
func NewStore(filesystem fs.FS, buildDir string, now func() time.Time) *Store {
	return &Store{
		FS:       filesystem,
		BuildDir: buildDir,
		Now:      now,
	}
}

// StateDir returns the nodebuild state directory.
// Format: <build_dir>/.nodebuild/
func (s *Store) StateDir() string {
	return filepath.Join(s.BuildDir, StateDirName)
}

// CheckpointPath returns the path to the checkpoint file.
// Format: <build_dir>/.nodebuild/checkpoint.json
func (s *Store) CheckpointPath() string {
	return filepath.Join(s.StateDir(), "checkpoint.json")
}

// EventsPath returns the path to the build events log.
// Format: <build_dir>/.nodebuild/events.jsonl
func (s *Store) EventsPath() string {
	return filepath.Join(s.StateDir(), "events.jsonl")
}

// PatchRecordPath returns the path to the last patch stage record.
// Format: <build_dir>/.nodebuild/patch_record.json
func (s *Store) PatchRecordPath() string {
	return filepath.Join(s.StateDir(), "patch_record.json")
}

// OutputDir returns the directory holding build outputs, removed by clean.
// Format: <build_dir>/out/
func (s *Store) OutputDir() string {
	return filepath.Join(s.BuildDir, "out")
}

// PatchRecord is the evidence record of one patch stage run, written
// whether the stage succeeded or failed.
type PatchRecord struct {
	// SchemaVersion is always "1.0".
	SchemaVersion string `json:"schema_version"`

	BuildID     string `json:"build_id"`
	NodeVersion string `json:"node_version"`
	SourceDir   string `json:"source_dir"`

	// StartedAt and FinishedAt are RFC3339Nano UTC timestamps.
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`

	// Skipped is true when the checkpoint showed the stage as done.
	Skipped bool `json:"skipped"`

	Patches []PatchOutcome `json:"patches"`

	// Conflicts are the human-readable conflict messages, errors first.
	Conflicts []string `json:"conflicts,omitempty"`

	OK bool `json:"ok"`

	// ErrorCode is the E_* code of the failure. Empty when OK.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PatchOutcome is the per-patch part of a PatchRecord.
type PatchOutcome struct {
	Path           string   `json:"path"`
	Strip          int      `json:"strip"`
	Description    string   `json:"description,omitempty"`
	Flags          []string `json:"flags,omitempty"`
	Valid          bool     `json:"valid"`
	Reason         string   `json:"reason,omitempty"`
	Applied        bool     `json:"applied"`
	AlreadyApplied bool     `json:"already_applied"`
}

// WritePatchRecord writes rec atomically, creating the state directory.
func (s *Store) WritePatchRecord(rec PatchRecord) error {
	if rec.SchemaVersion == "" {
		rec.SchemaVersion = "1.0"
	}
	return fs.WriteJSONAtomic(s.FS, s.PatchRecordPath(), rec, 0o644)
}

// ReadPatchRecord reads the last patch record. The bool is false when no
// record exists.
func (s *Store) ReadPatchRecord() (PatchRecord, bool, error) {
	data, err := s.FS.ReadFile(s.PatchRecordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return PatchRecord{}, false, nil
		}
		return PatchRecord{}, false, err
	}
	var rec PatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PatchRecord{}, false, err
	}
	return rec, true, nil
}
