// Package checkpoint persists the ordered log of completed build stages so a
// long build can report progress and skip finished stages on rerun.
//
// The file lives at <build_dir>/.nodebuild/checkpoint.json. A missing,
// unreadable or corrupt file reads as "no checkpoint"; it never fails a build.
package checkpoint

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"time"

	"github.com/NielsdaWheelz/nodebuild/internal/errors"
	"github.com/NielsdaWheelz/nodebuild/internal/fs"
)

// SchemaVersion is written to every checkpoint file.
const SchemaVersion = "1.0"

// StaleAfter is the age past which `checkpoint show` flags the last entry.
const StaleAfter = 7 * 24 * time.Hour

// Entry is one recorded stage.
type Entry struct {
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	BuildID   string    `json:"build_id,omitempty"`
}

// Age returns how long ago the entry was recorded.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Stale reports whether the entry is older than StaleAfter.
func (e Entry) Stale(now time.Time) bool {
	return e.Age(now) > StaleAfter
}

type record struct {
	SchemaVersion string  `json:"schema_version"`
	Entries       []Entry `json:"entries"`
}

// Store reads and writes one checkpoint file. It is not safe for
// concurrent builds against the same build directory.
type Store struct {
	FS      fs.FS
	Path    string
	Now     func() time.Time
	BuildID string
}

// New returns a Store for the checkpoint file at path.
func New(filesystem fs.FS, path, buildID string, now func() time.Time) *Store {
	return &Store{FS: filesystem, Path: path, Now: now, BuildID: buildID}
}

// Record appends stage to the log. Recording the stage that is already last
// refreshes its timestamp instead of appending. The store does not check
// that the transition is legal.
func (s *Store) Record(stage Stage) error {
	if stage.Index() <= 0 {
		return errors.NewWithDetails(errors.EUsage, "cannot record stage "+string(stage),
			map[string]string{"stage": string(stage)})
	}

	rec, _ := s.load()
	entry := Entry{Stage: stage, Timestamp: s.now().UTC(), BuildID: s.BuildID}
	if n := len(rec.Entries); n > 0 && rec.Entries[n-1].Stage == stage {
		rec.Entries[n-1] = entry
	} else {
		rec.Entries = append(rec.Entries, entry)
	}
	rec.SchemaVersion = SchemaVersion

	if err := fs.WriteJSONAtomic(s.FS, s.Path, rec, 0o644); err != nil {
		return errors.WrapWithDetails(errors.ECheckpointWriteFailed, "failed to write checkpoint", err,
			map[string]string{"stage": string(stage), "file": s.Path})
	}
	return nil
}

// LastStage returns the most recently recorded stage, or StageNone.
func (s *Store) LastStage() Stage {
	e, ok := s.Last()
	if !ok || e.Stage.Index() < 0 {
		return StageNone
	}
	return e.Stage
}

// Last returns the most recent entry.
func (s *Store) Last() (Entry, bool) {
	entries := s.Entries()
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// Entries returns all recorded entries, oldest first. Empty when the file
// is missing or corrupt.
func (s *Store) Entries() []Entry {
	rec, err := s.load()
	if err != nil {
		return nil
	}
	return rec.Entries
}

// Clear removes the checkpoint file. A missing file is not an error.
func (s *Store) Clear() error {
	err := s.FS.Remove(s.Path)
	if err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.WrapWithDetails(errors.ECheckpointWriteFailed, "failed to clear checkpoint", err,
			map[string]string{"file": s.Path})
	}
	return nil
}

// errCorrupt marks a checkpoint file that exists but cannot be used.
var errCorrupt = stderrors.New("corrupt checkpoint")

// load reads the file. Any failure returns an empty record and an error;
// callers treat both the same.
func (s *Store) load() (record, error) {
	data, err := s.FS.ReadFile(s.Path)
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, errCorrupt
	}
	if rec.SchemaVersion != SchemaVersion {
		return record{}, errCorrupt
	}
	return rec, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
