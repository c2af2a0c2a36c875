package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"authrisk/internal/learning"
)

const (
	profilesFileName = "user_profiles.json"
	versionsFileName = "model_versions.json"
)

// SnapshotStore persists the Learning Engine's whole-file JSON snapshots
// (spec.md §6's persisted state layout) to a configured directory, created
// on init, using the teacher's write-new-then-rename pattern for atomicity.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore returns a SnapshotStore rooted at dir, creating it (and
// any parents) if it doesn't already exist.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create snapshot directory %s: %w", dir, err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// SaveProfiles atomically writes the profiles map to user_profiles.json.
func (s *SnapshotStore) SaveProfiles(profiles map[string]*learning.UserAdaptiveProfile) error {
	return s.writeJSON(profilesFileName, profiles)
}

// LoadProfiles reads user_profiles.json, returning an empty map (not an
// error) if the file doesn't exist yet — the first run of a fresh install.
func (s *SnapshotStore) LoadProfiles() (map[string]*learning.UserAdaptiveProfile, error) {
	profiles := make(map[string]*learning.UserAdaptiveProfile)
	ok, err := s.readJSON(profilesFileName, &profiles)
	if err != nil {
		return nil, err
	}
	if !ok {
		return make(map[string]*learning.UserAdaptiveProfile), nil
	}
	return profiles, nil
}

// SaveVersions atomically writes the model-version store to
// model_versions.json.
func (s *SnapshotStore) SaveVersions(versions map[learning.ModelType][]*learning.ModelVersion) error {
	return s.writeJSON(versionsFileName, versions)
}

// LoadVersions reads model_versions.json, returning an empty map (not an
// error) if the file doesn't exist yet.
func (s *SnapshotStore) LoadVersions() (map[learning.ModelType][]*learning.ModelVersion, error) {
	versions := make(map[learning.ModelType][]*learning.ModelVersion)
	ok, err := s.readJSON(versionsFileName, &versions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return make(map[learning.ModelType][]*learning.ModelVersion), nil
	}
	return versions, nil
}

// SaveEngine snapshots both the profiles map and the version store from a
// running Learning Engine, per spec.md §4.4's "periodically and on
// shutdown" persistence cadence.
func (s *SnapshotStore) SaveEngine(e *learning.Engine) error {
	if err := s.SaveProfiles(e.ExportProfiles()); err != nil {
		return err
	}
	return s.SaveVersions(e.ExportVersions())
}

// LoadIntoEngine restores a previously-saved snapshot into a freshly
// constructed Engine, before Start is called.
func (s *SnapshotStore) LoadIntoEngine(e *learning.Engine) error {
	profiles, err := s.LoadProfiles()
	if err != nil {
		return err
	}
	e.ImportProfiles(profiles)

	versions, err := s.LoadVersions()
	if err != nil {
		return err
	}
	e.ImportVersions(versions)
	return nil
}

// writeJSON marshals v and writes it to name under s.dir using a
// write-new-then-rename sequence, so a crash mid-write never corrupts the
// previous snapshot (spec.md §6, PersistenceFailure in §7).
func (s *SnapshotStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: failed to marshal %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: failed to write temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("store: failed to rename temp file into place for %s: %w", name, err)
	}
	return nil
}

// readJSON unmarshals name under s.dir into v, reporting ok=false (no
// error) when the file is absent.
func (s *SnapshotStore) readJSON(name string, v interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("store: failed to unmarshal %s: %w", name, err)
	}
	return true, nil
}
