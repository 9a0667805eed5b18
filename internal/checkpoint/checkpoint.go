// Package checkpoint persists the periodic snapshot that makes Phase 1
// resumable without reprocessing documents or duplicating exports.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archivist/internal/registry"
)

// State is a consistent snapshot of Phase 1 progress. Registry holds
// per-entity counts only, never mention lists, so the file stays
// O(distinct entities). Any entity present in Registry was flushed to the
// pending queue before this state was saved.
type State struct {
	SavedAt       time.Time                        `json:"saved_at"`
	Processed     map[string]bool                  `json:"processed_paths"`
	AuditFlagged  []string                         `json:"audit_flagged,omitempty"`
	Registry      map[string]registry.SummaryEntry `json:"registry"`
	PendingOffset int64                            `json:"pending_offset"`
}

// Fresh returns the zero state for a run with no prior checkpoint.
func Fresh() *State {
	return &State{
		Processed: make(map[string]bool),
		Registry:  make(map[string]registry.SummaryEntry),
	}
}

// Manager reads and writes the checkpoint file at a fixed path.
type Manager struct {
	path string
}

// NewManager creates a manager for the checkpoint at path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load returns the last valid checkpoint, or a fresh state when none
// exists yet.
func (m *Manager) Load() (*State, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fresh(), nil
		}
		return nil, eris.Wrapf(err, "checkpoint: read %s", m.path)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: parse %s", m.path)
	}
	if st.Processed == nil {
		st.Processed = make(map[string]bool)
	}
	if st.Registry == nil {
		st.Registry = make(map[string]registry.SummaryEntry)
	}
	return &st, nil
}

// Save writes the state to a temporary file in the same directory, syncs
// it, and atomically renames it over the previous checkpoint. At every
// instant the checkpoint path holds either the old fully-valid snapshot
// or the new one, never a partial write.
func (m *Manager) Save(st *State) error {
	st.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "checkpoint: create temp")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: sync temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "checkpoint: close temp")
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "checkpoint: rename over %s", m.path)
	}
	return nil
}
