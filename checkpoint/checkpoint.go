// Package checkpoint persists model snapshots to a directory with
// bounded retention. Snapshots are gob-encoded into enumerated files,
// a marker file always names the most recent snapshot, and files
// beyond the retention count are pruned oldest-first.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deepqgo/deepq/agent"
)

// DefaultRetain is the number of most-recent checkpoints kept on disk.
const DefaultRetain = 10

const markerFile = "checkpoint"

// Manager saves and restores Serializable objects in a checkpoint
// directory.
type Manager struct {
	dir    string
	retain int
	next   int      // suffix of the next checkpoint file
	saved  []string // filenames on disk, oldest first
}

// NewManager returns a Manager saving checkpoints under dir, keeping
// at most retain of them. The directory is created if needed, and the
// numbering of an existing checkpoint directory is resumed.
func NewManager(dir string, retain int) (*Manager, error) {
	if retain < 1 {
		return nil, fmt.Errorf("newmanager: retain must be >= 1, got %d",
			retain)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newmanager: could not create checkpoint "+
			"directory: %v", err)
	}

	m := &Manager{dir: dir, retain: retain}
	if err := m.scan(); err != nil {
		return nil, fmt.Errorf("newmanager: %v", err)
	}
	return m, nil
}

// scan recovers numbering and retention state from the files already
// in the checkpoint directory.
func (m *Manager) scan() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("scan: %v", err)
	}

	type ckpt struct {
		num  int
		name string
	}
	var found []ckpt
	for _, entry := range entries {
		var num int
		if _, err := fmt.Sscanf(entry.Name(), "ckpt-%d.bin", &num); err == nil {
			found = append(found, ckpt{num: num, name: entry.Name()})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].num < found[j].num })

	for _, c := range found {
		m.saved = append(m.saved, c.name)
		m.next = c.num + 1
	}
	return nil
}

// HasCheckpoint reports whether the directory holds a checkpoint
// marker to restore from.
func (m *Manager) HasCheckpoint() bool {
	_, err := os.Stat(filepath.Join(m.dir, markerFile))
	return err == nil
}

// Save writes a new snapshot of obj, updates the marker file to name
// it, and prunes snapshots beyond the retention count.
func (m *Manager) Save(obj agent.Serializable) error {
	data, err := obj.GobEncode()
	if err != nil {
		return fmt.Errorf("save: could not encode object: %v", err)
	}

	name := fmt.Sprintf("ckpt-%d.bin", m.next)
	if err := os.WriteFile(filepath.Join(m.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("save: could not write checkpoint: %v", err)
	}
	m.next++
	m.saved = append(m.saved, name)

	for len(m.saved) > m.retain {
		oldest := m.saved[0]
		m.saved = m.saved[1:]
		if err := os.Remove(filepath.Join(m.dir, oldest)); err != nil &&
			!os.IsNotExist(err) {
			return fmt.Errorf("save: could not prune %v: %v", oldest, err)
		}
	}

	marker := filepath.Join(m.dir, markerFile)
	if err := os.WriteFile(marker, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("save: could not write marker: %v", err)
	}
	return nil
}

// Restore loads the snapshot named by the marker file into obj. A
// missing or corrupt snapshot is an error: training silently
// restarting from scratch is worse than failing at startup.
func (m *Manager) Restore(obj agent.Serializable) error {
	marker, err := os.ReadFile(filepath.Join(m.dir, markerFile))
	if err != nil {
		return fmt.Errorf("restore: could not read checkpoint marker: %v",
			err)
	}

	name := strings.TrimSpace(string(marker))
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return fmt.Errorf("restore: could not read checkpoint %v: %v",
			name, err)
	}

	if err := obj.GobDecode(data); err != nil {
		return fmt.Errorf("restore: corrupt checkpoint %v: %v", name, err)
	}
	return nil
}

// Latest returns the filename of the most recent checkpoint, or the
// empty string if none has been saved.
func (m *Manager) Latest() string {
	if len(m.saved) == 0 {
		return ""
	}
	return m.saved[len(m.saved)-1]
}
