package library

import "ultidisk/internal/diskentry"

// Snapshot is the persisted form of a catalog. Runtime handles are not part
// of it.
type Snapshot struct {
	DeviceID string            `json:"device_id"`
	Disks    []diskentry.Entry `json:"disks"`
	Selected []string          `json:"selected,omitempty"`
	Filter   string            `json:"filter,omitempty"`
}

// Snapshot captures the catalog state.
func (s *Store) Snapshot() Snapshot {
	disks := s.Disks()
	selected := s.Selected()
	return Snapshot{
		DeviceID: s.deviceID,
		Disks:    disks,
		Selected: selected,
		Filter:   s.Filter(),
	}
}

// Restore replaces the catalog with snap. Handles survive for ids that are
// still present and the selection is pruned to known ids.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[string]diskentry.Entry, len(snap.Disks))
	for _, e := range snap.Disks {
		e = e.Clone()
		e.Path = diskentry.NormalizePath(e.Path)
		if e.Location == "" {
			e.Location = diskentry.LocationLocal
		}
		if e.ID == "" {
			e.ID = diskentry.ID(e.Location, e.Path)
		}
		if e.Name == "" {
			e.Name = diskentry.DerivedName(e.Path)
		}
		entries[e.ID] = e
	}
	s.entries = entries

	for id := range s.handles {
		if _, ok := entries[id]; !ok {
			delete(s.handles, id)
		}
	}
	s.selected = make(map[string]struct{}, len(snap.Selected))
	for _, id := range snap.Selected {
		if _, ok := entries[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
	s.filter = snap.Filter
}
