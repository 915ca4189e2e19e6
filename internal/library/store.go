package library

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"ultidisk/internal/diskentry"
)

// ErrUnknownDisk reports an operation on an id the catalog does not hold.
var ErrUnknownDisk = errors.New("unknown disk")

// AddResult counts the outcome of an AddDisks call.
type AddResult struct {
	Added   int
	Updated int
	IDs     []string
}

// Store is the disk catalog of one device.
type Store struct {
	mu       sync.RWMutex
	deviceID string
	entries  map[string]diskentry.Entry
	handles  map[string]diskentry.Handle
	selected map[string]struct{}
	filter   string
}

// New returns an empty catalog for deviceID.
func New(deviceID string) *Store {
	return &Store{
		deviceID: deviceID,
		entries:  make(map[string]diskentry.Entry),
		handles:  make(map[string]diskentry.Handle),
		selected: make(map[string]struct{}),
	}
}

// DeviceID returns the identity the catalog is keyed by.
func (s *Store) DeviceID() string {
	return s.deviceID
}

// Len returns the number of cataloged disks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// AddDisks upserts entries by location and normalized path. Existing rows keep
// their id, import time and user rename; scan metadata is refreshed. handles
// may be nil and is keyed by entry id.
func (s *Store) AddDisks(entries []diskentry.Entry, handles map[string]diskentry.Handle) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res AddResult
	for _, in := range entries {
		var name string
		if in.NameSupplied() {
			name = in.Name
		}
		in = diskentry.New(diskentry.Fields{
			Path:         in.Path,
			Name:         name,
			Location:     in.Location,
			Group:        in.Group,
			ImportOrder:  in.ImportOrder,
			SizeBytes:    in.SizeBytes,
			ModifiedAt:   in.ModifiedAt,
			LocalURI:     in.LocalURI,
			LocalTreeURI: in.LocalTreeURI,
			ImportedAt:   in.ImportedAt,
		})
		handle := handles[in.ID]

		if existing, ok := s.entries[in.ID]; ok {
			updated := existing.Clone()
			if in.NameSupplied() {
				updated.Name = in.Name
			}
			updated.Group = in.Group
			updated.ImportOrder = in.ImportOrder
			updated.SizeBytes = in.SizeBytes
			updated.ModifiedAt = in.ModifiedAt
			updated.LocalURI = in.LocalURI
			updated.LocalTreeURI = in.LocalTreeURI
			s.entries[in.ID] = updated
			res.Updated++
		} else {
			s.entries[in.ID] = in
			res.Added++
		}
		if handle != nil {
			s.handles[in.ID] = handle
		}
		res.IDs = append(res.IDs, in.ID)
	}
	return res
}

// RemoveDisk deletes a disk with its handle and selection membership. It
// reports whether the disk existed.
func (s *Store) RemoveDisk(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// RemoveDisks deletes every listed disk and returns how many existed.
func (s *Store) RemoveDisks(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if s.removeLocked(id) {
			n++
		}
	}
	return n
}

func (s *Store) removeLocked(id string) bool {
	_, ok := s.entries[id]
	delete(s.entries, id)
	delete(s.handles, id)
	delete(s.selected, id)
	return ok
}

// UpdateDiskGroup sets or clears the rotation group of a disk.
func (s *Store) UpdateDiskGroup(id string, group *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return ErrUnknownDisk
	}
	if group != nil {
		group = diskentry.StringPtr(*group)
	}
	entry.Group = group
	s.entries[id] = entry
	return nil
}

// UpdateDiskName renames a disk. An empty name restores the derived name.
func (s *Store) UpdateDiskName(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return ErrUnknownDisk
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = diskentry.DerivedName(entry.Path)
	}
	entry.Name = name
	s.entries[id] = entry
	return nil
}

// Disk returns a copy of one entry.
func (s *Store) Disk(id string) (diskentry.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return diskentry.Entry{}, false
	}
	return entry.Clone(), true
}

// Disks returns every entry ordered by id.
func (s *Store) Disks() []diskentry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]diskentry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b diskentry.Entry) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Handle returns the runtime handle of a local disk, if one is held.
func (s *Store) Handle(id string) (diskentry.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[id]
	return h, ok
}

// SetHandle attaches a runtime handle to a known disk.
func (s *Store) SetHandle(id string, h diskentry.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return ErrUnknownDisk
	}
	if h == nil {
		delete(s.handles, id)
		return nil
	}
	s.handles[id] = h
	return nil
}

// GroupMembers returns the rotation set of e ordered by path: disks with the
// same group key in the same location and folder. It is empty when e has no
// group.
func (s *Store) GroupMembers(e diskentry.Entry) []diskentry.Entry {
	group := e.GroupKey()
	if group == "" {
		return nil
	}
	dir := diskentry.ParentDir(e.Path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []diskentry.Entry
	for _, m := range s.entries {
		if m.GroupKey() != group || m.Location != e.Location || diskentry.ParentDir(m.Path) != dir {
			continue
		}
		out = append(out, m.Clone())
	}
	slices.SortFunc(out, func(a, b diskentry.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// FindByPath looks up a disk by location and path.
func (s *Store) FindByPath(loc diskentry.Location, p string) (diskentry.Entry, bool) {
	return s.Disk(diskentry.ID(loc, p))
}
