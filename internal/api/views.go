package api

import (
	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/library"
)

// Disks returns the filtered catalog as DTOs.
func (s *Service) Disks() []Disk {
	return s.toDTOs(s.store.Filtered())
}

// AllDisks returns every cataloged disk regardless of the filter.
func (s *Service) AllDisks() []Disk {
	return s.toDTOs(s.store.Disks())
}

// Tree returns the folder tree of the filtered catalog.
func (s *Service) Tree() []*library.Node {
	return s.store.Tree()
}

// Drives returns the resolved drive DTOs.
func (s *Service) Drives() []Drive {
	views := s.orch.Views()
	out := make([]Drive, 0, len(views))
	for _, v := range views {
		out = append(out, FromDriveView(v))
	}
	return out
}

// Status summarizes catalog and drive state.
func (s *Service) Status() Status {
	return Status{
		DeviceID: s.deviceID,
		Disks:    s.store.Len(),
		Selected: len(s.store.Selected()),
		Filter:   s.store.Filter(),
		Drives:   s.Drives(),
	}
}

func (s *Service) toDTOs(entries []diskentry.Entry) []Disk {
	mounted := make(map[string][]drives.Drive, len(drives.All))
	for _, d := range drives.All {
		if id, ok := s.orch.Resolve(d); ok && id != "" {
			mounted[id] = append(mounted[id], d)
		}
	}
	out := make([]Disk, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromEntry(e, s.store.IsSelected(e.ID), mounted[e.ID]...))
	}
	return out
}
