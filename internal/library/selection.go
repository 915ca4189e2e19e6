package library

import "slices"

// Select adds known ids to the selection. Unknown ids are ignored.
func (s *Store) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.entries[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
}

// Deselect removes ids from the selection.
func (s *Store) Deselect(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.selected, id)
	}
}

// ToggleSelection flips membership of id and reports whether it is now
// selected.
func (s *Store) ToggleSelection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	if _, ok := s.entries[id]; !ok {
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SelectAll selects every disk in the filtered view.
func (s *Store) SelectAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.filteredLocked()
	for _, e := range filtered {
		s.selected[e.ID] = struct{}{}
	}
	return len(filtered)
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
}

// IsSelected reports whether id is selected.
func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// Selected returns the selected ids in sorted order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
