package library

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"ultidisk/internal/diskentry"
)

// foldString case-folds s. Casers carry state, so each call gets its own.
func foldString(s string) string {
	return cases.Fold().String(s)
}

// SetFilter replaces the filter text applied to the derived views.
func (s *Store) SetFilter(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = strings.TrimSpace(text)
}

// Filter returns the current filter text.
func (s *Store) Filter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Filtered returns the disks matching the filter, ordered by name then path.
func (s *Store) Filtered() []diskentry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked()
}

func (s *Store) filteredLocked() []diskentry.Entry {
	needle := foldString(s.filter)
	out := make([]diskentry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if needle != "" && !matches(e, needle) {
			continue
		}
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b diskentry.Entry) int {
		return cmp.Or(
			strings.Compare(foldString(a.Name), foldString(b.Name)),
			strings.Compare(a.Path, b.Path),
			strings.Compare(a.ID, b.ID),
		)
	})
	return out
}

func matches(e diskentry.Entry, needle string) bool {
	for _, hay := range []string{e.Name, e.Path, e.GroupKey()} {
		if hay != "" && strings.Contains(foldString(hay), needle) {
			return true
		}
	}
	return false
}

// Node is one folder or disk in the tree view.
type Node struct {
	Name     string
	Path     string
	Location diskentry.Location
	Disk     *diskentry.Entry
	Children []*Node
}

// IsDisk reports whether the node is a leaf disk.
func (n *Node) IsDisk() bool {
	return n.Disk != nil
}

// Count returns the number of disks below the node.
func (n *Node) Count() int {
	if n.Disk != nil {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Tree returns the filtered disks as one folder tree per location. Folders
// sort before disks and siblings sort by name.
func (s *Store) Tree() []*Node {
	s.mu.RLock()
	filtered := s.filteredLocked()
	s.mu.RUnlock()

	roots := make(map[diskentry.Location]*Node)
	for i := range filtered {
		e := filtered[i]
		root, ok := roots[e.Location]
		if !ok {
			root = &Node{Name: string(e.Location), Path: "/", Location: e.Location}
			roots[e.Location] = root
		}
		node := root
		segments := strings.Split(strings.TrimPrefix(diskentry.ParentDir(e.Path), "/"), "/")
		current := ""
		for _, seg := range segments {
			if seg == "" {
				continue
			}
			current += "/" + seg
			node = node.child(seg, current, e.Location)
		}
		node.Children = append(node.Children, &Node{
			Name:     e.Name,
			Path:     e.Path,
			Location: e.Location,
			Disk:     &e,
		})
	}

	out := make([]*Node, 0, len(roots))
	for _, root := range roots {
		root.sort()
		out = append(out, root)
	}
	slices.SortFunc(out, func(a, b *Node) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (n *Node) child(name, p string, loc diskentry.Location) *Node {
	for _, c := range n.Children {
		if c.Disk == nil && c.Name == name {
			return c
		}
	}
	c := &Node{Name: name, Path: p, Location: loc}
	n.Children = append(n.Children, c)
	return c
}

func (n *Node) sort() {
	slices.SortFunc(n.Children, func(a, b *Node) int {
		if a.IsDisk() != b.IsDisk() {
			if a.IsDisk() {
				return 1
			}
			return -1
		}
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.Path, b.Path))
	})
	for _, c := range n.Children {
		c.sort()
	}
}
