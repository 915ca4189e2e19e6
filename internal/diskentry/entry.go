package diskentry

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Location identifies which storage a disk image lives on.
type Location string

const (
	// LocationLocal marks images on the client's own storage.
	LocationLocal Location = "local"
	// LocationUltimate marks images on the device's storage, reached over FTP.
	LocationUltimate Location = "ultimate"
)

// ParseLocation converts user input into a Location.
func ParseLocation(raw string) (Location, error) {
	switch Location(strings.ToLower(strings.TrimSpace(raw))) {
	case LocationLocal:
		return LocationLocal, nil
	case LocationUltimate, "device", "remote":
		return LocationUltimate, nil
	default:
		return "", fmt.Errorf("unknown disk location %q (expected local or ultimate)", raw)
	}
}

// Entry is one cataloged disk image.
type Entry struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Location     Location  `json:"location"`
	Group        *string   `json:"group,omitempty"`
	ImportOrder  *int      `json:"import_order,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	ModifiedAt   time.Time `json:"modified_at,omitzero"`
	LocalURI     string    `json:"local_uri,omitempty"`
	LocalTreeURI string    `json:"local_tree_uri,omitempty"`
	ImportedAt   time.Time `json:"imported_at"`

	nameSupplied bool
}

// Fields carries the inputs New accepts. Name is optional; when empty the
// display name is derived from the path.
type Fields struct {
	Path         string
	Name         string
	Location     Location
	Group        *string
	ImportOrder  *int
	SizeBytes    int64
	ModifiedAt   time.Time
	LocalURI     string
	LocalTreeURI string
	ImportedAt   time.Time
}

// Handle re-acquires the bytes of a local image. Handles are runtime-only and
// never persisted.
type Handle interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// ID derives the stable identity of an image from its location and path.
func ID(loc Location, p string) string {
	return string(loc) + ":" + NormalizePath(p)
}

// DerivedName returns the display name implied by a path.
func DerivedName(p string) string {
	return BaseName(p)
}

// New builds an Entry, normalizing the path and assigning its identity.
func New(f Fields) Entry {
	normalized := NormalizePath(f.Path)
	loc := f.Location
	if loc == "" {
		loc = LocationLocal
	}
	name := strings.TrimSpace(f.Name)
	supplied := name != ""
	if !supplied {
		name = DerivedName(normalized)
	}
	imported := f.ImportedAt
	if imported.IsZero() {
		imported = time.Now().UTC()
	}
	return Entry{
		ID:           ID(loc, normalized),
		Path:         normalized,
		Name:         name,
		Location:     loc,
		Group:        cloneString(f.Group),
		ImportOrder:  cloneInt(f.ImportOrder),
		SizeBytes:    f.SizeBytes,
		ModifiedAt:   f.ModifiedAt,
		LocalURI:     f.LocalURI,
		LocalTreeURI: f.LocalTreeURI,
		ImportedAt:   imported,
		nameSupplied: supplied,
	}
}

// NameSupplied reports whether the entry carries a chosen name: one passed to
// New, even if equal to the derived name, or one set later that differs from
// it.
func (e Entry) NameSupplied() bool {
	return e.nameSupplied || e.Renamed()
}

// Renamed reports whether the display name differs from the derived one.
func (e Entry) Renamed() bool {
	return e.Name != DerivedName(e.Path)
}

// GroupKey returns the rotation group or "" when the entry has none.
func (e Entry) GroupKey() string {
	if e.Group == nil {
		return ""
	}
	return *e.Group
}

// Clone returns a deep copy so callers cannot mutate catalog state through
// shared pointers.
func (e Entry) Clone() Entry {
	e.Group = cloneString(e.Group)
	e.ImportOrder = cloneInt(e.ImportOrder)
	return e
}

// StringPtr returns a pointer to a trimmed copy of s, or nil when s is blank.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int {
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
