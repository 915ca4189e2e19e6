// Package drives reconciles what the device reports for its two virtual
// drives with the optimistic state left behind by local mount actions.
//
// Callers never read remote or override state directly; Resolve and View are
// the only way to ask which disk a drive holds.
package drives

import (
	"fmt"
	"strings"

	"ultidisk/internal/diskentry"
)

// Drive names one of the device's virtual drive slots.
type Drive string

const (
	DriveA Drive = "a"
	DriveB Drive = "b"
)

// All lists the drive slots in display order.
var All = []Drive{DriveA, DriveB}

// Parse converts user input ("a", "B", "drive-a") into a Drive.
func Parse(raw string) (Drive, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "drive")
	v = strings.TrimLeft(v, " -_:")
	switch Drive(v) {
	case DriveA, DriveB:
		return Drive(v), nil
	default:
		return "", fmt.Errorf("unknown drive %q (expected a or b)", raw)
	}
}

func (d Drive) String() string {
	return string(d)
}

// Label is the user-facing drive name.
func (d Drive) Label() string {
	return "Drive " + strings.ToUpper(string(d))
}

// RemoteDrive is the last polled state of one drive. It may be stale.
type RemoteDrive struct {
	Enabled   bool   `json:"enabled"`
	BusID     int    `json:"bus_id"`
	Type      string `json:"type,omitempty"`
	ImageFile string `json:"image_file,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// HasImage reports whether the device says an image is inserted.
func (r RemoteDrive) HasImage() bool {
	return strings.TrimSpace(r.ImageFile) != ""
}

// ImageLocation returns the absolute device path of the inserted image.
func (r RemoteDrive) ImageLocation() string {
	if !r.HasImage() {
		return ""
	}
	return diskentry.NormalizePath(r.ImagePath + "/" + r.ImageFile)
}

// Snapshot is one poll of the drive-status feed.
type Snapshot struct {
	A RemoteDrive `json:"a"`
	B RemoteDrive `json:"b"`
}

// Drive returns the remote state for d.
func (s Snapshot) Drive(d Drive) RemoteDrive {
	if d == DriveB {
		return s.B
	}
	return s.A
}

// Override is the local optimistic state of one drive.
type Override struct {
	set    bool
	diskID string
}

// Unset defers to the remote state.
func Unset() Override { return Override{} }

// Ejected records an explicit local eject.
func Ejected() Override { return Override{set: true} }

// Mounted records an explicit local mount of diskID.
func Mounted(diskID string) Override { return Override{set: true, diskID: diskID} }

// IsSet reports whether the override takes precedence over remote state.
func (o Override) IsSet() bool { return o.set }

// IsEjected reports the explicit "nothing mounted" sentinel.
func (o Override) IsEjected() bool { return o.set && o.diskID == "" }

// DiskID returns the mounted disk id, or "".
func (o Override) DiskID() string { return o.diskID }

func (o Override) String() string {
	switch {
	case !o.set:
		return "unset"
	case o.diskID == "":
		return "ejected"
	default:
		return o.diskID
	}
}

// Catalog looks up device-side disks by absolute path.
type Catalog interface {
	FindByPath(loc diskentry.Location, p string) (diskentry.Entry, bool)
}

// Resolve decides which disk drive d holds. An eject override wins over any
// remote state, then a mount override, then the remote report matched against
// the device-side catalog. ok is false only when the device reports an image
// the catalog does not know.
func Resolve(d Drive, snap Snapshot, override Override, catalog Catalog) (diskID string, ok bool) {
	remote := snap.Drive(d)
	if override.IsEjected() {
		return "", true
	}
	if override.IsSet() {
		return override.DiskID(), true
	}
	if !remote.HasImage() {
		return "", true
	}
	if catalog != nil {
		if e, found := catalog.FindByPath(diskentry.LocationUltimate, remote.ImageLocation()); found {
			return e.ID, true
		}
	}
	return "", false
}
