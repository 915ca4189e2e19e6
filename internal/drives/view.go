package drives

import "ultidisk/internal/diskentry"

// View is the read model of one drive.
type View struct {
	Drive        Drive  `json:"drive"`
	DiskID       string `json:"disk_id,omitempty"`
	Label        string `json:"label,omitempty"`
	Mounted      bool   `json:"mounted"`
	UnknownImage bool   `json:"unknown_image"`
	Enabled      bool   `json:"enabled"`
	BusID        int    `json:"bus_id"`
	Override     string `json:"override"`
	LastError    string `json:"last_error,omitempty"`
}

// DiskLookup resolves disk ids to catalog entries.
type DiskLookup interface {
	Catalog
	Disk(id string) (diskentry.Entry, bool)
}

// BuildView resolves drive d and fills the read model. The label is the disk's
// display name, or the remote filename when the device holds an image the
// catalog does not know.
func BuildView(d Drive, snap Snapshot, override Override, catalog DiskLookup, lastErr error) View {
	remote := snap.Drive(d)
	v := View{
		Drive:    d,
		Enabled:  remote.Enabled,
		BusID:    remote.BusID,
		Override: override.String(),
	}
	if lastErr != nil {
		v.LastError = lastErr.Error()
	}

	var cat Catalog
	if catalog != nil {
		cat = catalog
	}
	id, ok := Resolve(d, snap, override, cat)
	switch {
	case !ok:
		v.Mounted = true
		v.UnknownImage = true
		v.Label = remote.ImageFile
	case id != "":
		v.Mounted = true
		v.DiskID = id
		v.Label = id
		if catalog != nil {
			if e, found := catalog.Disk(id); found {
				v.Label = e.Name
			}
		}
	}
	return v
}
