package api

import (
	"time"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/mount"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Disk describes a cataloged disk in a transport-friendly format.
type Disk struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Group       string `json:"group,omitempty"`
	ImportOrder *int   `json:"importOrder,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	ModifiedAt  string `json:"modifiedAt,omitempty"`
	ImportedAt  string `json:"importedAt,omitempty"`
	Selected    bool   `json:"selected"`
	MountedIn   string `json:"mountedIn,omitempty"`
}

// Drive describes one drive's resolved state.
type Drive struct {
	Drive        string `json:"drive"`
	Enabled      bool   `json:"enabled"`
	BusID        int    `json:"busId,omitempty"`
	DiskID       string `json:"diskId,omitempty"`
	Label        string `json:"label"`
	Mounted      bool   `json:"mounted"`
	UnknownImage bool   `json:"unknownImage"`
	Override     string `json:"override"`
	LastError    string `json:"lastError,omitempty"`
}

// Status summarizes catalog and drive state.
type Status struct {
	DeviceID string  `json:"deviceId"`
	Disks    int     `json:"disks"`
	Selected int     `json:"selected"`
	Filter   string  `json:"filter,omitempty"`
	Drives   []Drive `json:"drives"`
}

// FromEntry converts a catalog entry. mountedIn lists drives resolved to
// hold it.
func FromEntry(e diskentry.Entry, selected bool, mountedIn ...drives.Drive) Disk {
	dto := Disk{
		ID:          e.ID,
		Name:        e.Name,
		Path:        e.Path,
		Location:    string(e.Location),
		Type:        diskentry.ImageType(e.Path),
		ImportOrder: e.ImportOrder,
		SizeBytes:   e.SizeBytes,
		ModifiedAt:  formatTime(e.ModifiedAt),
		ImportedAt:  formatTime(e.ImportedAt),
		Selected:    selected,
	}
	if e.Group != nil {
		dto.Group = *e.Group
	}
	for i, d := range mountedIn {
		if i > 0 {
			dto.MountedIn += ","
		}
		dto.MountedIn += string(d)
	}
	return dto
}

// FromDriveView converts a resolved drive view.
func FromDriveView(v drives.View) Drive {
	dto := Drive{
		Drive:        string(v.Drive),
		Enabled:      v.Enabled,
		BusID:        v.BusID,
		DiskID:       v.DiskID,
		Label:        v.Label,
		Mounted:      v.Mounted,
		UnknownImage: v.UnknownImage,
		Override:     v.Override,
		LastError:    v.LastError,
	}
	return dto
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// DeleteSummary reports a single or bulk delete.
type DeleteSummary struct {
	Requested     int      `json:"requested"`
	Deleted       int      `json:"deleted"`
	Ejected       int      `json:"ejected"`
	EjectFailures []string `json:"ejectFailures,omitempty"`
}

// FromDeleteResults converts orchestrator delete results.
func FromDeleteResults(results ...mount.DeleteResult) DeleteSummary {
	summary := DeleteSummary{Requested: len(results)}
	for _, r := range results {
		if r.Removed {
			summary.Deleted++
		}
		summary.Ejected += len(r.Ejected)
		for _, err := range r.EjectFailures {
			summary.EjectFailures = append(summary.EjectFailures, err.Error())
		}
	}
	return summary
}
