package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ultidisk/internal/diskentry"
)

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// Entry is one item of a directory listing. Path is normalized and rooted at
// the source.
type Entry struct {
	Name         string
	Path         string
	Type         EntryType
	SizeBytes    int64
	ModifiedAt   time.Time
	LocalURI     string
	LocalTreeURI string
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Type == TypeDir
}

// Source lists directory contents from one storage location.
type Source interface {
	// ID identifies the source instance in logs and errors.
	ID() string
	// Kind names the adapter ("local" or "ftp").
	Kind() string
	// Location reports where listed images live.
	Location() diskentry.Location
	// ListEntries returns the direct children of dir.
	ListEntries(ctx context.Context, dir string) ([]Entry, error)
}

// HandleProvider is implemented by sources whose files can be re-opened
// locally, so a mount can transfer the bytes to the device.
type HandleProvider interface {
	Handle(entry Entry) diskentry.Handle
}

// ListingError reports a failed directory enumeration.
type ListingError struct {
	SourceID   string
	SourceType string
	Platform   string
	Path       string
	Detail     string
	Err        error
}

func (e *ListingError) Error() string {
	parts := []string{fmt.Sprintf("list %s", e.Path)}
	if e.SourceType != "" || e.SourceID != "" {
		parts = append(parts, fmt.Sprintf("on %s source %s", e.SourceType, e.SourceID))
	}
	if e.Platform != "" {
		parts = append(parts, "("+e.Platform+")")
	}
	msg := strings.Join(parts, " ")
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
