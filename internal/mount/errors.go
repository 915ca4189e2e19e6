package mount

import (
	"errors"
	"fmt"

	"ultidisk/internal/drives"
)

var (
	// ErrMount marks a rejected or failed mount command.
	ErrMount = errors.New("mount failed")
	// ErrUnmount marks a rejected or failed eject command.
	ErrUnmount = errors.New("unmount failed")
	// ErrNoLocalFile reports a local disk whose bytes cannot be re-acquired.
	ErrNoLocalFile = errors.New("local file unavailable")
)

const (
	opMount   = "mount"
	opUnmount = "unmount"
)

// DriveError is a drive-scoped failure of a device command.
type DriveError struct {
	Op    string
	Drive drives.Drive
	Err   error
}

func (e *DriveError) Error() string {
	return fmt.Sprintf("%s drive %s: %v", e.Op, e.Drive, e.Err)
}

func (e *DriveError) Unwrap() error {
	return e.Err
}

// Is matches the ErrMount and ErrUnmount markers by operation.
func (e *DriveError) Is(target error) bool {
	switch target {
	case ErrMount:
		return e.Op == opMount
	case ErrUnmount:
		return e.Op == opUnmount
	}
	return false
}
