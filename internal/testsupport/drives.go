package testsupport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
)

// DriveCall records one call against FakeDriveAPI.
type DriveCall struct {
	Op       string
	Drive    drives.Drive
	Image    string
	Uploaded []byte
}

// FakeDriveAPI records mount and unmount calls and can inject failures.
type FakeDriveAPI struct {
	mu         sync.Mutex
	calls      []DriveCall
	mountErr   map[drives.Drive]error
	unmountErr map[drives.Drive]error
}

// NewFakeDriveAPI returns an API that accepts every call.
func NewFakeDriveAPI() *FakeDriveAPI {
	return &FakeDriveAPI{
		mountErr:   make(map[drives.Drive]error),
		unmountErr: make(map[drives.Drive]error),
	}
}

// FailMount makes mounts on drive return err. A nil err clears the failure.
func (f *FakeDriveAPI) FailMount(drive drives.Drive, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mountErr[drive] = err
}

// FailUnmount makes unmounts on drive return err. A nil err clears the failure.
func (f *FakeDriveAPI) FailUnmount(drive drives.Drive, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmountErr[drive] = err
}

func (f *FakeDriveAPI) Mount(_ context.Context, drive drives.Drive, image string, file diskentry.Handle) error {
	call := DriveCall{Op: "mount", Drive: drive, Image: image}
	if file != nil {
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name(), err)
		}
		call.Uploaded, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.mountErr[drive]
}

func (f *FakeDriveAPI) Unmount(_ context.Context, drive drives.Drive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, DriveCall{Op: "unmount", Drive: drive})
	return f.unmountErr[drive]
}

// Calls returns a copy of every recorded call.
func (f *FakeDriveAPI) Calls() []DriveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DriveCall(nil), f.calls...)
}

// Count returns how many calls matched op and drive. An empty drive matches
// any drive.
func (f *FakeDriveAPI) Count(op string, drive drives.Drive) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op && (drive == "" || c.Drive == drive) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (f *FakeDriveAPI) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
