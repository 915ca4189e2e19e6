package api_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ultidisk/internal/api"
	"ultidisk/internal/catalogdb"
	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/notifications"
	"ultidisk/internal/scanner"
	"ultidisk/internal/testsupport"
)

type harness struct {
	svc      *api.Service
	drives   *testsupport.FakeDriveAPI
	notes    *testsupport.NotificationRecorder
	catalog  *catalogdb.Store
	deviceID string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := catalogdb.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	h := &harness{
		drives:   testsupport.NewFakeDriveAPI(),
		notes:    &testsupport.NotificationRecorder{},
		catalog:  store,
		deviceID: "ultimate-1234",
	}
	h.svc = h.open(t)
	return h
}

func (h *harness) open(t *testing.T) *api.Service {
	t.Helper()
	svc := api.NewService(api.Options{
		DeviceID: h.deviceID,
		Drives:   h.drives,
		Catalog:  h.catalog,
		Notifier: h.notes,
	})
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return svc
}

func (h *harness) events(event notifications.Event) int {
	n := 0
	for _, e := range h.notes.Events() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func addZak(t *testing.T, h *harness) api.AddResult {
	t.Helper()
	src := testsupport.NewMemorySource(diskentry.LocationLocal,
		"/games/Zak1.d64", "/games/Zak2.d64", "/misc/Elite.d64", "/misc/readme.txt")
	res, err := h.svc.AddDisksFromScan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, nil)
	if err != nil {
		t.Fatalf("AddDisksFromScan: %v", err)
	}
	return res
}

func TestAddDisksFromScanGroupsAndPersists(t *testing.T) {
	h := newHarness(t)
	res := addZak(t, h)

	if res.Added != 3 || res.Updated != 0 || res.Empty {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ScanID == "" {
		t.Fatal("expected scan id")
	}
	if len(res.Groups) != 1 || res.Groups[0] != "Zak" {
		t.Fatalf("groups = %v, want [Zak]", res.Groups)
	}
	if got := h.events(notifications.EventDisksAdded); got != 1 {
		t.Fatalf("expected one disks_added event, got %d", got)
	}

	reopened := h.open(t)
	disks := reopened.AllDisks()
	if len(disks) != 3 {
		t.Fatalf("expected 3 persisted disks, got %d", len(disks))
	}
	for _, d := range disks {
		wantGroup := "Zak"
		if d.Name == "Elite.d64" {
			wantGroup = ""
		}
		if d.Group != wantGroup {
			t.Fatalf("%s group = %q, want %q", d.Name, d.Group, wantGroup)
		}
	}
}

func TestAddDisksFromScanRescanUpdates(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	res := addZak(t, h)
	if res.Added != 0 || res.Updated != 3 {
		t.Fatalf("rescan should update in place: %+v", res)
	}
	if got := len(h.svc.AllDisks()); got != 3 {
		t.Fatalf("expected 3 disks after rescan, got %d", got)
	}
}

func TestAddDisksFromScanEmptyIsNotAnError(t *testing.T) {
	h := newHarness(t)
	src := testsupport.NewMemorySource(diskentry.LocationUltimate, "/docs/readme.txt")
	res, err := h.svc.AddDisksFromScan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.Empty {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if h.events(notifications.EventScanEmpty) != 1 || h.events(notifications.EventDisksAdded) != 0 {
		t.Fatalf("unexpected events: %+v", h.notes.Events())
	}
}

func TestAddDisksFromScanFailureNotifies(t *testing.T) {
	h := newHarness(t)
	src := testsupport.NewMemorySource(diskentry.LocationUltimate, "/a/x.d64")
	src.FailOn("/a", errors.New("connection reset"))
	_, err := h.svc.AddDisksFromScan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, nil)
	if err == nil {
		t.Fatal("expected scan error")
	}
	if h.svc.Library().Len() != 0 {
		t.Fatal("failed scan must not add disks")
	}
	if h.events(notifications.EventOperationFailed) != 1 {
		t.Fatalf("expected operation_failed, got %+v", h.notes.Events())
	}
}

func TestAddFileRejectsNonDiskImage(t *testing.T) {
	h := newHarness(t)
	src := testsupport.NewMemorySource(diskentry.LocationLocal, "/x/notes.txt")
	if _, err := h.svc.AddFile(context.Background(), src, "/x/notes.txt"); err == nil {
		t.Fatal("expected error for non disk image")
	}
}

func TestMountUploadsLocalDiskAndPersistsOverride(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	id, err := h.svc.ResolveDiskRef("/games/Zak1.d64")
	if err != nil {
		t.Fatalf("ResolveDiskRef: %v", err)
	}
	h.notes.Reset()

	if err := h.svc.MountDisk(context.Background(), drives.DriveA, id); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	calls := h.drives.Calls()
	if len(calls) != 1 || string(calls[0].Uploaded) != "/games/Zak1.d64" {
		t.Fatalf("expected local upload, got %+v", calls)
	}
	if h.events(notifications.EventDiskMounted) != 1 || len(h.notes.Events()) != 1 {
		t.Fatalf("expected exactly one disk_mounted event, got %+v", h.notes.Events())
	}

	reopened := h.open(t)
	views := reopened.Drives()
	if views[0].DiskID != id || !views[0].Mounted {
		t.Fatalf("override not restored: %+v", views[0])
	}
}

func TestMountFailureNotifies(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	id, _ := h.svc.ResolveDiskRef("Elite.d64")
	h.drives.FailMount(drives.DriveB, errors.New("drive busy"))
	h.notes.Reset()

	if err := h.svc.MountDisk(context.Background(), drives.DriveB, id); err == nil {
		t.Fatal("expected mount error")
	}
	if h.events(notifications.EventOperationFailed) != 1 || h.events(notifications.EventDiskMounted) != 0 {
		t.Fatalf("unexpected events: %+v", h.notes.Events())
	}
}

func TestRotateGroupAdvances(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	first, _ := h.svc.ResolveDiskRef("/games/Zak1.d64")
	second, _ := h.svc.ResolveDiskRef("/games/Zak2.d64")
	if err := h.svc.MountDisk(context.Background(), drives.DriveA, first); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}

	res, err := h.svc.RotateGroup(context.Background(), drives.DriveA, 1)
	if err != nil {
		t.Fatalf("RotateGroup: %v", err)
	}
	if res.From != first || res.To != second {
		t.Fatalf("unexpected rotation: %+v", res)
	}
	if h.events(notifications.EventGroupRotated) != 1 {
		t.Fatalf("expected group_rotated event")
	}
}

func TestDeleteSelectedPublishesSingleSummary(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	id, _ := h.svc.ResolveDiskRef("/games/Zak1.d64")
	if err := h.svc.MountDisk(context.Background(), drives.DriveA, id); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	if err := h.svc.MountDisk(context.Background(), drives.DriveB, id); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	if _, err := h.svc.SelectAll(context.Background()); err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	h.notes.Reset()
	h.drives.Reset()

	res, err := h.svc.DeleteSelected(context.Background())
	if err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	if res.Requested != 3 || res.Deleted != 3 || res.Ejected != 2 {
		t.Fatalf("unexpected summary: %+v", res)
	}
	if got := len(h.notes.Events()); got != 1 || h.events(notifications.EventBulkDeleted) != 1 {
		t.Fatalf("expected a single bulk_deleted event, got %+v", h.notes.Events())
	}
	if h.drives.Count("unmount", drives.DriveA) != 1 || h.drives.Count("unmount", drives.DriveB) != 1 {
		t.Fatalf("expected one eject per drive, got %+v", h.drives.Calls())
	}
	if h.open(t).Library().Len() != 0 {
		t.Fatal("delete was not persisted")
	}
}

func TestRenameAndRegroup(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	id, _ := h.svc.ResolveDiskRef("Elite.d64")
	if err := h.svc.Rename(context.Background(), id, "Elite (1984)"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	group := "Classics"
	if err := h.svc.Regroup(context.Background(), id, &group); err != nil {
		t.Fatalf("Regroup: %v", err)
	}
	disk, err := h.open(t).Disk(id)
	if err != nil {
		t.Fatalf("Disk: %v", err)
	}
	if disk.Name != "Elite (1984)" || disk.Group == nil || *disk.Group != "Classics" {
		t.Fatalf("update not persisted: %+v", disk)
	}
	if h.events(notifications.EventDiskUpdated) != 2 {
		t.Fatalf("expected two disk_updated events")
	}
	if err := h.svc.Rename(context.Background(), "missing", "x"); err == nil {
		t.Fatal("expected error for unknown disk")
	}
}

func TestResolveDiskRefAmbiguous(t *testing.T) {
	h := newHarness(t)
	src := testsupport.NewMemorySource(diskentry.LocationLocal, "/a/game.d64", "/b/game.d64")
	if _, err := h.svc.AddDisksFromScan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, nil); err != nil {
		t.Fatalf("AddDisksFromScan: %v", err)
	}
	if _, err := h.svc.ResolveDiskRef("game.d64"); err == nil {
		t.Fatal("expected ambiguity error")
	}
	if _, err := h.svc.ResolveDiskRef("/b/game.d64"); err != nil {
		t.Fatalf("path lookup: %v", err)
	}
}

func TestSetDrivePowerWithoutControl(t *testing.T) {
	h := newHarness(t)
	err := h.svc.SetDrivePower(context.Background(), drives.DriveA, false)
	if !errors.Is(err, api.ErrNoPowerControl) {
		t.Fatalf("expected ErrNoPowerControl, got %v", err)
	}
}

func TestFilterAndSelectionPersist(t *testing.T) {
	h := newHarness(t)
	addZak(t, h)
	if err := h.svc.SetFilter(context.Background(), "zak"); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	n, err := h.svc.SelectAll(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("SelectAll = %d, %v", n, err)
	}
	status := h.open(t).Status()
	if status.Filter != "zak" || status.Selected != 2 || status.Disks != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Drives) != 2 {
		t.Fatalf("expected two drives in status")
	}
}
