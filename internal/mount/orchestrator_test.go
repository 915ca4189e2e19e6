package mount_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/library"
	"ultidisk/internal/mount"
	"ultidisk/internal/testsupport"
)

func disk(loc diskentry.Location, p, group string, order *int) diskentry.Entry {
	return diskentry.New(diskentry.Fields{
		Path:        p,
		Location:    loc,
		Group:       diskentry.StringPtr(group),
		ImportOrder: order,
	})
}

func setup(t *testing.T, entries ...diskentry.Entry) (*mount.Orchestrator, *library.Store, *testsupport.FakeDriveAPI) {
	t.Helper()
	store := library.New("dev")
	store.AddDisks(entries, nil)
	api := testsupport.NewFakeDriveAPI()
	return mount.New(api, store, mount.Options{}), store, api
}

func zakGroup() []diskentry.Entry {
	return []diskentry.Entry{
		disk(diskentry.LocationUltimate, "/Usb0/Zak/Zak1.d64", "Zak", diskentry.IntPtr(0)),
		disk(diskentry.LocationUltimate, "/Usb0/Zak/Zak2.d64", "Zak", diskentry.IntPtr(1)),
		disk(diskentry.LocationUltimate, "/Usb0/Zak/Zak3.d64", "Zak", diskentry.IntPtr(2)),
	}
}

func TestMountSetsOverrideAndEjectWinsOverStaleRemote(t *testing.T) {
	entries := zakGroup()
	orch, _, api := setup(t, entries...)
	ctx := context.Background()

	orch.Reconcile(drives.Snapshot{A: drives.RemoteDrive{ImagePath: "/Usb0/Zak", ImageFile: "Zak1.d64"}})
	if err := orch.MountDisk(ctx, drives.DriveA, entries[1].ID); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	if id, _ := orch.Resolve(drives.DriveA); id != entries[1].ID {
		t.Fatalf("resolved %q after mount", id)
	}
	if err := orch.EjectDrive(ctx, drives.DriveA); err != nil {
		t.Fatalf("EjectDrive: %v", err)
	}
	if id, ok := orch.Resolve(drives.DriveA); id != "" || !ok {
		t.Fatalf("resolved (%q, %v) after eject, want empty", id, ok)
	}
	if api.Count("mount", drives.DriveA) != 1 || api.Count("unmount", drives.DriveA) != 1 {
		t.Fatalf("unexpected calls %+v", api.Calls())
	}
	if calls := api.Calls(); calls[0].Image != "/Usb0/Zak/Zak2.d64" || calls[0].Uploaded != nil {
		t.Fatalf("device image mounted with upload: %+v", calls[0])
	}
}

func TestMountFailureKeepsOverrideAndRecordsError(t *testing.T) {
	entries := zakGroup()
	orch, _, api := setup(t, entries...)
	ctx := context.Background()

	if err := orch.MountDisk(ctx, drives.DriveA, entries[0].ID); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	boom := errors.New("device busy")
	api.FailMount(drives.DriveA, boom)

	err := orch.MountDisk(ctx, drives.DriveA, entries[1].ID)
	var derr *mount.DriveError
	if !errors.As(err, &derr) || derr.Drive != drives.DriveA || !errors.Is(err, mount.ErrMount) || !errors.Is(err, boom) {
		t.Fatalf("unexpected error %v", err)
	}
	if errors.Is(err, mount.ErrUnmount) {
		t.Fatal("mount failure must not match ErrUnmount")
	}
	if id, _ := orch.Resolve(drives.DriveA); id != entries[0].ID {
		t.Fatalf("override changed on failure: %q", id)
	}
	if orch.LastError(drives.DriveA) == nil {
		t.Fatal("drive error not recorded")
	}

	api.FailMount(drives.DriveA, nil)
	if err := orch.MountDisk(ctx, drives.DriveA, entries[2].ID); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	if orch.LastError(drives.DriveA) != nil {
		t.Fatal("success must clear the drive error")
	}
}

func TestEjectFailureLeavesStateUntouched(t *testing.T) {
	entries := zakGroup()
	orch, _, api := setup(t, entries...)
	ctx := context.Background()
	_ = orch.MountDisk(ctx, drives.DriveB, entries[0].ID)

	api.FailUnmount(drives.DriveB, errors.New("timeout"))
	err := orch.EjectDrive(ctx, drives.DriveB)
	if !errors.Is(err, mount.ErrUnmount) {
		t.Fatalf("expected ErrUnmount, got %v", err)
	}
	if id, _ := orch.Resolve(drives.DriveB); id != entries[0].ID {
		t.Fatalf("resolved %q after failed eject", id)
	}
}

func TestLocalMountUploadsThroughHandle(t *testing.T) {
	local := disk(diskentry.LocationLocal, "/games/Elite.d64", "", nil)
	store := library.New("dev")
	store.AddDisks([]diskentry.Entry{local}, map[string]diskentry.Handle{
		local.ID: testsupport.StaticHandle{FileName: "Elite.d64", Data: []byte("bytes")},
	})
	api := testsupport.NewFakeDriveAPI()
	orch := mount.New(api, store, mount.Options{})

	if err := orch.MountDisk(context.Background(), drives.DriveA, local.ID); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	if got := string(api.Calls()[0].Uploaded); got != "bytes" {
		t.Fatalf("uploaded %q", got)
	}
}

func TestLocalMountReacquiresHandle(t *testing.T) {
	local := diskentry.New(diskentry.Fields{Path: "/Elite.d64", LocalURI: "/tmp/Elite.d64"})
	store := library.New("dev")
	store.AddDisks([]diskentry.Entry{local}, nil)
	api := testsupport.NewFakeDriveAPI()
	var reopened string
	orch := mount.New(api, store, mount.Options{Reopen: func(e diskentry.Entry) (diskentry.Handle, bool) {
		reopened = e.LocalURI
		return testsupport.StaticHandle{FileName: "Elite.d64", Data: []byte("x")}, true
	}})

	if err := orch.MountDisk(context.Background(), drives.DriveA, local.ID); err != nil {
		t.Fatalf("MountDisk: %v", err)
	}
	if reopened != "/tmp/Elite.d64" {
		t.Fatalf("reopen called with %q", reopened)
	}
	if _, ok := store.Handle(local.ID); !ok {
		t.Fatal("re-acquired handle not cached")
	}
}

func TestLocalMountWithoutFile(t *testing.T) {
	local := diskentry.New(diskentry.Fields{Path: "/Elite.d64"})
	orch, _, api := setup(t, local)
	err := orch.MountDisk(context.Background(), drives.DriveA, local.ID)
	if !errors.Is(err, mount.ErrNoLocalFile) || !errors.Is(err, mount.ErrMount) {
		t.Fatalf("unexpected error %v", err)
	}
	if len(api.Calls()) != 0 {
		t.Fatal("no device call expected")
	}
}

func TestRotateFullCycleAndInverse(t *testing.T) {
	entries := zakGroup()
	orch, _, _ := setup(t, entries...)
	ctx := context.Background()
	_ = orch.MountDisk(ctx, drives.DriveA, entries[0].ID)

	for range len(entries) {
		if _, err := orch.RotateGroup(ctx, drives.DriveA, +1); err != nil {
			t.Fatalf("RotateGroup: %v", err)
		}
	}
	if id, _ := orch.Resolve(drives.DriveA); id != entries[0].ID {
		t.Fatalf("after full cycle resolved %q", id)
	}

	res, err := orch.RotateGroup(ctx, drives.DriveA, -1)
	if err != nil || res.To != entries[2].ID {
		t.Fatalf("rotate -1 from first = %+v, %v", res, err)
	}
	res, _ = orch.RotateGroup(ctx, drives.DriveA, +1)
	if res.To != entries[0].ID {
		t.Fatalf("rotate +1 did not invert -1: %+v", res)
	}
}

func TestRotateStaysWithinLocationAndFolder(t *testing.T) {
	entries := []diskentry.Entry{
		disk(diskentry.LocationUltimate, "/Usb0/Zak/Zak1.d64", "Zak", diskentry.IntPtr(0)),
		disk(diskentry.LocationUltimate, "/Usb0/Zak/Zak2.d64", "Zak", diskentry.IntPtr(1)),
		disk(diskentry.LocationLocal, "/home/u/Zak/Zak1.d64", "Zak", diskentry.IntPtr(0)),
		disk(diskentry.LocationLocal, "/home/u/Zak/Zak2.d64", "Zak", diskentry.IntPtr(1)),
	}
	orch, _, api := setup(t, entries...)
	ctx := context.Background()
	_ = orch.MountDisk(ctx, drives.DriveA, entries[0].ID)

	want := []string{entries[1].ID, entries[0].ID, entries[1].ID}
	for i, id := range want {
		res, err := orch.RotateGroup(ctx, drives.DriveA, +1)
		if err != nil || res.To != id {
			t.Fatalf("rotation %d = %+v, %v; want %s", i, res, err, id)
		}
	}
	for _, call := range api.Calls() {
		if call.Uploaded != nil || !strings.HasPrefix(call.Image, "/Usb0/Zak/") {
			t.Fatalf("rotation left the device set: %+v", call)
		}
	}
}

func TestRotateNoOpWithoutGroup(t *testing.T) {
	solo := disk(diskentry.LocationUltimate, "/Usb0/Elite.d64", "", nil)
	single := disk(diskentry.LocationUltimate, "/Usb0/Lone.d64", "Lone", diskentry.IntPtr(0))
	orch, _, api := setup(t, solo, single)
	ctx := context.Background()

	for _, id := range []string{solo.ID, single.ID} {
		_ = orch.MountDisk(ctx, drives.DriveA, id)
		api.Reset()
		res, err := orch.RotateGroup(ctx, drives.DriveA, +1)
		if err != nil || !res.Skipped {
			t.Fatalf("%s: rotate = %+v, %v", id, res, err)
		}
		if len(api.Calls()) != 0 {
			t.Fatalf("%s: rotate issued %+v", id, api.Calls())
		}
	}

	res, _ := orch.RotateGroup(ctx, drives.DriveB, +1)
	if !res.Skipped {
		t.Fatal("rotating an empty drive must be a no-op")
	}
}

func TestRotationOrder(t *testing.T) {
	a := disk(diskentry.LocationLocal, "/a.d64", "g", nil)
	b := disk(diskentry.LocationLocal, "/b.d64", "g", diskentry.IntPtr(1))
	c := disk(diskentry.LocationLocal, "/c.d64", "g", diskentry.IntPtr(0))
	d := disk(diskentry.LocationLocal, "/d.d64", "g", diskentry.IntPtr(1))
	d.Name = "0-first-by-name"

	got := mount.RotationOrder([]diskentry.Entry{a, b, c, d})
	want := []string{c.ID, d.ID, b.ID, a.ID}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestDeleteMountedDiskEjectsOnce(t *testing.T) {
	entries := zakGroup()
	orch, store, api := setup(t, entries...)
	ctx := context.Background()
	target := entries[0].ID
	_ = store.SetHandle(target, testsupport.StaticHandle{FileName: "Zak1.d64"})
	store.Select(target)
	_ = orch.MountDisk(ctx, drives.DriveA, target)
	api.Reset()

	res := orch.DeleteDisk(ctx, target)
	if !res.Removed || len(res.Ejected) != 1 || res.Ejected[0] != drives.DriveA {
		t.Fatalf("DeleteResult = %+v", res)
	}
	if api.Count("unmount", drives.DriveA) != 1 || api.Count("unmount", drives.DriveB) != 0 {
		t.Fatalf("calls = %+v", api.Calls())
	}
	if _, ok := store.Disk(target); ok {
		t.Fatal("disk still cataloged")
	}
	if _, ok := store.Handle(target); ok {
		t.Fatal("handle still present")
	}
	if store.IsSelected(target) {
		t.Fatal("selection still holds deleted disk")
	}
	if !orch.Override(drives.DriveA).IsEjected() {
		t.Fatalf("override = %s", orch.Override(drives.DriveA))
	}
}

func TestDeleteProceedsWhenEjectFails(t *testing.T) {
	entries := zakGroup()
	orch, store, api := setup(t, entries...)
	ctx := context.Background()
	_ = orch.MountDisk(ctx, drives.DriveB, entries[1].ID)
	api.FailUnmount(drives.DriveB, errors.New("unreachable"))

	res := orch.DeleteDisk(ctx, entries[1].ID)
	if !res.Removed || len(res.EjectFailures) != 1 {
		t.Fatalf("DeleteResult = %+v", res)
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d", store.Len())
	}
}

func TestBulkDeleteEjectsEachDriveOnce(t *testing.T) {
	entries := zakGroup()
	orch, store, api := setup(t, entries...)
	ctx := context.Background()
	_ = orch.MountDisk(ctx, drives.DriveA, entries[0].ID)
	_ = orch.MountDisk(ctx, drives.DriveB, entries[1].ID)
	api.Reset()

	res := orch.BulkDelete(ctx, []string{entries[0].ID, entries[1].ID, entries[0].ID})
	if res.Requested != 2 || res.Deleted != 2 || res.Ejected != 2 || res.EjectFailures != 0 {
		t.Fatalf("BulkResult = %+v", res)
	}
	if api.Count("unmount", drives.DriveA) != 1 || api.Count("unmount", drives.DriveB) != 1 {
		t.Fatalf("calls = %+v", api.Calls())
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d", store.Len())
	}
}

func TestReconcileClearsConfirmedOverridesOnly(t *testing.T) {
	entries := zakGroup()
	orch, _, _ := setup(t, entries...)
	ctx := context.Background()
	_ = orch.MountDisk(ctx, drives.DriveA, entries[1].ID)
	_ = orch.EjectDrive(ctx, drives.DriveB)

	stale := drives.Snapshot{
		A: drives.RemoteDrive{ImagePath: "/Usb0/Zak", ImageFile: "Zak1.d64"},
		B: drives.RemoteDrive{ImagePath: "/Usb0/Zak", ImageFile: "Zak3.d64"},
	}
	if cleared := orch.Reconcile(stale); len(cleared) != 0 {
		t.Fatalf("stale snapshot cleared %v", cleared)
	}
	if id, _ := orch.Resolve(drives.DriveB); id != "" {
		t.Fatalf("eject override lost: %q", id)
	}

	fresh := drives.Snapshot{A: drives.RemoteDrive{ImagePath: "/Usb0/Zak", ImageFile: "Zak2.d64"}}
	cleared := orch.Reconcile(fresh)
	if len(cleared) != 2 {
		t.Fatalf("cleared = %v", cleared)
	}
	if orch.Override(drives.DriveA).IsSet() || orch.Override(drives.DriveB).IsSet() {
		t.Fatal("overrides still set")
	}
	if id, _ := orch.Resolve(drives.DriveA); id != entries[1].ID {
		t.Fatalf("remote resolution = %q", id)
	}
}

func TestClearOverride(t *testing.T) {
	entries := zakGroup()
	orch, _, _ := setup(t, entries...)
	_ = orch.EjectDrive(context.Background(), drives.DriveA)
	orch.ClearOverride(drives.DriveA)
	if orch.Override(drives.DriveA).IsSet() {
		t.Fatal("override survived ClearOverride")
	}
}
