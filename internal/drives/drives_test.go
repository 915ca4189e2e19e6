package drives_test

import (
	"errors"
	"testing"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/library"
)

func catalog(t *testing.T) *library.Store {
	t.Helper()
	store := library.New("dev")
	store.AddDisks([]diskentry.Entry{
		diskentry.New(diskentry.Fields{Path: "/Usb0/Games/Zak1.d64", Location: diskentry.LocationUltimate}),
		diskentry.New(diskentry.Fields{Path: "/Usb0/Games/Zak1.d64", Location: diskentry.LocationLocal}),
	}, nil)
	return store
}

func TestResolvePrecedence(t *testing.T) {
	cat := catalog(t)
	stale := drives.Snapshot{A: drives.RemoteDrive{Enabled: true, ImagePath: "/Usb0/Games/", ImageFile: "Zak1.d64"}}

	tests := []struct {
		name     string
		snap     drives.Snapshot
		override drives.Override
		wantID   string
		wantOK   bool
	}{
		{"ejected beats remote image", stale, drives.Ejected(), "", true},
		{"mounted beats remote image", stale, drives.Mounted("local:/x.d64"), "local:/x.d64", true},
		{"unset without remote image", drives.Snapshot{}, drives.Unset(), "", true},
		{"unset matches ultimate entry", stale, drives.Unset(), "ultimate:/Usb0/Games/Zak1.d64", true},
		{
			"unset with unknown image",
			drives.Snapshot{A: drives.RemoteDrive{ImagePath: "/Usb1", ImageFile: "other.d64"}},
			drives.Unset(), "", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := drives.Resolve(drives.DriveA, tt.snap, tt.override, cat)
			if id != tt.wantID || ok != tt.wantOK {
				t.Fatalf("Resolve = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestResolveUsesRequestedDrive(t *testing.T) {
	snap := drives.Snapshot{B: drives.RemoteDrive{ImagePath: "/Usb0/Games", ImageFile: "Zak1.d64"}}
	if id, _ := drives.Resolve(drives.DriveA, snap, drives.Unset(), catalog(t)); id != "" {
		t.Fatalf("drive a resolved %q", id)
	}
	if id, _ := drives.Resolve(drives.DriveB, snap, drives.Unset(), catalog(t)); id != "ultimate:/Usb0/Games/Zak1.d64" {
		t.Fatalf("drive b resolved %q", id)
	}
}

func TestBuildViewLabels(t *testing.T) {
	cat := catalog(t)
	unknown := drives.Snapshot{A: drives.RemoteDrive{Enabled: true, BusID: 8, ImagePath: "/Usb1", ImageFile: "mystery.d64"}}

	v := drives.BuildView(drives.DriveA, unknown, drives.Unset(), cat, nil)
	if !v.Mounted || !v.UnknownImage || v.Label != "mystery.d64" || v.BusID != 8 {
		t.Fatalf("unknown image view = %+v", v)
	}

	v = drives.BuildView(drives.DriveA, unknown, drives.Mounted("ultimate:/Usb0/Games/Zak1.d64"), cat, errors.New("timeout"))
	if v.Label != "Zak1.d64" || v.UnknownImage || v.LastError != "timeout" {
		t.Fatalf("override view = %+v", v)
	}

	v = drives.BuildView(drives.DriveB, unknown, drives.Unset(), cat, nil)
	if v.Mounted || v.Label != "" {
		t.Fatalf("empty drive view = %+v", v)
	}
}

func TestParse(t *testing.T) {
	for _, raw := range []string{"a", "A", " drive-a ", "drivea"} {
		if d, err := drives.Parse(raw); err != nil || d != drives.DriveA {
			t.Fatalf("Parse(%q) = %q, %v", raw, d, err)
		}
	}
	if _, err := drives.Parse("c"); err == nil {
		t.Fatal("expected error for drive c")
	}
}
