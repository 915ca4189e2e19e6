package api

import (
	"context"
	"fmt"

	"ultidisk/internal/drives"
	"ultidisk/internal/mount"
	"ultidisk/internal/notifications"
)

// DriveViews returns the resolved read model for both drives.
func (s *Service) DriveViews() []drives.View {
	return s.orch.Views()
}

// Reconcile feeds a fresh drive-status poll into the resolver and persists
// overrides it confirmed.
func (s *Service) Reconcile(ctx context.Context, snap drives.Snapshot) error {
	if cleared := s.orch.Reconcile(snap); len(cleared) > 0 {
		return s.persist(ctx)
	}
	return nil
}

// MountDisk mounts a cataloged disk into drive d.
func (s *Service) MountDisk(ctx context.Context, d drives.Drive, diskID string) error {
	if err := s.orch.MountDisk(ctx, d, diskID); err != nil {
		_ = s.persist(ctx)
		return s.fail(ctx, "mount", err)
	}
	if err := s.commit(ctx, "mount"); err != nil {
		return err
	}
	s.notify(ctx, notifications.EventDiskMounted, notifications.Payload{"disk": s.diskLabel(diskID), "drive": string(d)})
	return nil
}

// EjectDrive ejects drive d.
func (s *Service) EjectDrive(ctx context.Context, d drives.Drive) error {
	if err := s.orch.EjectDrive(ctx, d); err != nil {
		return s.fail(ctx, "eject", err)
	}
	if err := s.commit(ctx, "eject"); err != nil {
		return err
	}
	s.notify(ctx, notifications.EventDriveEjected, notifications.Payload{"drive": string(d)})
	return nil
}

// RotateGroup advances drive d through its disk's group.
func (s *Service) RotateGroup(ctx context.Context, d drives.Drive, direction int) (mount.RotateResult, error) {
	res, err := s.orch.RotateGroup(ctx, d, direction)
	if err != nil {
		return res, s.fail(ctx, "rotate", err)
	}
	if res.Skipped {
		s.notify(ctx, notifications.EventGroupRotated, notifications.Payload{"drive": string(d), "skipped": res.Reason})
		return res, nil
	}
	if err := s.commit(ctx, "rotate"); err != nil {
		return res, err
	}
	payload := notifications.Payload{"drive": string(d), "disk": s.diskLabel(res.To)}
	if e, ok := s.store.Disk(res.To); ok && e.Group != nil {
		payload["group"] = *e.Group
	}
	s.notify(ctx, notifications.EventGroupRotated, payload)
	return res, nil
}

// DeleteDisk ejects a disk from any drive holding it and removes it.
func (s *Service) DeleteDisk(ctx context.Context, diskID string) (mount.DeleteResult, error) {
	label := s.diskLabel(diskID)
	res := s.orch.DeleteDisk(ctx, diskID)
	if err := s.commit(ctx, "delete"); err != nil {
		return res, err
	}
	if !res.Removed {
		return res, s.fail(ctx, "delete", fmt.Errorf("%s: not in catalog", diskID))
	}
	s.notify(ctx, notifications.EventDiskDeleted, notifications.Payload{
		"disk":           label,
		"eject_failures": len(res.EjectFailures),
	})
	return res, nil
}

// BulkDelete deletes ids concurrently and publishes a single summary.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (mount.BulkResult, error) {
	res := s.orch.BulkDelete(ctx, ids)
	if err := s.commit(ctx, "bulk delete"); err != nil {
		return res, err
	}
	s.notify(ctx, notifications.EventBulkDeleted, notifications.Payload{
		"requested":      res.Requested,
		"deleted":        res.Deleted,
		"eject_failures": res.EjectFailures,
	})
	return res, nil
}

// DeleteSelected bulk-deletes the current selection.
func (s *Service) DeleteSelected(ctx context.Context) (mount.BulkResult, error) {
	return s.BulkDelete(ctx, s.store.Selected())
}

// SetDrivePower switches drive d on or off. The override is cleared since the
// device state changed outside the orchestrator.
func (s *Service) SetDrivePower(ctx context.Context, d drives.Drive, on bool) error {
	if s.power == nil {
		return s.fail(ctx, "drive power", ErrNoPowerControl)
	}
	if err := s.power.SetPower(ctx, d, on); err != nil {
		return s.fail(ctx, "drive power", fmt.Errorf("drive %s: %w", d, err))
	}
	s.orch.ClearOverride(d)
	if err := s.commit(ctx, "drive power"); err != nil {
		return err
	}
	state := "off"
	if on {
		state = "on"
	}
	s.notify(ctx, notifications.EventDrivePower, notifications.Payload{"drive": string(d), "state": state})
	return nil
}
