package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/library"
	"ultidisk/internal/logging"
	"ultidisk/internal/mount"
	"ultidisk/internal/notifications"
)

// Catalog persists library and override state between invocations.
type Catalog interface {
	Load(ctx context.Context, deviceID string) (library.Snapshot, error)
	Save(ctx context.Context, deviceID string, snap library.Snapshot) error
	LoadOverrides(ctx context.Context, deviceID string) (map[drives.Drive]drives.Override, error)
	SaveOverrides(ctx context.Context, deviceID string, overrides map[drives.Drive]drives.Override) error
}

// PowerAPI toggles drive power on the device.
type PowerAPI interface {
	SetPower(ctx context.Context, d drives.Drive, on bool) error
}

// Options wires a Service.
type Options struct {
	DeviceID         string
	Drives           mount.DriveAPI
	Power            PowerAPI
	Catalog          Catalog
	Notifier         notifications.Service
	Logger           *slog.Logger
	ScanWorkers      int
	ProgressInterval time.Duration
	Reopen           mount.ReopenFunc
}

// Service is the workflow surface the CLI drives. Every mutating operation
// publishes exactly one notification.
type Service struct {
	deviceID         string
	store            *library.Store
	orch             *mount.Orchestrator
	power            PowerAPI
	catalog          Catalog
	notifier         notifications.Service
	logger           *slog.Logger
	scanWorkers      int
	progressInterval time.Duration
}

// NewService constructs a Service with an empty catalog. Call Load to
// restore persisted state.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldDeviceID, opts.DeviceID))
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	store := library.New(opts.DeviceID)
	return &Service{
		deviceID: opts.DeviceID,
		store:    store,
		orch: mount.New(opts.Drives, store, mount.Options{
			Logger: logger,
			Reopen: opts.Reopen,
		}),
		power:            opts.Power,
		catalog:          opts.Catalog,
		notifier:         notifier,
		logger:           logging.NewComponentLogger(logger, "api"),
		scanWorkers:      opts.ScanWorkers,
		progressInterval: opts.ProgressInterval,
	}
}

// DeviceID returns the identity the catalog is keyed by.
func (s *Service) DeviceID() string {
	return s.deviceID
}

// Library exposes the in-memory catalog for read-only rendering.
func (s *Service) Library() *library.Store {
	return s.store
}

// Load restores the catalog and drive overrides from the persistence
// collaborator.
func (s *Service) Load(ctx context.Context) error {
	if s.catalog == nil {
		return nil
	}
	snap, err := s.catalog.Load(ctx, s.deviceID)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	s.store.Restore(snap)
	overrides, err := s.catalog.LoadOverrides(ctx, s.deviceID)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	s.orch.RestoreOverrides(overrides)
	return nil
}

// persist writes catalog and override state. It ignores cancellation so a
// completed mutation is never lost to an interrupted caller.
func (s *Service) persist(ctx context.Context) error {
	if s.catalog == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.catalog.Save(ctx, s.deviceID, s.store.Snapshot()); err != nil {
		return err
	}
	return s.catalog.SaveOverrides(ctx, s.deviceID, s.orch.Overrides())
}

func (s *Service) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(s.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operation result was not delivered"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "operation failed", "operation_failed",
		logging.String("operation", op),
		logging.Error(err),
	)
	s.notify(ctx, notifications.EventOperationFailed, notifications.Payload{
		"operation": op,
		"error":     err.Error(),
	})
	return err
}

// commit persists and reports a failed save as the operation's failure.
func (s *Service) commit(ctx context.Context, op string) error {
	if err := s.persist(ctx); err != nil {
		return s.fail(ctx, op, fmt.Errorf("persist catalog: %w", err))
	}
	return nil
}

func (s *Service) diskLabel(id string) string {
	if e, ok := s.store.Disk(id); ok {
		return e.Name
	}
	return id
}

// Rename sets a disk's display name. An empty name restores the derived one.
func (s *Service) Rename(ctx context.Context, id, name string) error {
	if err := s.store.UpdateDiskName(id, name); err != nil {
		return s.fail(ctx, "rename", fmt.Errorf("rename %s: %w", id, err))
	}
	if err := s.commit(ctx, "rename"); err != nil {
		return err
	}
	s.notify(ctx, notifications.EventDiskUpdated, notifications.Payload{"disk": s.diskLabel(id), "change": "renamed"})
	return nil
}

// Regroup sets or clears a disk's rotation group.
func (s *Service) Regroup(ctx context.Context, id string, group *string) error {
	if err := s.store.UpdateDiskGroup(id, group); err != nil {
		return s.fail(ctx, "regroup", fmt.Errorf("regroup %s: %w", id, err))
	}
	if err := s.commit(ctx, "regroup"); err != nil {
		return err
	}
	change := "group cleared"
	if e, ok := s.store.Disk(id); ok && e.Group != nil {
		change = "group " + *e.Group
	}
	s.notify(ctx, notifications.EventDiskUpdated, notifications.Payload{"disk": s.diskLabel(id), "change": change})
	return nil
}

// SetFilter replaces the catalog filter text.
func (s *Service) SetFilter(ctx context.Context, text string) error {
	s.store.SetFilter(text)
	return s.persist(ctx)
}

// Select adds ids to the selection.
func (s *Service) Select(ctx context.Context, ids ...string) error {
	s.store.Select(ids...)
	return s.persist(ctx)
}

// Deselect removes ids from the selection.
func (s *Service) Deselect(ctx context.Context, ids ...string) error {
	s.store.Deselect(ids...)
	return s.persist(ctx)
}

// ToggleSelection flips one id and reports whether it is now selected.
func (s *Service) ToggleSelection(ctx context.Context, id string) (bool, error) {
	selected := s.store.ToggleSelection(id)
	return selected, s.persist(ctx)
}

// SelectAll selects the filtered view.
func (s *Service) SelectAll(ctx context.Context) (int, error) {
	n := s.store.SelectAll()
	return n, s.persist(ctx)
}

// ClearSelection empties the selection.
func (s *Service) ClearSelection(ctx context.Context) error {
	s.store.ClearSelection()
	return s.persist(ctx)
}

// Disk returns one cataloged disk.
func (s *Service) Disk(id string) (diskentry.Entry, error) {
	e, ok := s.store.Disk(id)
	if !ok {
		return diskentry.Entry{}, fmt.Errorf("%s: %w", id, library.ErrUnknownDisk)
	}
	return e, nil
}

// ResolveDiskRef maps a user reference (full id, path or unique display
// name) to a disk id.
func (s *Service) ResolveDiskRef(ref string) (string, error) {
	if _, ok := s.store.Disk(ref); ok {
		return ref, nil
	}
	var matches []string
	normalized := diskentry.NormalizePath(ref)
	for _, e := range s.store.Disks() {
		if e.Path == normalized || e.Name == ref {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: %w", ref, library.ErrUnknownDisk)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches); use the full id", ref, len(matches))
	}
}

// ErrNoPowerControl reports a Service built without a PowerAPI.
var ErrNoPowerControl = errors.New("drive power control unavailable")
