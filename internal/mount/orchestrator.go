package mount

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/library"
	"ultidisk/internal/logging"
	"ultidisk/internal/source"
)

// DriveAPI is the device's drive control surface.
type DriveAPI interface {
	// Mount inserts image into drive. file is set for local images, whose
	// bytes must be transferred to the device.
	Mount(ctx context.Context, drive drives.Drive, image string, file diskentry.Handle) error
	// Unmount ejects whatever drive holds. Ejecting an empty drive succeeds.
	Unmount(ctx context.Context, drive drives.Drive) error
}

// ReopenFunc re-acquires a runtime handle for a local entry.
type ReopenFunc func(entry diskentry.Entry) (diskentry.Handle, bool)

// Options configures an Orchestrator.
type Options struct {
	Logger *slog.Logger
	// Reopen defaults to opening LocalURI from the local filesystem.
	Reopen ReopenFunc
	// BulkConcurrency bounds concurrent deletes in BulkDelete.
	BulkConcurrency int
}

// Orchestrator coordinates drive commands with catalog and override state.
type Orchestrator struct {
	api    DriveAPI
	store  *library.Store
	logger *slog.Logger
	reopen ReopenFunc
	limit  int

	driveLocks map[drives.Drive]*sync.Mutex

	mu        sync.RWMutex
	snapshot  drives.Snapshot
	overrides map[drives.Drive]drives.Override
	lastErr   map[drives.Drive]error
}

// New returns an Orchestrator over api and store.
func New(api DriveAPI, store *library.Store, opts Options) *Orchestrator {
	if opts.Reopen == nil {
		opts.Reopen = reopenLocal
	}
	if opts.BulkConcurrency <= 0 {
		opts.BulkConcurrency = 4
	}
	o := &Orchestrator{
		api:        api,
		store:      store,
		logger:     logging.NewComponentLogger(opts.Logger, "mount"),
		reopen:     opts.Reopen,
		limit:      opts.BulkConcurrency,
		driveLocks: make(map[drives.Drive]*sync.Mutex, len(drives.All)),
		overrides:  make(map[drives.Drive]drives.Override, len(drives.All)),
		lastErr:    make(map[drives.Drive]error, len(drives.All)),
	}
	for _, d := range drives.All {
		o.driveLocks[d] = &sync.Mutex{}
	}
	return o
}

func reopenLocal(entry diskentry.Entry) (diskentry.Handle, bool) {
	if entry.LocalURI == "" {
		return nil, false
	}
	return source.NewFileHandle(entry.LocalURI), true
}

func (o *Orchestrator) lock(d drives.Drive) func() {
	m, ok := o.driveLocks[d]
	if !ok {
		return func() {}
	}
	m.Lock()
	return m.Unlock
}

func validDrive(d drives.Drive) error {
	if d != drives.DriveA && d != drives.DriveB {
		return fmt.Errorf("unknown drive %q", d)
	}
	return nil
}

// Resolve reports which disk d holds according to the override and the last
// remote snapshot.
func (o *Orchestrator) Resolve(d drives.Drive) (string, bool) {
	o.mu.RLock()
	snap := o.snapshot
	override := o.overrides[d]
	o.mu.RUnlock()
	return drives.Resolve(d, snap, override, o.store)
}

// Views returns the read model for both drives.
func (o *Orchestrator) Views() []drives.View {
	o.mu.RLock()
	snap := o.snapshot
	overrides := make(map[drives.Drive]drives.Override, len(o.overrides))
	for k, v := range o.overrides {
		overrides[k] = v
	}
	errs := make(map[drives.Drive]error, len(o.lastErr))
	for k, v := range o.lastErr {
		errs[k] = v
	}
	o.mu.RUnlock()

	views := make([]drives.View, 0, len(drives.All))
	for _, d := range drives.All {
		views = append(views, drives.BuildView(d, snap, overrides[d], o.store, errs[d]))
	}
	return views
}

// Override returns the local override of d.
func (o *Orchestrator) Override(d drives.Drive) drives.Override {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.overrides[d]
}

// Overrides returns every set override, for persistence.
func (o *Orchestrator) Overrides() map[drives.Drive]drives.Override {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[drives.Drive]drives.Override, len(o.overrides))
	for d, ov := range o.overrides {
		if ov.IsSet() {
			out[d] = ov
		}
	}
	return out
}

// RestoreOverrides replaces override state with persisted values.
func (o *Orchestrator) RestoreOverrides(in map[drives.Drive]drives.Override) {
	o.mu.Lock()
	defer o.mu.Unlock()
	clear(o.overrides)
	for d, ov := range in {
		if validDrive(d) == nil && ov.IsSet() {
			o.overrides[d] = ov
		}
	}
}

// LastError returns the most recent command failure on d.
func (o *Orchestrator) LastError(d drives.Drive) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr[d]
}

// ClearOverride drops the override of d so remote state is authoritative
// again. Used after out-of-band changes such as drive power toggles.
func (o *Orchestrator) ClearOverride(d drives.Drive) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.overrides, d)
}

// Reconcile stores a fresh remote snapshot and clears overrides it confirms.
// It returns the drives whose override was cleared.
func (o *Orchestrator) Reconcile(snap drives.Snapshot) []drives.Drive {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = snap

	var cleared []drives.Drive
	for _, d := range drives.All {
		ov, ok := o.overrides[d]
		if !ok || !ov.IsSet() {
			continue
		}
		remoteID, known := drives.Resolve(d, snap, drives.Unset(), o.store)
		confirmed := false
		switch {
		case ov.IsEjected():
			confirmed = !snap.Drive(d).HasImage()
		case known:
			confirmed = remoteID == ov.DiskID()
		}
		if confirmed {
			delete(o.overrides, d)
			cleared = append(cleared, d)
		}
	}
	return cleared
}

// Snapshot returns the last remote snapshot.
func (o *Orchestrator) Snapshot() drives.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

func (o *Orchestrator) succeeded(d drives.Drive, ov drives.Override) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides[d] = ov
	delete(o.lastErr, d)
}

func (o *Orchestrator) failed(d drives.Drive, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr[d] = err
}

// MountDisk inserts a cataloged disk into d. Local disks are uploaded through
// their runtime handle.
func (o *Orchestrator) MountDisk(ctx context.Context, d drives.Drive, diskID string) error {
	if err := validDrive(d); err != nil {
		return err
	}
	defer o.lock(d)()
	return o.mountLocked(ctx, d, diskID)
}

func (o *Orchestrator) mountLocked(ctx context.Context, d drives.Drive, diskID string) error {
	entry, ok := o.store.Disk(diskID)
	if !ok {
		return fmt.Errorf("mount %s: %w", diskID, library.ErrUnknownDisk)
	}
	logger := logging.WithContext(ctx, o.logger).With(
		logging.String(logging.FieldDrive, string(d)),
		logging.String(logging.FieldDiskID, diskID),
	)

	var handle diskentry.Handle
	if entry.Location == diskentry.LocationLocal {
		handle, ok = o.store.Handle(diskID)
		if !ok {
			handle, ok = o.reopen(entry)
			if !ok {
				err := &DriveError{Op: opMount, Drive: d, Err: fmt.Errorf("%s: %w", entry.Path, ErrNoLocalFile)}
				o.failed(d, err)
				return err
			}
			_ = o.store.SetHandle(diskID, handle)
		}
	}

	if err := o.api.Mount(ctx, d, entry.Path, handle); err != nil {
		derr := &DriveError{Op: opMount, Drive: d, Err: err}
		o.failed(d, derr)
		logger.Debug("mount failed", logging.Error(err))
		return derr
	}
	o.succeeded(d, drives.Mounted(diskID))
	logger.Info("disk mounted",
		logging.String("name", entry.Name),
		logging.Int64("size_bytes", entry.SizeBytes),
	)
	return nil
}

// EjectDrive removes whatever d holds.
func (o *Orchestrator) EjectDrive(ctx context.Context, d drives.Drive) error {
	if err := validDrive(d); err != nil {
		return err
	}
	defer o.lock(d)()
	return o.ejectLocked(ctx, d)
}

func (o *Orchestrator) ejectLocked(ctx context.Context, d drives.Drive) error {
	if err := o.api.Unmount(ctx, d); err != nil {
		derr := &DriveError{Op: opUnmount, Drive: d, Err: err}
		o.failed(d, derr)
		return derr
	}
	o.succeeded(d, drives.Ejected())
	logging.WithContext(ctx, o.logger).Info("drive ejected", logging.String(logging.FieldDrive, string(d)))
	return nil
}

// RotateResult describes a rotation attempt.
type RotateResult struct {
	From    string
	To      string
	Skipped bool
	Reason  string
}

// RotateGroup mounts the next (direction > 0) or previous disk of the group
// the current disk in d belongs to. Without a current disk, a group, or a
// second member it does nothing and issues no command.
func (o *Orchestrator) RotateGroup(ctx context.Context, d drives.Drive, direction int) (RotateResult, error) {
	if err := validDrive(d); err != nil {
		return RotateResult{}, err
	}
	defer o.lock(d)()

	current, _ := o.Resolve(d)
	if current == "" {
		return RotateResult{Skipped: true, Reason: "no cataloged disk mounted"}, nil
	}
	entry, ok := o.store.Disk(current)
	if !ok || entry.Group == nil {
		return RotateResult{From: current, Skipped: true, Reason: "disk has no group"}, nil
	}
	members := RotationOrder(o.store.GroupMembers(entry))
	if len(members) < 2 {
		return RotateResult{From: current, Skipped: true, Reason: "group has a single disk"}, nil
	}

	idx := slices.IndexFunc(members, func(e diskentry.Entry) bool { return e.ID == current })
	step := 1
	if direction < 0 {
		step = -1
	}
	n := len(members)
	next := members[((idx+step)%n+n)%n]

	if err := o.mountLocked(ctx, d, next.ID); err != nil {
		return RotateResult{From: current, To: next.ID}, err
	}
	return RotateResult{From: current, To: next.ID}, nil
}

// RotationOrder sorts group members by import order (unset last), then name,
// then id.
func RotationOrder(members []diskentry.Entry) []diskentry.Entry {
	out := slices.Clone(members)
	slices.SortStableFunc(out, func(a, b diskentry.Entry) int {
		switch {
		case a.ImportOrder != nil && b.ImportOrder == nil:
			return -1
		case a.ImportOrder == nil && b.ImportOrder != nil:
			return 1
		case a.ImportOrder != nil && b.ImportOrder != nil:
			if c := cmp.Compare(*a.ImportOrder, *b.ImportOrder); c != 0 {
				return c
			}
		}
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
	return out
}

// DeleteResult describes one disk deletion.
type DeleteResult struct {
	DiskID        string
	Removed       bool
	Ejected       []drives.Drive
	EjectFailures []error
}

// DeleteDisk ejects the disk from every drive that holds it, then removes it
// from the catalog. Eject failures are logged and do not block removal.
func (o *Orchestrator) DeleteDisk(ctx context.Context, diskID string) DeleteResult {
	res := DeleteResult{DiskID: diskID}
	logger := logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldDiskID, diskID))

	for _, d := range drives.All {
		unlock := o.lock(d)
		if id, _ := o.Resolve(d); id == diskID {
			if err := o.ejectLocked(ctx, d); err != nil {
				res.EjectFailures = append(res.EjectFailures, err)
				logging.WarnWithContext(logger, "eject before delete failed", "delete_eject_failed",
					logging.String(logging.FieldDrive, string(d)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "drive may still reference the deleted disk"),
					logging.String(logging.FieldErrorHint, "eject the drive manually or refresh status"),
				)
			} else {
				res.Ejected = append(res.Ejected, d)
			}
		}
		unlock()
	}

	res.Removed = o.store.RemoveDisk(diskID)
	logger.Info("disk deleted",
		logging.Bool("removed", res.Removed),
		logging.Int("ejected", len(res.Ejected)),
	)
	return res
}

// BulkResult summarizes a bulk delete.
type BulkResult struct {
	Requested     int
	Deleted       int
	Ejected       int
	EjectFailures int
	Results       []DeleteResult
}

// BulkDelete deletes every id concurrently and returns one summary.
func (o *Orchestrator) BulkDelete(ctx context.Context, ids []string) BulkResult {
	ids = compactIDs(ids)
	results := make([]DeleteResult, len(ids))

	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = o.DeleteDisk(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	summary := BulkResult{Requested: len(ids), Results: results}
	for _, r := range results {
		if r.Removed {
			summary.Deleted++
		}
		summary.Ejected += len(r.Ejected)
		summary.EjectFailures += len(r.EjectFailures)
	}
	return summary
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
