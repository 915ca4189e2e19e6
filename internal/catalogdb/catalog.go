package catalogdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
	"ultidisk/internal/library"
)

// DeviceSummary describes one persisted catalog.
type DeviceSummary struct {
	DeviceID  string
	Disks     int
	UpdatedAt time.Time
}

// Load returns the persisted catalog for deviceID. A device that was never
// saved yields an empty snapshot.
func (s *Store) Load(ctx context.Context, deviceID string) (library.Snapshot, error) {
	ctx = ensureContext(ctx)
	snap := library.Snapshot{DeviceID: deviceID}

	err := s.db.QueryRowContext(ctx, "SELECT filter FROM devices WHERE device_id = ?", deviceID).Scan(&snap.Filter)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("load device %s: %w", deviceID, err)
	}

	disks, err := s.loadDisks(ctx, deviceID)
	if err != nil {
		return snap, err
	}
	snap.Disks = disks

	selRows, err := s.db.QueryContext(ctx, "SELECT disk_id FROM selections WHERE device_id = ? ORDER BY disk_id", deviceID)
	if err != nil {
		return snap, fmt.Errorf("load selections: %w", err)
	}
	defer selRows.Close()
	for selRows.Next() {
		var id string
		if err := selRows.Scan(&id); err != nil {
			return snap, fmt.Errorf("scan selection: %w", err)
		}
		snap.Selected = append(snap.Selected, id)
	}
	return snap, selRows.Err()
}

func (s *Store) loadDisks(ctx context.Context, deviceID string) ([]diskentry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, location, path, name, group_key, import_order, size_bytes,
		modified_at, local_uri, local_tree_uri, imported_at
		FROM disks WHERE device_id = ? ORDER BY id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load disks: %w", err)
	}
	defer rows.Close()

	var out []diskentry.Entry
	for rows.Next() {
		e, err := scanDisk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disks: %w", err)
	}
	return out, nil
}

func scanDisk(rows *sql.Rows) (diskentry.Entry, error) {
	var (
		e                   diskentry.Entry
		location            string
		group               sql.NullString
		order               sql.NullInt64
		modified            sql.NullString
		localURI, localTree sql.NullString
		imported            string
	)
	if err := rows.Scan(&e.ID, &location, &e.Path, &e.Name, &group, &order, &e.SizeBytes,
		&modified, &localURI, &localTree, &imported); err != nil {
		return e, fmt.Errorf("scan disk: %w", err)
	}
	e.Location = diskentry.Location(location)
	if group.Valid {
		e.Group = diskentry.StringPtr(group.String)
	}
	if order.Valid {
		e.ImportOrder = diskentry.IntPtr(int(order.Int64))
	}
	e.ModifiedAt = parseTime(modified.String)
	e.LocalURI = localURI.String
	e.LocalTreeURI = localTree.String
	e.ImportedAt = parseTime(imported)
	return e, nil
}

// Save replaces the persisted catalog of deviceID with snap.
func (s *Store) Save(ctx context.Context, deviceID string, snap library.Snapshot) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertDevice(ctx, tx, deviceID, snap.Filter, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM disks WHERE device_id = ?", deviceID); err != nil {
			return fmt.Errorf("clear disks: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO disks (device_id, id, location, path, name, group_key,
			import_order, size_bytes, modified_at, local_uri, local_tree_uri, imported_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare disk insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range snap.Disks {
			if _, err := stmt.ExecContext(ctx, deviceID, e.ID, string(e.Location), e.Path, e.Name,
				nullString(e.Group), nullInt(e.ImportOrder), e.SizeBytes, formatTime(e.ModifiedAt),
				e.LocalURI, e.LocalTreeURI, formatTime(e.ImportedAt)); err != nil {
				return fmt.Errorf("insert disk %s: %w", e.ID, err)
			}
		}
		for _, id := range snap.Selected {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO selections (device_id, disk_id) SELECT ?, id FROM disks WHERE device_id = ? AND id = ?",
				deviceID, deviceID, id); err != nil {
				return fmt.Errorf("insert selection %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save catalog %s: %w", deviceID, err)
	}
	return nil
}

// LoadOverrides returns the persisted drive overrides of deviceID.
func (s *Store) LoadOverrides(ctx context.Context, deviceID string) (map[drives.Drive]drives.Override, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT drive, disk_id FROM drive_overrides WHERE device_id = ?", deviceID)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[drives.Drive]drives.Override)
	for rows.Next() {
		var drive, diskID string
		if err := rows.Scan(&drive, &diskID); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		d, err := drives.Parse(drive)
		if err != nil {
			continue
		}
		if diskID == "" {
			out[d] = drives.Ejected()
		} else {
			out[d] = drives.Mounted(diskID)
		}
	}
	return out, rows.Err()
}

// SaveOverrides replaces the persisted drive overrides of deviceID. Unset
// overrides are not stored.
func (s *Store) SaveOverrides(ctx context.Context, deviceID string, overrides map[drives.Drive]drives.Override) error {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO devices (device_id, filter, updated_at) VALUES (?, '', ?)", deviceID, now); err != nil {
			return fmt.Errorf("ensure device: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM drive_overrides WHERE device_id = ?", deviceID); err != nil {
			return fmt.Errorf("clear overrides: %w", err)
		}
		for d, ov := range overrides {
			if !ov.IsSet() {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO drive_overrides (device_id, drive, disk_id, updated_at) VALUES (?, ?, ?, ?)",
				deviceID, string(d), ov.DiskID(), now); err != nil {
				return fmt.Errorf("insert override %s: %w", d, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save overrides %s: %w", deviceID, err)
	}
	return nil
}

// Devices lists every persisted catalog.
func (s *Store) Devices(ctx context.Context) ([]DeviceSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT d.device_id, d.updated_at, COUNT(k.id)
		FROM devices d LEFT JOIN disks k ON k.device_id = d.device_id
		GROUP BY d.device_id ORDER BY d.device_id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()
	var out []DeviceSummary
	for rows.Next() {
		var (
			summary DeviceSummary
			updated string
		)
		if err := rows.Scan(&summary.DeviceID, &updated, &summary.Disks); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		summary.UpdatedAt = parseTime(updated)
		out = append(out, summary)
	}
	return out, rows.Err()
}

func upsertDevice(ctx context.Context, tx *sql.Tx, deviceID, filter, now string) error {
	if strings.TrimSpace(deviceID) == "" {
		return fmt.Errorf("device id is required")
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO devices (device_id, filter, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET filter = excluded.filter, updated_at = excluded.updated_at`,
		deviceID, filter, now)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
