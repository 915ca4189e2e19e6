package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/grouping"
	"ultidisk/internal/logging"
	"ultidisk/internal/notifications"
	"ultidisk/internal/scanner"
	"ultidisk/internal/source"
)

// AddResult reports the outcome of adding disks from a source.
type AddResult struct {
	ScanID     string   `json:"scanId"`
	Source     string   `json:"source"`
	Candidates int      `json:"candidates"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Groups     []string `json:"groups,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	Empty      bool     `json:"empty"`
}

// AddDisksFromScan scans the selections on src, assigns rotation groups and
// merges the results into the catalog. A scan that finds no disk images is an
// outcome, reported through Empty, not an error. Once the scan completes the
// results are committed even if ctx is cancelled afterwards.
func (s *Service) AddDisksFromScan(ctx context.Context, src source.Source, selections []scanner.Selection, progress scanner.ProgressFunc) (AddResult, error) {
	scanID := uuid.NewString()
	ctx = logging.WithScanID(ctx, scanID)
	res := AddResult{ScanID: scanID, Source: src.ID()}
	logger := logging.WithContext(ctx, s.logger)

	scanned, err := scanner.Scan(ctx, src, selections, scanner.Options{
		Workers:          s.scanWorkers,
		ProgressInterval: s.progressInterval,
		Progress:         progress,
		Logger:           s.logger,
	})
	if errors.Is(err, scanner.ErrNoDiskFiles) {
		res.Empty = true
		s.notify(ctx, notifications.EventScanEmpty, notifications.Payload{"source": src.ID()})
		return res, nil
	}
	if err != nil {
		return res, s.fail(ctx, "scan", err)
	}

	candidates := grouping.Assign(scanned.Candidates)
	entries := grouping.Entries(src.Location(), candidates)

	var handles map[string]diskentry.Handle
	if provider, ok := src.(source.HandleProvider); ok && src.Location() == diskentry.LocationLocal {
		handles = make(map[string]diskentry.Handle, len(candidates))
		for i, c := range candidates {
			handles[entries[i].ID] = provider.Handle(c.Entry)
		}
	}

	added := s.store.AddDisks(entries, handles)
	res.Candidates = len(entries)
	res.Added = added.Added
	res.Updated = added.Updated
	res.IDs = added.IDs
	res.Groups = grouping.Groups(candidates)

	if err := s.commit(ctx, "scan"); err != nil {
		return res, err
	}
	logger.Info("disks added",
		logging.String(logging.FieldSource, src.ID()),
		logging.Int("added", res.Added),
		logging.Int("updated", res.Updated),
		logging.Any("groups", res.Groups),
	)
	s.notify(ctx, notifications.EventDisksAdded, notifications.Payload{
		"added":   res.Added,
		"updated": res.Updated,
		"source":  src.ID(),
	})
	return res, nil
}

// AddFile quick-adds a single disk image from src.
func (s *Service) AddFile(ctx context.Context, src source.Source, path string) (AddResult, error) {
	if !diskentry.IsDiskImagePath(path) {
		return AddResult{}, s.fail(ctx, "add file", fmt.Errorf("%s is not a disk image", path))
	}
	return s.AddDisksFromScan(ctx, src, []scanner.Selection{scanner.File(path)}, nil)
}
