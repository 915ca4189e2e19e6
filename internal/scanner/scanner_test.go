package scanner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/scanner"
	"ultidisk/internal/source"
	"ultidisk/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScanFindsDiskImagesSortedByPath(t *testing.T) {
	src := testsupport.NewMemorySource(diskentry.LocationLocal,
		"/games/Zak/Zak2.d64",
		"/games/Zak/Zak1.d64",
		"/games/notes.txt",
	)

	res, err := scanner.Scan(context.Background(), src, []scanner.Selection{scanner.Dir("/games")}, scanner.Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
	if res.Candidates[0].Path != "/games/Zak/Zak1.d64" || res.Candidates[1].Path != "/games/Zak/Zak2.d64" {
		t.Fatalf("unexpected order: %+v", res.Candidates)
	}
	if res.Processed != 3 {
		t.Fatalf("processed = %d, want 3", res.Processed)
	}
}

func TestScanListsEachDirectoryOnce(t *testing.T) {
	var files []string
	for i := range 5 {
		for j := range 4 {
			files = append(files, fmt.Sprintf("/root/d%d/s%d/disk%d.d64", i, j, j))
		}
	}
	src := testsupport.NewMemorySource(diskentry.LocationLocal, files...)
	src.SetDelay(time.Millisecond)

	selections := []scanner.Selection{scanner.Dir("/root"), scanner.Dir("/root/d1"), scanner.Dir("/root/d1/")}
	res, err := scanner.Scan(context.Background(), src, selections, scanner.Options{Workers: 4})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Candidates) != len(files) {
		t.Fatalf("candidates = %d, want %d", len(res.Candidates), len(files))
	}
	for _, dir := range []string{"/root", "/root/d1", "/root/d3/s2"} {
		if got := src.Calls(dir); got != 1 {
			t.Fatalf("%s listed %d times", dir, got)
		}
	}
}

func TestScanAbortsOnListingError(t *testing.T) {
	src := testsupport.NewMemorySource(diskentry.LocationUltimate,
		"/a/one.d64",
		"/b/two.d64",
		"/b/c/three.d64",
	)
	boom := errors.New("550 permission denied")
	src.FailOn("/b/c", boom)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	res, err := scanner.Scan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, scanner.Options{Workers: 2, Logger: logger})
	var listingErr *source.ListingError
	if !errors.As(err, &listingErr) {
		t.Fatalf("expected ListingError, got %v", err)
	}
	if listingErr.Path != "/b/c" || !errors.Is(err, boom) {
		t.Fatalf("unexpected error %+v", listingErr)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("partial results leaked: %+v", res.Candidates)
	}
	if line := logs.String(); !strings.Contains(line, `"level":"ERROR"`) || !strings.Contains(line, `"event_type":"scan_failed"`) {
		t.Fatalf("scan failure not logged as an error: %s", line)
	}
}

// peakSource records how many ListEntries calls run at once.
type peakSource struct {
	source.Source
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (p *peakSource) ListEntries(ctx context.Context, dir string) ([]source.Entry, error) {
	p.mu.Lock()
	p.inFlight++
	p.peak = max(p.peak, p.inFlight)
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()
	return p.Source.ListEntries(ctx, dir)
}

func (p *peakSource) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func TestScanBoundsConcurrentListings(t *testing.T) {
	var files []string
	for i := range 12 {
		files = append(files, fmt.Sprintf("/lib/d%02d/disk.d64", i))
	}
	tests := []struct {
		name    string
		workers int
		limit   int
	}{
		{"default", 0, scanner.DefaultWorkers},
		{"configured", 2, 2},
		{"single", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := testsupport.NewMemorySource(diskentry.LocationLocal, files...)
			mem.SetDelay(5 * time.Millisecond)
			src := &peakSource{Source: mem}

			res, err := scanner.Scan(context.Background(), src, []scanner.Selection{scanner.Dir("/lib")}, scanner.Options{Workers: tt.workers})
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(res.Candidates) != len(files) {
				t.Fatalf("candidates = %d, want %d", len(res.Candidates), len(files))
			}
			if peak := src.Peak(); peak > tt.limit || peak < 1 {
				t.Fatalf("peak concurrent listings = %d, limit %d", peak, tt.limit)
			}
		})
	}
}

func TestScanNoDiskFiles(t *testing.T) {
	src := testsupport.NewMemorySource(diskentry.LocationLocal, "/docs/readme.txt")
	_, err := scanner.Scan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, scanner.Options{})
	if !errors.Is(err, scanner.ErrNoDiskFiles) {
		t.Fatalf("expected ErrNoDiskFiles, got %v", err)
	}
}

func TestScanResolvesFileSelectionsThroughParent(t *testing.T) {
	src := testsupport.NewMemorySource(diskentry.LocationLocal, "/games/a.d64", "/games/b.d81", "/games/sub/c.d64")
	src.AddFile("/games/a.d64", 174848)

	res, err := scanner.Scan(context.Background(), src,
		[]scanner.Selection{scanner.File("/games/a.d64"), scanner.File("/games/b.d81")},
		scanner.Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
	if res.Candidates[0].SizeBytes != 174848 {
		t.Fatalf("metadata not taken from listing: %+v", res.Candidates[0])
	}
	if src.Calls("/games") != 1 {
		t.Fatalf("parent listed %d times", src.Calls("/games"))
	}
	if src.Calls("/games/sub") != 0 || src.Calls("/games/a.d64") != 0 {
		t.Fatal("file selections must not be traversed")
	}
}

func TestScanMissingFileSelection(t *testing.T) {
	src := testsupport.NewMemorySource(diskentry.LocationLocal, "/games/a.d64")
	_, err := scanner.Scan(context.Background(), src, []scanner.Selection{scanner.File("/games/missing.d64")}, scanner.Options{})
	var listingErr *source.ListingError
	if !errors.As(err, &listingErr) || listingErr.Path != "/games/missing.d64" {
		t.Fatalf("expected ListingError for missing file, got %v", err)
	}
}

func TestScanProgressThrottledWithExactFinalCount(t *testing.T) {
	var files []string
	for i := range 40 {
		files = append(files, fmt.Sprintf("/d%02d/x.d64", i))
	}
	src := testsupport.NewMemorySource(diskentry.LocationLocal, files...)
	src.SetDelay(2 * time.Millisecond)

	var (
		mu    sync.Mutex
		calls []int
	)
	opts := scanner.Options{
		Workers:          3,
		ProgressInterval: time.Hour,
		Progress: func(n int) {
			mu.Lock()
			calls = append(calls, n)
			mu.Unlock()
		},
	}
	if _, err := scanner.Scan(context.Background(), src, []scanner.Selection{scanner.Dir("/")}, opts); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// One throttled report at most inside the hour-long window, plus the final one.
	if len(calls) == 0 || len(calls) > 2 {
		t.Fatalf("progress calls = %v", calls)
	}
	if calls[len(calls)-1] != 40 {
		t.Fatalf("final progress = %d, want 40", calls[len(calls)-1])
	}
}

func TestScanHonoursCancellation(t *testing.T) {
	src := testsupport.NewMemorySource(diskentry.LocationLocal, "/a/b/c/d.d64")
	src.SetDelay(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := scanner.Scan(ctx, src, []scanner.Selection{scanner.Dir("/")}, scanner.Options{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
