package scanner

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/logging"
	"ultidisk/internal/source"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultWorkers          = 3
	DefaultProgressInterval = 120 * time.Millisecond
)

// ErrNoDiskFiles reports a scan that completed but found no disk images.
var ErrNoDiskFiles = errors.New("no disk images found")

// Selection is a user-chosen starting point. Files are resolved through their
// parent directory listing; directories are traversed.
type Selection struct {
	Path string
	File bool
}

// Dir selects a directory to traverse.
func Dir(p string) Selection {
	return Selection{Path: p}
}

// File selects a single file.
func File(p string) Selection {
	return Selection{Path: p, File: true}
}

// ProgressFunc receives the number of files processed so far. Calls never
// overlap.
type ProgressFunc func(processed int)

// Options tunes a scan.
type Options struct {
	Workers          int
	ProgressInterval time.Duration
	Progress         ProgressFunc
	Logger           *slog.Logger
}

// Result is the outcome of a successful scan.
type Result struct {
	Candidates  []source.Entry
	Processed   int
	Directories int
	Duration    time.Duration
}

// Scan traverses the selections on src and returns the disk images found,
// sorted by path. It returns ErrNoDiskFiles when the traversal succeeded but
// nothing qualified, and the first *source.ListingError when any listing
// failed.
func Scan(ctx context.Context, src source.Source, selections []Selection, opts Options) (Result, error) {
	if src == nil {
		return Result{}, errors.New("scanner: nil source")
	}
	opts = opts.withDefaults()
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "scanner")).
		With(logging.String(logging.FieldSource, src.ID()))
	started := time.Now()

	s := newScan(src, opts.Workers)

	files, err := s.resolveFiles(ctx, selections)
	if err != nil {
		return Result{}, err
	}
	for _, sel := range selections {
		if !sel.File {
			s.enqueueRoot(sel.Path)
		}
	}

	progress := make(chan int, 1)
	s.progress = progress
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		collect(progress, opts.Progress, opts.ProgressInterval)
	}()

	logger.Debug("scan started",
		logging.Int("selections", len(selections)),
		logging.Int("workers", opts.Workers),
	)

	stop := context.AfterFunc(ctx, s.wake)
	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(ctx)
		}()
	}
	wg.Wait()
	stop()
	close(progress)
	<-collectorDone

	if s.err != nil {
		logging.ErrorWithContext(logger, "scan aborted", "scan_failed",
			logging.Error(s.err),
			logging.String(logging.FieldErrorHint, "check that the source is reachable and readable"),
			logging.String(logging.FieldImpact, "no disks were added from this scan"),
		)
		return Result{}, s.err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	files = append(files, s.files...)
	processed := len(files)
	if opts.Progress != nil {
		opts.Progress(processed)
	}

	candidates := make([]source.Entry, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if !diskentry.IsDiskImagePath(f.Path) {
			continue
		}
		if _, dup := seen[f.Path]; dup {
			continue
		}
		seen[f.Path] = struct{}{}
		candidates = append(candidates, f)
	}
	slices.SortFunc(candidates, func(a, b source.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	result := Result{
		Candidates:  candidates,
		Processed:   processed,
		Directories: s.listed,
		Duration:    time.Since(started),
	}
	logger.Info("scan completed",
		logging.Int("candidates", len(candidates)),
		logging.Int("processed", processed),
		logging.Int("directories", s.listed),
		logging.Duration("duration", result.Duration),
	)
	if len(candidates) == 0 {
		return result, ErrNoDiskFiles
	}
	return result, nil
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

type scan struct {
	src source.Source

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []string
	visited  map[string]struct{}
	inFlight int
	files    []source.Entry
	listed   int
	err      error
	done     bool
	progress chan<- int
}

func newScan(src source.Source, workers int) *scan {
	s := &scan{
		src:     src,
		visited: make(map[string]struct{}),
		queue:   make([]string, 0, workers),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *scan) enqueueRoot(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(diskentry.NormalizePath(p))
}

func (s *scan) enqueueLocked(p string) {
	if _, ok := s.visited[p]; ok {
		return
	}
	s.visited[p] = struct{}{}
	s.queue = append(s.queue, p)
}

// resolveFiles stats file selections through their parent listing. Parent
// listings are shared between selections in the same folder.
func (s *scan) resolveFiles(ctx context.Context, selections []Selection) ([]source.Entry, error) {
	byParent := make(map[string][]string)
	var parents []string
	for _, sel := range selections {
		if !sel.File {
			continue
		}
		p := diskentry.NormalizePath(sel.Path)
		parent := diskentry.ParentDir(p)
		if _, ok := byParent[parent]; !ok {
			parents = append(parents, parent)
		}
		byParent[parent] = append(byParent[parent], p)
	}

	var out []source.Entry
	for _, parent := range parents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := s.src.ListEntries(ctx, parent)
		if err != nil {
			return nil, s.listingError(parent, err)
		}
		index := make(map[string]source.Entry, len(entries))
		for _, e := range entries {
			index[diskentry.NormalizePath(e.Path)] = e
		}
		for _, p := range byParent[parent] {
			entry, ok := index[p]
			if !ok || entry.IsDir() {
				return nil, &source.ListingError{
					SourceID:   s.src.ID(),
					SourceType: s.src.Kind(),
					Path:       p,
					Detail:     "selected file not found in parent listing",
				}
			}
			entry.Path = p
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *scan) work(ctx context.Context) {
	for {
		dir, ok := s.next(ctx)
		if !ok {
			return
		}
		entries, err := s.src.ListEntries(ctx, dir)
		s.finish(dir, entries, err)
	}
}

// next blocks until a directory is available or the scan is over.
func (s *scan) next(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.err != nil || s.done || ctx.Err() != nil {
			return "", false
		}
		if len(s.queue) > 0 {
			dir := s.queue[0]
			s.queue = s.queue[1:]
			s.inFlight++
			return dir, true
		}
		if s.inFlight == 0 {
			s.done = true
			s.cond.Broadcast()
			return "", false
		}
		s.cond.Wait()
	}
}

func (s *scan) finish(dir string, entries []source.Entry, err error) {
	s.mu.Lock()
	s.inFlight--
	if err != nil {
		if s.err == nil {
			s.err = s.listingError(dir, err)
		}
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}
	s.listed++
	for _, e := range entries {
		p := diskentry.NormalizePath(e.Path)
		if e.IsDir() {
			s.enqueueLocked(p)
			continue
		}
		e.Path = p
		s.files = append(s.files, e)
	}
	processed := len(s.files)
	s.cond.Broadcast()
	s.mu.Unlock()

	select {
	case s.progress <- processed:
	default:
	}
}

// listingError wraps adapter failures that did not already come back typed.
func (s *scan) listingError(dir string, err error) error {
	var listingErr *source.ListingError
	if errors.As(err, &listingErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &source.ListingError{
		SourceID:   s.src.ID(),
		SourceType: s.src.Kind(),
		Path:       dir,
		Detail:     "list directory",
		Err:        err,
	}
}

func (s *scan) wake() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// collect forwards progress counts at most once per interval.
func collect(counts <-chan int, fn ProgressFunc, interval time.Duration) {
	var last time.Time
	latest := 0
	for n := range counts {
		if n > latest {
			latest = n
		}
		if fn == nil {
			continue
		}
		if now := time.Now(); now.Sub(last) >= interval {
			last = now
			fn(latest)
		}
	}
}
