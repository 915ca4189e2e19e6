package testsupport

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/source"
)

// MemorySource is an in-memory source.Source. Directories are implied by the
// files added to it.
type MemorySource struct {
	mu       sync.Mutex
	location diskentry.Location
	children map[string]map[string]source.Entry
	failures map[string]error
	calls    map[string]int
	delay    time.Duration
}

// NewMemorySource returns a source holding the given file paths.
func NewMemorySource(loc diskentry.Location, files ...string) *MemorySource {
	m := &MemorySource{
		location: loc,
		children: map[string]map[string]source.Entry{"/": {}},
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, f := range files {
		m.AddFile(f, 16)
	}
	return m
}

// AddFile registers a file and its ancestor directories.
func (m *MemorySource) AddFile(p string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = diskentry.NormalizePath(p)
	m.addChild(source.Entry{
		Name:       diskentry.BaseName(p),
		Path:       p,
		Type:       source.TypeFile,
		SizeBytes:  size,
		ModifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	for dir := diskentry.ParentDir(p); dir != "/"; dir = diskentry.ParentDir(dir) {
		m.addChild(source.Entry{Name: diskentry.BaseName(dir), Path: dir, Type: source.TypeDir})
	}
}

func (m *MemorySource) addChild(e source.Entry) {
	parent := diskentry.ParentDir(e.Path)
	if m.children[parent] == nil {
		m.children[parent] = make(map[string]source.Entry)
	}
	m.children[parent][e.Name] = e
	if e.Type == source.TypeDir && m.children[e.Path] == nil {
		m.children[e.Path] = make(map[string]source.Entry)
	}
}

// FailOn makes listings of dir return err.
func (m *MemorySource) FailOn(dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[diskentry.NormalizePath(dir)] = err
}

// SetDelay slows every listing down, to exercise concurrency.
func (m *MemorySource) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls reports how often dir was listed.
func (m *MemorySource) Calls(dir string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[diskentry.NormalizePath(dir)]
}

func (m *MemorySource) ID() string                   { return "memory:" + string(m.location) }
func (m *MemorySource) Kind() string                 { return "memory" }
func (m *MemorySource) Location() diskentry.Location { return m.location }

// ListEntries returns the direct children of dir.
func (m *MemorySource) ListEntries(ctx context.Context, dir string) ([]source.Entry, error) {
	dir = diskentry.NormalizePath(dir)

	m.mu.Lock()
	m.calls[dir]++
	delay := m.delay
	failure := m.failures[dir]
	children, ok := m.children[dir]
	entries := make([]source.Entry, 0, len(children))
	for _, e := range children {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if failure != nil {
		return nil, &source.ListingError{SourceID: m.ID(), SourceType: m.Kind(), Path: dir, Detail: "injected", Err: failure}
	}
	if !ok {
		return nil, &source.ListingError{SourceID: m.ID(), SourceType: m.Kind(), Path: dir, Detail: "no such directory"}
	}
	return entries, nil
}

// Handle returns an in-memory handle whose contents are the entry path.
func (m *MemorySource) Handle(entry source.Entry) diskentry.Handle {
	return StaticHandle{FileName: entry.Name, Data: []byte(entry.Path)}
}

// StaticHandle is a diskentry.Handle over fixed bytes.
type StaticHandle struct {
	FileName string
	Data     []byte
}

func (h StaticHandle) Name() string { return h.FileName }

func (h StaticHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(h.Data))), nil
}
