package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"ultidisk/internal/diskentry"
)

// Local lists a directory tree on the client's filesystem. Paths handed to and
// returned from ListEntries are rooted at Root, mirroring how a scoped folder
// grant exposes only its own subtree.
type Local struct {
	root string
}

// NewLocal returns a Local source rooted at the given OS directory.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		root = string(filepath.Separator)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "open source", Path: abs, Err: errors.New("not a directory")}
	}
	return &Local{root: abs}, nil
}

func (l *Local) ID() string {
	return "local:" + filepath.ToSlash(l.root)
}

func (l *Local) Kind() string {
	return "local"
}

func (l *Local) Location() diskentry.Location {
	return diskentry.LocationLocal
}

// Root returns the OS directory backing the source.
func (l *Local) Root() string {
	return l.root
}

// OSPath maps a source-rooted path to the filesystem.
func (l *Local) OSPath(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(diskentry.NormalizePath(p), "/")))
}

// SourcePath maps an OS path below Root to its source-rooted form.
func (l *Local) SourcePath(osPath string) (string, error) {
	abs, err := filepath.Abs(osPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &fs.PathError{Op: "resolve", Path: osPath, Err: errors.New("outside source root")}
	}
	return diskentry.NormalizePath(filepath.ToSlash(rel)), nil
}

// ListEntries returns the direct children of dir using a depth-1 fastwalk.
func (l *Local) ListEntries(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = diskentry.NormalizePath(dir)
	logicalDir := l.OSPath(dir)
	osDir := logicalDir

	info, err := os.Stat(osDir)
	if err != nil {
		return nil, l.listingError(dir, "stat directory", err)
	}
	if !info.IsDir() {
		return nil, l.listingError(dir, "not a directory", nil)
	}

	var (
		mu      sync.Mutex
		entries []Entry
	)
	// The walk never follows links itself; linked children are listed by
	// their own call.
	if resolved, err := filepath.EvalSymlinks(osDir); err == nil {
		osDir = resolved
	}
	conf := &fastwalk.Config{Follow: false}
	rootLen := len(osDir)
	above := sync.OnceValue(func() map[string]bool { return l.realAncestors(dir) })

	walkErr := fastwalk.Walk(conf, osDir, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if fullPath == osDir {
				return err
			}
			// Unreadable children are skipped; the directory itself was listed.
			return nil
		}
		if fullPath == osDir {
			return nil
		}
		relStart := rootLen
		if relStart < len(fullPath) && os.IsPathSeparator(fullPath[relStart]) {
			relStart++
		}
		if strings.ContainsAny(fullPath[relStart:], `/\`) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			if info, err = os.Lstat(fullPath); err != nil {
				return nil
			}
		}

		if info.IsDir() && isSymlink(fullPath) {
			// A link back to dir or one of its ancestors would be walked forever.
			target, err := filepath.EvalSymlinks(fullPath)
			if err != nil || above()[target] {
				return nil
			}
		}

		entry := Entry{
			Name:       d.Name(),
			Path:       diskentry.JoinPath(dir, d.Name()),
			ModifiedAt: info.ModTime().UTC(),
		}
		if info.IsDir() {
			entry.Type = TypeDir
		} else {
			entry.Type = TypeFile
			entry.SizeBytes = info.Size()
			entry.LocalURI = filepath.Join(logicalDir, d.Name())
			entry.LocalTreeURI = l.root
		}

		mu.Lock()
		entries = append(entries, entry)
		mu.Unlock()

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if walkErr != nil {
		return nil, l.listingError(dir, "walk directory", walkErr)
	}
	return entries, nil
}

// realAncestors resolves dir and every directory above it to real OS paths.
func (l *Local) realAncestors(dir string) map[string]bool {
	out := make(map[string]bool)
	for p := dir; ; p = diskentry.ParentDir(p) {
		if resolved, err := filepath.EvalSymlinks(l.OSPath(p)); err == nil {
			out[resolved] = true
		}
		if p == "/" {
			return out
		}
	}
}

func isSymlink(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.Mode()&fs.ModeSymlink != 0
}

// Handle returns an openable handle for a listed file.
func (l *Local) Handle(entry Entry) diskentry.Handle {
	uri := entry.LocalURI
	if uri == "" {
		uri = l.OSPath(entry.Path)
	}
	return NewFileHandle(uri)
}

func (l *Local) listingError(dir, detail string, err error) error {
	return &ListingError{
		SourceID:   l.ID(),
		SourceType: l.Kind(),
		Platform:   runtime.GOOS,
		Path:       dir,
		Detail:     detail,
		Err:        err,
	}
}

// FileHandle opens a local file by OS path.
type FileHandle struct {
	path string
}

// NewFileHandle returns a handle for the file at path.
func NewFileHandle(path string) *FileHandle {
	return &FileHandle{path: path}
}

func (h *FileHandle) Name() string {
	return filepath.Base(h.path)
}

func (h *FileHandle) Open() (io.ReadCloser, error) {
	return os.Open(h.path)
}

// Path returns the OS path behind the handle.
func (h *FileHandle) Path() string {
	return h.path
}
