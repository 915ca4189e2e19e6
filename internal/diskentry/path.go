package diskentry

import (
	"path"
	"strings"
)

var diskImageExtensions = map[string]struct{}{
	"d64": {},
	"g64": {},
	"d71": {},
	"g71": {},
	"d81": {},
	"dnp": {},
}

// NormalizePath collapses raw into an absolute, forward-slash path. Duplicate
// separators and dot segments are resolved and the trailing slash is removed
// except at the root. An empty input yields "/".
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "/"
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	// path.Clean strips trailing slashes and never climbs above "/".
	return path.Clean(p)
}

// JoinPath joins a directory and a file name and normalizes the result.
func JoinPath(dir, name string) string {
	return NormalizePath(strings.TrimRight(dir, "/") + "/" + strings.TrimLeft(name, "/"))
}

// BaseName returns the final segment of a normalized path.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "/" {
		return ""
	}
	return path.Base(p)
}

// ParentDir returns the directory containing p.
func ParentDir(p string) string {
	return path.Dir(NormalizePath(p))
}

// IsDiskImagePath reports whether p names a disk image the device can mount.
// The comparison is case-insensitive.
func IsDiskImagePath(p string) bool {
	_, ok := diskImageExtensions[ImageType(p)]
	return ok
}

// ImageType returns the lower-case extension of p without the leading dot.
func ImageType(p string) string {
	ext := path.Ext(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"))
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// Stem returns the base name of p without its extension.
func Stem(p string) string {
	base := BaseName(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
